// channel.go — модели канала (набор медиафайлов каталога) и записи о файле.
package model

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// singleDigitIndex — индекс события из одной цифры (с необязательной буквой).
var singleDigitIndex = regexp.MustCompile(`^\d[a-z]?$`)

// PadEventIndex дополняет однозначный индекс ведущим нулём: "3" → "03", "3a" → "03a".
// Лексический и числовой порядок индексов после этого совпадают.
func PadEventIndex(idx string) string {
	if singleDigitIndex.MatchString(idx) {
		return "0" + idx
	}
	return idx
}

// MediaEntry — запись об одном физическом файле канала.
// Строится заново при каждом сканировании каталога и не сохраняется напрямую.
type MediaEntry struct {
	GUID           string    `json:"guid"`
	Title          string    `json:"title"`
	Link           string    `json:"link"`
	Description    string    `json:"description"`
	ContentType    string    `json:"content_type"`
	FileName       string    `json:"file_name"`
	FileDateStamp  string    `json:"file_date_stamp"`
	DayNight       string    `json:"day_night"`
	Event          string    `json:"event"`
	EventCode      string    `json:"event_code"`
	Index          string    `json:"index"`
	EventDesc      string    `json:"event_desc"`
	Location       string    `json:"location"`
	EventDateStamp string    `json:"event_date_stamp"`
	MediaType      string    `json:"media_type"`
	Size           int64     `json:"size"`
	PubDate        time.Time `json:"pub_date"`
	Modified       time.Time `json:"modified"`
}

// NormalizedEventID возвращает ключ описания события в таблице filedesc:
// prefix + дата + признак вечера + "-" + индекс события с ведущим нулём.
// Пустая строка — у файла нет даты или события.
func (e *MediaEntry) NormalizedEventID(prefix string) string {
	if e.FileDateStamp == "" || e.Event == "" {
		return ""
	}
	return prefix + e.FileDateStamp + e.DayNight + "-" + PadEventIndex(e.Event)
}

// EventLabel возвращает метку события для суффикса описания: "03-2".
func (e *MediaEntry) EventLabel() string {
	evt := PadEventIndex(e.Event)
	if e.Index != "" {
		evt += "-" + e.Index
	}
	return evt
}

// Channel — именованный каталог медиафайлов с метаданными представления.
// Описывается в YAML-файле каналов; Entries заполняется при сканировании.
type Channel struct {
	Name            string `json:"name" yaml:"name"`
	Title           string `json:"title" yaml:"title"`
	Link            string `json:"link" yaml:"link"`
	MediaLink       string `json:"media_link" yaml:"media_link"`
	Description     string `json:"description" yaml:"description"`
	Category        string `json:"category" yaml:"category"`
	Language        string `json:"language" yaml:"language"`
	Author          string `json:"author" yaml:"author"`
	Generator       string `json:"generator" yaml:"generator"`
	ServerName      string `json:"server_name" yaml:"server_name"`
	FilePath        string `json:"file_path" yaml:"file_path"`
	FilterExtension string `json:"filter_extension" yaml:"filter_extension"`
	OutputPath      string `json:"output_path" yaml:"output_path"`
	Image           string `json:"image" yaml:"image"`
	ImagePath       string `json:"image_path" yaml:"image_path"`
	// CopyLang — язык описаний записей ("zh" или "en"), по умолчанию ключ языка в конфигурации
	CopyLang string `json:"copy_lang" yaml:"copy_lang"`

	Entries []MediaEntry `json:"entries" yaml:"-"`
}

// CacheID возвращает ключ канала в Channel Cache и таблице channel: "lang/name".
func (c *Channel) CacheID() string {
	return c.CopyLang + "/" + c.Name
}

// Clone возвращает копию канала с независимым срезом записей.
func (c *Channel) Clone() Channel {
	out := *c
	if c.Entries != nil {
		out.Entries = make([]MediaEntry, len(c.Entries))
		copy(out.Entries, c.Entries)
	}
	return out
}

// SetEntries фильтрует записи по расширению и дате публикации (since, если не нулевая),
// нормализует даты публикации и сортирует: дата файла по убыванию, затем событие и индекс.
func (c *Channel) SetEntries(entries []MediaEntry, since time.Time) {
	files := make([]MediaEntry, 0, len(entries))
	for _, e := range entries {
		if c.FilterExtension != "" && c.FilterExtension != "*" && !strings.HasSuffix(e.FileName, c.FilterExtension) {
			continue
		}
		if !since.IsZero() && e.PubDate.Before(since) {
			continue
		}
		files = append(files, e)
	}

	files = cleanPubDates(files)

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.FileDateStamp != b.FileDateStamp {
			return a.FileDateStamp > b.FileDateStamp
		}
		if a.Event != b.Event {
			return a.Event < b.Event
		}
		return a.Index < b.Index
	})

	// Записи одной даты разносятся по дням, чтобы RSS-клиенты сохраняли порядок
	groups := make(map[string][]int)
	var order []string
	for i := range files {
		stamp := files[i].FileDateStamp
		if _, ok := groups[stamp]; !ok {
			order = append(order, stamp)
		}
		groups[stamp] = append(groups[stamp], i)
	}
	for _, stamp := range order {
		idx := groups[stamp]
		if len(idx) < 2 {
			continue
		}
		base := files[idx[0]].PubDate
		for n, i := range idx {
			files[i].PubDate = base.AddDate(0, 0, len(idx)-1-n)
		}
	}

	c.Entries = files
}

// ListingEqual сравнивает кортежи (имя файла, описание, дата публикации)
// записей двух каналов. Используется как признак изменения канала.
func (c *Channel) ListingEqual(other *Channel) bool {
	if other == nil || len(c.Entries) != len(other.Entries) {
		return false
	}
	for i := range c.Entries {
		a, b := &c.Entries[i], &other.Entries[i]
		if a.FileName != b.FileName || a.Description != b.Description || !a.PubDate.Equal(b.PubDate) {
			return false
		}
	}
	return true
}

// cleanPubDates выравнивает дату публикации внутри группы записей с одинаковой датой:
// базой служит последний файл, изменённый не позже часа после первого.
func cleanPubDates(entries []MediaEntry) []MediaEntry {
	groups := make(map[time.Time][]MediaEntry)
	for _, e := range entries {
		day := truncateDay(e.PubDate)
		groups[day] = append(groups[day], e)
	}

	days := make([]time.Time, 0, len(groups))
	for day := range groups {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	result := make([]MediaEntry, 0, len(entries))
	for _, day := range days {
		group := groups[day]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Modified.Before(group[j].Modified) })

		cutoff := group[0].Modified.Add(time.Hour)
		base := group[0]
		for i := len(group) - 1; i >= 0; i-- {
			if !group[i].Modified.After(cutoff) {
				base = group[i]
				break
			}
		}

		baseTime := base.Modified.UTC()
		if baseTime.Day() != day.Day() {
			next := day.AddDate(0, 0, 1)
			baseTime = time.Date(next.Year(), next.Month(), next.Day(), 23, 59, 59, 0, time.UTC)
		}
		baseTime = baseTime.Add(-time.Duration(len(group)+1) * time.Second)
		if baseTime.Hour() == 0 && baseTime.Minute() == 0 && baseTime.Second() == 0 {
			baseTime = baseTime.Add(5 * time.Minute)
		}

		pub := truncateDay(baseTime)
		for _, e := range group {
			e.PubDate = pub
			result = append(result, e)
		}
	}
	return result
}

// truncateDay отбрасывает время суток (UTC).
func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Date возвращает полночь UTC указанного дня.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
