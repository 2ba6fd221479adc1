package model

import (
	"testing"
	"time"
)

// TestPadEventIndex проверяет дополнение однозначных индексов нулём.
func TestPadEventIndex(t *testing.T) {
	tests := map[string]string{
		"3":   "03",
		"3a":  "03a",
		"12":  "12",
		"12b": "12b",
		"":    "",
		"s1":  "s1",
	}
	for in, want := range tests {
		if got := PadEventIndex(in); got != want {
			t.Errorf("PadEventIndex(%q) = %q, ожидалось %q", in, got, want)
		}
	}
}

// TestNormalizedEventID проверяет построение ключа описания события.
func TestNormalizedEventID(t *testing.T) {
	e := MediaEntry{FileDateStamp: "250101", Event: "3"}
	if got := e.NormalizedEventID("zsv"); got != "zsv250101-03" {
		t.Errorf("ожидался zsv250101-03, получен %q", got)
	}

	e.DayNight = "e"
	if got := e.NormalizedEventID("zsv"); got != "zsv250101e-03" {
		t.Errorf("ожидался zsv250101e-03, получен %q", got)
	}

	empty := MediaEntry{FileDateStamp: "250101"}
	if got := empty.NormalizedEventID("zsv"); got != "" {
		t.Errorf("без события ожидалась пустая строка, получено %q", got)
	}
}

// TestEventLabel проверяет метку события с индексом.
func TestEventLabel(t *testing.T) {
	e := MediaEntry{Event: "3", Index: "2"}
	if got := e.EventLabel(); got != "03-2" {
		t.Errorf("ожидалась метка 03-2, получена %q", got)
	}
	e.Index = ""
	if got := e.EventLabel(); got != "03" {
		t.Errorf("ожидалась метка 03, получена %q", got)
	}
}

func sameDayEntries() []MediaEntry {
	mod := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	return []MediaEntry{
		{FileName: "zsv250101-3.mp4", FileDateStamp: "250101", Event: "3", PubDate: Date(2025, 1, 1), Modified: mod},
		{FileName: "zsv250101-1.mp4", FileDateStamp: "250101", Event: "1", PubDate: Date(2025, 1, 1), Modified: mod},
		{FileName: "zsv250101-2.mp4", FileDateStamp: "250101", Event: "2", PubDate: Date(2025, 1, 1), Modified: mod},
	}
}

// TestSetEntries_SortAndSpread проверяет сортировку и разнесение дат внутри одной даты файла.
func TestSetEntries_SortAndSpread(t *testing.T) {
	ch := &Channel{Name: "video", CopyLang: "zh"}
	ch.SetEntries(sameDayEntries(), time.Time{})

	if len(ch.Entries) != 3 {
		t.Fatalf("ожидалось 3 записи, получено %d", len(ch.Entries))
	}

	wantNames := []string{"zsv250101-1.mp4", "zsv250101-2.mp4", "zsv250101-3.mp4"}
	wantDates := []time.Time{Date(2025, 1, 3), Date(2025, 1, 2), Date(2025, 1, 1)}
	for i, e := range ch.Entries {
		if e.FileName != wantNames[i] {
			t.Errorf("запись %d: ожидалось имя %q, получено %q", i, wantNames[i], e.FileName)
		}
		if !e.PubDate.Equal(wantDates[i]) {
			t.Errorf("запись %d: ожидалась дата %v, получена %v", i, wantDates[i], e.PubDate)
		}
	}
}

// TestSetEntries_DateOrder проверяет порядок по дате файла (новые первыми).
func TestSetEntries_DateOrder(t *testing.T) {
	ch := &Channel{Name: "video"}
	ch.SetEntries([]MediaEntry{
		{FileName: "old.mp4", FileDateStamp: "241231", Event: "1", PubDate: Date(2024, 12, 31), Modified: time.Date(2024, 12, 31, 8, 0, 0, 0, time.UTC)},
		{FileName: "new.mp4", FileDateStamp: "250105", Event: "1", PubDate: Date(2025, 1, 5), Modified: time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)},
	}, time.Time{})

	if len(ch.Entries) != 2 {
		t.Fatalf("ожидалось 2 записи, получено %d", len(ch.Entries))
	}
	if ch.Entries[0].FileName != "new.mp4" {
		t.Errorf("первой ожидалась new.mp4, получена %q", ch.Entries[0].FileName)
	}
	if !ch.Entries[1].PubDate.Equal(Date(2024, 12, 31)) {
		t.Errorf("дата одиночной записи не должна меняться, получена %v", ch.Entries[1].PubDate)
	}
}

// TestSetEntries_Filters проверяет фильтр по расширению и дате публикации.
func TestSetEntries_Filters(t *testing.T) {
	ch := &Channel{Name: "video", FilterExtension: ".mp4"}
	entries := []MediaEntry{
		{FileName: "a.mp4", FileDateStamp: "250110", Event: "1", PubDate: Date(2025, 1, 10), Modified: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)},
		{FileName: "b.txt", FileDateStamp: "250110", Event: "2", PubDate: Date(2025, 1, 10), Modified: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)},
		{FileName: "c.mp4", FileDateStamp: "241201", Event: "1", PubDate: Date(2024, 12, 1), Modified: time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC)},
	}
	ch.SetEntries(entries, Date(2025, 1, 1))

	if len(ch.Entries) != 1 {
		t.Fatalf("ожидалась 1 запись, получено %d", len(ch.Entries))
	}
	if ch.Entries[0].FileName != "a.mp4" {
		t.Errorf("ожидалась a.mp4, получена %q", ch.Entries[0].FileName)
	}

	ch.FilterExtension = "*"
	ch.SetEntries(entries, time.Time{})
	if len(ch.Entries) != 3 {
		t.Errorf("фильтр \"*\" не должен отсекать записи, получено %d", len(ch.Entries))
	}
}

// TestListingEqual проверяет признак изменения канала.
func TestListingEqual(t *testing.T) {
	a := &Channel{Name: "video"}
	a.SetEntries(sameDayEntries(), time.Time{})
	b := a.Clone()

	if !a.ListingEqual(&b) {
		t.Error("копия канала должна совпадать с оригиналом")
	}
	if a.ListingEqual(nil) {
		t.Error("сравнение с nil должно давать false")
	}

	b.Entries[1].Description = "Sunday Service (03)"
	if a.ListingEqual(&b) {
		t.Error("изменение описания должно давать false")
	}

	c := a.Clone()
	c.Entries = c.Entries[:2]
	if a.ListingEqual(&c) {
		t.Error("разное число записей должно давать false")
	}
}

// TestClone_Independent проверяет независимость среза записей копии.
func TestClone_Independent(t *testing.T) {
	a := &Channel{Name: "video", Entries: []MediaEntry{{FileName: "x.mp4"}}}
	b := a.Clone()
	b.Entries[0].FileName = "y.mp4"
	if a.Entries[0].FileName != "x.mp4" {
		t.Errorf("изменение копии затронуло оригинал: %q", a.Entries[0].FileName)
	}
}

// TestDescriptionFor проверяет выбор описания по языку.
func TestDescriptionFor(t *testing.T) {
	d := FileDescriptor{EngDescr: "Sunday Service", ChiDescr: "主日崇拜"}
	if got := d.DescriptionFor("zh"); got != "主日崇拜" {
		t.Errorf("для zh ожидалось китайское описание, получено %q", got)
	}
	if got := d.DescriptionFor("en"); got != "Sunday Service" {
		t.Errorf("для en ожидалось английское описание, получено %q", got)
	}
}
