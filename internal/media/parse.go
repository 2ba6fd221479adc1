// Пакет media — разбор имён медиафайлов, форматирование заголовков
// и описаний, извлечение описаний событий из таблиц docx.
package media

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
)

// Грамматика имён файлов. Порядок проверки: zsv, общий датированный, zs, гимны.
var (
	reZSV         = regexp.MustCompile(`^zsv(\d{6})(e?)-(\d{1,2}[a-z]|\w+)(?:-(\d{1,2}z?)(?:-([^(.]+))?)?`)
	reAnyFull     = regexp.MustCompile(`^([A-Za-z]+)(\d{8})(e?)-(\d{1,2}[a-z]|\w+)(?:-(.+))?.mp4`)
	reDescPattern = regexp.MustCompile(`^([\w][\w\d]+)(?:[-]?(\d{6}|\d{2}\.\d{2}\.\d{4}))?-([^(.]+)`)
	reDescDated   = regexp.MustCompile(`(.*?)(?:[-_])?(\d{6}|\d{2}\.\d{2}\.\d{4})(e)?(?:-([^(.]+))?`)
	reZS          = regexp.MustCompile(`^zs(\d{6})(e?)(?:-?([a-z]{1,3}))?-(e?\d{1,2}[a-z]z?)(?:-?([^(.]+))?`)
	reHymn        = regexp.MustCompile(`^zs(\d{6})-(s\d{1,2})-h(\d{4})(?:-?([^(.]+))?`)
)

// EventIDPrefix — префикс нормализованных идентификаторов событий.
const EventIDPrefix = "zsv"

// ParseDescriptor разбирает имя файла в MediaEntry.
// Заполняются поля даты, события, индекса, описания, места и типа медиа.
// Имя, не подходящее ни под один шаблон, даёт запись с заголовком из имени файла.
func ParseDescriptor(filename string) model.MediaEntry {
	base := filepath.Base(filename)
	fi := model.MediaEntry{
		MediaType: MediaType(base),
		FileName:  base,
	}

	if m := reZSV.FindStringSubmatch(base); m != nil {
		fi.ContentType = "zsf"
		fi.FileDateStamp = m[1]
		fi.DayNight = m[2]
		setEvent(&fi, m[3])
		fi.Index = m[4]
		applyEventDesc(&fi, strings.Trim(m[5], "-"))
		return fi
	}

	if m := reAnyFull.FindStringSubmatch(base); m != nil {
		fi.ContentType = m[1]
		fi.FileDateStamp = m[2]
		fi.DayNight = m[3]
		setEvent(&fi, m[4])
		applyEventDesc(&fi, strings.Trim(m[5], "-"))
		return fi
	}

	if m := reZS.FindStringSubmatch(base); m != nil {
		fi.ContentType = "zs"
		fi.FileDateStamp = m[1]
		fi.DayNight = m[2]
		fi.Event = m[4]
		if strings.HasPrefix(fi.Event, "e") && len(fi.Event) > 2 {
			fi.DayNight = "e"
			fi.Event = fi.Event[1:]
		}
		if len(fi.Event) > 1 {
			fi.EventCode = fi.Event[len(fi.Event)-1:]
		}
		desc := strings.Trim(m[5], "-")
		if desc == "" {
			fi.EventDesc = contentDesc(fi.EventCode, "")
		} else if d := reDescPattern.FindStringSubmatch(desc); d != nil {
			fi.Location = d[1]
			fi.EventDateStamp = d[2]
			fi.EventDesc = d[3]
		} else {
			fi.EventDesc = desc
		}
		return fi
	}

	if m := reHymn.FindStringSubmatch(base); m != nil {
		fi.ContentType = "zs"
		fi.FileDateStamp = m[1]
		fi.Event = m[2]
		if len(fi.Event) > 1 {
			fi.EventCode = fi.Event[:1]
			fi.Index = fi.Event[1:]
		}
		if desc := strings.Trim(m[3], "-"); desc != "" {
			fi.EventDesc = contentDesc(fi.EventCode, "") + "_" + desc
		}
	}

	fi.Title = strings.TrimSuffix(base, filepath.Ext(base))
	return fi
}

// setEvent заполняет событие и код события. "List" — не событие, а описание.
func setEvent(fi *model.MediaEntry, event string) {
	fi.Event = event
	if event == "List" {
		fi.EventDesc = event
		fi.Event = ""
	}
	if len(fi.Event) > 1 {
		fi.EventCode = fi.Event[len(fi.Event)-1:]
	}
}

// applyEventDesc разбирает хвост имени: место, дату события, признак вечера и описание.
func applyEventDesc(fi *model.MediaEntry, desc string) {
	if desc == "" {
		return
	}
	fi.EventDesc = desc
	if d := reDescDated.FindStringSubmatch(desc); d != nil {
		fi.Location = d[1]
		fi.EventDateStamp = d[2]
		if d[3] != "" {
			fi.DayNight = d[3]
		}
		fi.EventDesc = d[4]
		return
	}
	if d := reDescPattern.FindStringSubmatch(desc); d != nil {
		fi.Location = d[1]
		fi.EventDateStamp = d[2]
		fi.EventDesc = d[3]
	}
}

// EntryFromFile строит запись канала по файлу каталога: разбор имени, размер,
// время изменения, дата публикации (из даты в имени или из mtime) и RSS-поля.
func EntryFromFile(dir string, info os.FileInfo, ch *model.Channel) model.MediaEntry {
	fi := ParseDescriptor(filepath.Join(dir, info.Name()))
	fi.FileName = info.Name()
	fi.Size = info.Size()
	fi.Modified = info.ModTime()

	if date, err := time.Parse("060102", fi.FileDateStamp); err == nil {
		fi.PubDate = date
	} else {
		mod := info.ModTime().UTC()
		fi.PubDate = model.Date(mod.Year(), mod.Month(), mod.Day())
		fi.FileDateStamp = mod.Format("060102")
	}

	fi.GUID = ch.ServerName + "/" + fi.FileName
	FillRSSFields(&fi, ch)
	return fi
}

// ReadChannelDir сканирует каталог канала и возвращает записи обычных файлов.
// Подкаталоги и файлы, которые не удалось прочитать, пропускаются.
func ReadChannelDir(ch *model.Channel) ([]model.MediaEntry, error) {
	dirEntries, err := os.ReadDir(ch.FilePath)
	if err != nil {
		return nil, err
	}

	entries := make([]model.MediaEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, EntryFromFile(ch.FilePath, info, ch))
	}
	return entries, nil
}
