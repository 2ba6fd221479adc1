// format.go — форматирование заголовков, описаний и английского текста событий.
package media

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
)

var (
	reMultipleSpaces = regexp.MustCompile(` +`)
	reDateDigits     = regexp.MustCompile(`\b(\d{6})\b`)
)

// locations — сокращения мест проведения событий.
var locations = map[string]string{
	"MH":     "MtHermon",
	"KL":     "Kuala Lumper",
	"KK":     "Kota Kinabalu",
	"CL":     "Canaan Land",
	"IL":     "Isaac Land",
	"DL":     "Dawnlight",
	"AU":     "Australia",
	"US":     "United States",
	"CA":     "Canada",
	"LA":     "Los Angeles",
	"Joseph": "Joseph Land",
	"Olive":  "MtOlive",
	"Carmel": "MtCarmel",
}

// IsChinese сообщает, относится ли руна к CJK Unified Ideographs (включая расширения A–C).
func IsChinese(r rune) bool {
	return (r >= 0x4e00 && r <= 0x9fff) ||
		(r >= 0x3400 && r <= 0x4dbf) ||
		(r >= 0x20000 && r <= 0x2a6df) ||
		(r >= 0x2a700 && r <= 0x2b73f)
}

// FormatEnglish нормализует английское описание события:
// пробелы на границах CamelCase и буква/цифра, "-" → пробел,
// ", " после запятых, " & " вокруг амперсанда, схлопывание пробелов,
// ALC 588 WMM → ALC/588/WMM, шестизначные даты → YYYY-MM-DD.
func FormatEnglish(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 8)

	prevDigit, prevLetter := false, false
	for i, c := range runes {
		isDigit := c >= '0' && c <= '9'
		isLetter := unicode.IsLetter(c)
		if i > 0 && unicode.IsLower(runes[i-1]) && unicode.IsUpper(c) {
			b.WriteByte(' ')
		}
		if i > 0 && ((prevLetter && isDigit) || (prevDigit && isLetter)) {
			b.WriteByte(' ')
		}
		switch c {
		case '-':
			b.WriteByte(' ')
		case ',':
			b.WriteString(", ")
		case '&':
			b.WriteString(" & ")
		default:
			b.WriteRune(c)
		}
		prevDigit, prevLetter = isDigit, isLetter
	}

	out := reMultipleSpaces.ReplaceAllString(b.String(), " ")
	out = strings.ReplaceAll(out, "ALC 588 WMM", "ALC/588/WMM")
	out = strings.ReplaceAll(out, "ALC 588", "ALC/588")

	return reDateDigits.ReplaceAllStringFunc(out, func(digits string) string {
		date, err := time.Parse("060102", digits)
		if err != nil {
			return digits
		}
		return date.Format("2006-01-02")
	})
}

// NormalizeLocation раскрывает сокращение места проведения.
func NormalizeLocation(loc string) string {
	if full, ok := locations[loc]; ok {
		return full
	}
	return loc
}

// contentDesc возвращает описание по коду события.
func contentDesc(code, eventDesc string) string {
	switch code {
	case "r":
		return "Report"
	case "v":
		return "Video"
	case "c":
		return eventDesc
	case "n":
		return "News"
	case "z":
		return "Life"
	case "a":
		return "Prayer"
	case "s":
		return "Hymn"
	case "h":
		return "Grandpa"
	case "":
		return ""
	}
	return "Type " + strings.ToUpper(code)
}

// formatEventDate превращает "250101" в " 2025-01-01"; иначе пустая строка.
func formatEventDate(ed string) string {
	if len(ed) != 6 {
		return ""
	}
	return " 20" + ed[0:2] + "-" + ed[2:4] + "-" + ed[4:6]
}

func eventWithIndex(e *model.MediaEntry) string {
	evt := e.DayNight + e.Event
	if e.Index != "" {
		evt += "-" + e.Index
	}
	return evt
}

func prefixed(s string) string {
	if s == "" {
		return ""
	}
	return " " + s
}

// ConstructTitle строит заголовок записи: событие, индекс, тип содержимого, место, дата события.
func ConstructTitle(e *model.MediaEntry) string {
	return eventWithIndex(e) +
		prefixed(contentDesc(e.EventCode, e.EventDesc)) +
		prefixed(NormalizeLocation(e.Location)) +
		formatEventDate(e.EventDateStamp)
}

// ConstructDescription строит описание записи по умолчанию (до подстановки описаний из docx).
func ConstructDescription(e *model.MediaEntry) string {
	evening := ""
	if e.DayNight == "e" {
		evening = " Evening"
	}
	return eventWithIndex(e) + evening +
		prefixed(NormalizeLocation(e.Location)) +
		prefixed(strings.ReplaceAll(e.EventDesc, "M.V.", "Music Video")) +
		formatEventDate(e.EventDateStamp)
}

// FillRSSFields заполняет пустые заголовок, описание и ссылку записи.
func FillRSSFields(e *model.MediaEntry, ch *model.Channel) {
	released := strings.TrimSpace(formatEventDate(e.FileDateStamp))
	if e.Title == "" {
		e.Title = released + " " + ConstructTitle(e)
	}
	if e.Description == "" {
		e.Description = ch.Title + " " + released + " " + ConstructDescription(e)
	}
	if e.Link == "" {
		e.Link = strings.TrimRight(ch.MediaLink, "/") + "/" + e.FileName
	}
}
