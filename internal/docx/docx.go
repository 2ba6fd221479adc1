// Пакет docx — чтение первой таблицы документа Word (.docx).
//
// Документ .docx — zip-архив; таблица читается из word/document.xml
// потоковым разбором XML: <w:tbl> → <w:tr> → <w:tc> → <w:t>.
package docx

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const documentPart = "word/document.xml"

// wordNS — пространство имён WordprocessingML.
const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// ErrNoTable — в документе нет ни одной таблицы.
var ErrNoTable = errors.New("в документе нет таблицы")

// ReadTable открывает файл .docx и возвращает текст ячеек первой таблицы
// построчно. Абзацы внутри одной ячейки разделяются пробелом.
func ReadTable(path string) ([][]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("открытие docx %s: %w", path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != documentPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("открытие %s: %w", documentPart, err)
		}
		defer rc.Close()
		return ParseTable(rc)
	}
	return nil, fmt.Errorf("в архиве нет %s", documentPart)
}

// ParseTable разбирает XML тела документа и возвращает первую таблицу.
// Вложенные таблицы входят в текст ячейки внешней таблицы.
// Элементы управления содержимым (<w:sdt>) прозрачны: таблица или ячейка
// внутри <w:sdtContent> читается так же, как без обёртки.
// Разрывы строк <w:br>, <w:cr> и табуляция <w:tab> заменяются пробелом.
func ParseTable(r io.Reader) ([][]string, error) {
	dec := xml.NewDecoder(r)

	var (
		rows      [][]string
		row       []string
		cell      strings.Builder
		paraCount int
		depth     int // вложенность <w:tbl>
		inText    bool
		found     bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("разбор XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "tbl":
				depth++
			case "tr":
				if depth == 1 {
					row = nil
				}
			case "tc":
				if depth == 1 {
					cell.Reset()
					paraCount = 0
				}
			case "p":
				if depth >= 1 {
					if paraCount > 0 && cell.Len() > 0 {
						cell.WriteByte(' ')
					}
					paraCount++
				}
			case "t":
				inText = depth >= 1
			case "tab", "br", "cr":
				if depth >= 1 {
					cell.WriteByte(' ')
				}
			}

		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "tc":
				if depth == 1 {
					row = append(row, strings.TrimSpace(cell.String()))
				}
			case "tr":
				if depth == 1 {
					rows = append(rows, row)
				}
			case "tbl":
				depth--
				if depth == 0 {
					found = true
				}
			}

		case xml.CharData:
			if inText {
				cell.Write(t)
			}
		}

		if found {
			return rows, nil
		}
	}

	return nil, ErrNoTable
}
