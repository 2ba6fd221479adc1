// descriptor.go — преобразование строк таблицы docx в описания событий (FileDescriptor).
//
// Ожидаемая раскладка таблицы: заголовок (順序 | 錄影內容 | 檔案數量), далее строки
// [порядковый номер, код события + английское и китайское описание, количество файлов].
package media

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
)

// reVideoID — код события в начале второй ячейки: zsv250101-3- или zsv250101e-12a-2-.
var reVideoID = regexp.MustCompile(`^zsv(\d{6}e?)-(\d{1,3}[a-z]?)-(?:(\d{1,3}[a-z]?)-)?`)

// RowError — ошибка разбора одной строки таблицы. Строка пропускается,
// остальные строки документа обрабатываются.
type RowError struct {
	Row    int
	Cells  []string
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("строка %d %q: %s", e.Row, e.Cells, e.Reason)
}

// DescriptorsFromRows разбирает строки таблицы (первая строка — заголовок).
// Возвращает успешно разобранные описания и ошибки по пропущенным строкам.
func DescriptorsFromRows(rows [][]string) ([]model.FileDescriptor, []error) {
	if len(rows) < 2 {
		return nil, nil
	}

	var (
		records []model.FileDescriptor
		errs    []error
	)
	for i, row := range rows[1:] {
		rowNum := i + 2
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = strings.TrimSpace(c)
		}

		if len(cells) != 3 {
			errs = append(errs, &RowError{Row: rowNum, Cells: cells, Reason: "ожидалось 3 ячейки"})
			continue
		}

		seq, err := strconv.ParseUint(cells[0], 10, 32)
		if err != nil {
			errs = append(errs, &RowError{Row: rowNum, Cells: cells, Reason: "некорректный порядковый номер"})
			continue
		}
		fileCount, err := strconv.ParseUint(cells[2], 10, 32)
		if err != nil {
			errs = append(errs, &RowError{Row: rowNum, Cells: cells, Reason: "некорректное количество файлов"})
			continue
		}

		name, chiDescr := splitChinese(cells[1])

		m := reVideoID.FindStringSubmatch(name)
		if m == nil {
			errs = append(errs, &RowError{Row: rowNum, Cells: cells, Reason: "код события не распознан"})
			continue
		}

		records = append(records, model.FileDescriptor{
			ID:        "zsv" + m[1] + "-" + model.PadEventIndex(m[2]),
			Seq:       uint32(seq),
			EngDescr:  FormatEnglish(strings.TrimPrefix(name, m[0])),
			ChiDescr:  chiDescr,
			FileCount: uint32(fileCount),
		})
	}
	return records, errs
}

// splitChinese делит ячейку на латинскую часть и китайское описание,
// начинающееся с первого иероглифа.
func splitChinese(full string) (name, chinese string) {
	for i, r := range full {
		if IsChinese(r) {
			return strings.TrimSpace(full[:i]), strings.TrimSpace(full[i:])
		}
	}
	return strings.TrimSpace(full), ""
}
