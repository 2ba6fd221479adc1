// Пакет model — доменные модели media-gateway.
// FileDescriptor — запись, извлечённая из docx-описания видеоматериалов,
// хранится в таблице filedesc Metadata Store.
package model

// FileDescriptor — описание события, извлечённое из строки таблицы docx.
// Неизменяемо после сохранения. Повторная вставка с тем же ID заменяет
// запись целиком (last-write-wins).
type FileDescriptor struct {
	// ID — нормализованный идентификатор события (например, "zsv250101-03")
	ID string `json:"id"`

	// Seq — порядковый номер строки в документе
	Seq uint32 `json:"seq"`

	// EngDescr — английское описание после форматирования
	EngDescr string `json:"eng_descr"`

	// ChiDescr — китайское описание (начиная с первого иероглифа)
	ChiDescr string `json:"chi_descr"`

	// FileCount — количество файлов события
	FileCount uint32 `json:"file_count"`
}

// DescriptionFor возвращает описание на языке копии канала.
// Языки "zh*" берут китайское описание, "en*" — английское.
func (d FileDescriptor) DescriptionFor(lang string) string {
	switch {
	case len(lang) >= 2 && lang[:2] == "zh":
		return d.ChiDescr
	case len(lang) >= 2 && lang[:2] == "en":
		return d.EngDescr
	}
	return ""
}
