package service

import (
	"archive/zip"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/media-gateway/internal/storage/metastore"
)

// testLogger возвращает логгер для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// openTestStore открывает Metadata Store во временной директории.
func openTestStore(t *testing.T) *metastore.Store {
	t.Helper()
	s, err := metastore.Open(context.Background(), filepath.Join(t.TempDir(), "webfs.db"), testLogger())
	if err != nil {
		t.Fatalf("Ошибка открытия Metadata Store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// docxRow — строка таблицы описаний: номер, название, количество файлов.
type docxRow [3]string

// writeDescDocx создаёт docx с таблицей описаний в каталоге dir.
func writeDescDocx(t *testing.T, dir, name string, rows ...docxRow) string {
	t.Helper()

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:tbl>`)
	all := append([]docxRow{{"順序", "錄影內容", "檔案數量"}}, rows...)
	for _, row := range all {
		b.WriteString("<w:tr>")
		for _, cell := range row {
			b.WriteString(`<w:tc><w:p><w:r><w:t xml:space="preserve">` + cell + `</w:t></w:r></w:p></w:tc>`)
		}
		b.WriteString("</w:tr>")
	}
	b.WriteString(`</w:tbl></w:body></w:document>`)

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Ошибка создания docx: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("Ошибка создания записи архива: %v", err)
	}
	if _, err := w.Write([]byte(b.String())); err != nil {
		t.Fatalf("Ошибка записи document.xml: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Ошибка закрытия архива: %v", err)
	}
	return path
}

// writeMediaFile создаёт медиафайл с указанным временем изменения.
func writeMediaFile(t *testing.T, dir, name string, mod time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("media "+name), 0o644); err != nil {
		t.Fatalf("Ошибка создания медиафайла: %v", err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("Ошибка установки времени файла: %v", err)
	}
}
