package media

import (
	"errors"
	"testing"
)

// TestFormatEnglish проверяет нормализацию английских описаний.
func TestFormatEnglish(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SundayService", "Sunday Service"},
		{"Sunday Service", "Sunday Service"},
		{"Day1Prayer", "Day 1 Prayer"},
		{"Prayer,Worship", "Prayer, Worship"},
		{"Tom&Jerry", "Tom & Jerry"},
		{"Youth--Camp", "Youth Camp"},
		{"ALC588WMM", "ALC/588/WMM"},
		{"Meeting-250101", "Meeting 2025-01-01"},
	}
	for _, tt := range tests {
		if got := FormatEnglish(tt.in); got != tt.want {
			t.Errorf("FormatEnglish(%q) = %q, ожидалось %q", tt.in, got, tt.want)
		}
	}
}

// TestDescriptorsFromRows проверяет разбор строк таблицы описаний.
func TestDescriptorsFromRows(t *testing.T) {
	rows := [][]string{
		{"順序", "錄影內容", "檔案數量"},
		{"1", "zsv250101-3-Sunday Service 主日崇拜", "12"},
		{" 2 ", "zsv250101e-12a-2-SundayService-Worship 晚間敬拜", "3"},
	}

	records, errs := DescriptorsFromRows(rows)
	if len(errs) != 0 {
		t.Fatalf("ошибок быть не должно, получено %v", errs)
	}
	if len(records) != 2 {
		t.Fatalf("ожидалось 2 записи, получено %d", len(records))
	}

	first := records[0]
	if first.ID != "zsv250101-03" {
		t.Errorf("ожидался ID zsv250101-03, получен %q", first.ID)
	}
	if first.Seq != 1 || first.FileCount != 12 {
		t.Errorf("ожидались seq 1 и count 12, получены %d и %d", first.Seq, first.FileCount)
	}
	if first.EngDescr != "Sunday Service" {
		t.Errorf("неверное английское описание: %q", first.EngDescr)
	}
	if first.ChiDescr != "主日崇拜" {
		t.Errorf("неверное китайское описание: %q", first.ChiDescr)
	}

	second := records[1]
	if second.ID != "zsv250101e-12a" {
		t.Errorf("ожидался ID zsv250101e-12a, получен %q", second.ID)
	}
	if second.Seq != 2 {
		t.Errorf("ожидался seq 2, получен %d", second.Seq)
	}
	if second.EngDescr != "Sunday Service Worship" {
		t.Errorf("неверное английское описание: %q", second.EngDescr)
	}
}

// TestDescriptorsFromRows_BadRows проверяет, что некорректные строки пропускаются.
func TestDescriptorsFromRows_BadRows(t *testing.T) {
	rows := [][]string{
		{"順序", "錄影內容", "檔案數量"},
		{"x", "zsv250101-3-Service", "1"},
		{"3", "only two"},
		{"4", "no event id", "1"},
		{"5", "zsv250101-4-Prayer 禱告", "many"},
		{"6", "zsv250101-5-Prayer 禱告", "2"},
	}

	records, errs := DescriptorsFromRows(rows)
	if len(records) != 1 {
		t.Fatalf("ожидалась 1 запись, получено %d", len(records))
	}
	if records[0].ID != "zsv250101-05" {
		t.Errorf("ожидался ID zsv250101-05, получен %q", records[0].ID)
	}
	if len(errs) != 4 {
		t.Fatalf("ожидалось 4 ошибки, получено %d", len(errs))
	}

	var rowErr *RowError
	if !errors.As(errs[0], &rowErr) {
		t.Fatalf("ожидалась *RowError, получена %T", errs[0])
	}
	if rowErr.Row != 2 {
		t.Errorf("ожидалась строка 2, получена %d", rowErr.Row)
	}
}

// TestDescriptorsFromRows_HeaderOnly проверяет таблицу без данных.
func TestDescriptorsFromRows_HeaderOnly(t *testing.T) {
	records, errs := DescriptorsFromRows([][]string{{"順序", "錄影內容", "檔案數量"}})
	if len(records) != 0 || len(errs) != 0 {
		t.Errorf("ожидался пустой результат, получено %d записей и %d ошибок", len(records), len(errs))
	}
}
