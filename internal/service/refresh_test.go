package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/media-gateway/internal/storage/metastore"
)

// countingStore считает сохранённые снимки каналов.
type countingStore struct {
	*metastore.Store
	channels atomic.Int32
}

func (c *countingStore) InsertChannel(ctx context.Context, ch *model.Channel) error {
	c.channels.Add(1)
	return c.Store.InsertChannel(ctx, ch)
}

// setupChannel создаёт каталог канала с тремя файлами и описание события zsv250101-03.
func setupChannel(t *testing.T, store *metastore.Store, lang string) model.Channel {
	t.Helper()

	dir := t.TempDir()
	mod := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	writeMediaFile(t, dir, "zsv250101-3-1.mp4", mod)
	writeMediaFile(t, dir, "zsv250101-3-2.mp4", mod)
	writeMediaFile(t, dir, "zsv250103-1.mp4", mod.AddDate(0, 0, 1))
	writeMediaFile(t, dir, "notes.txt", mod)

	if err := store.InsertFileDesc(context.Background(), model.FileDescriptor{
		ID: "zsv250101-03", Seq: 1, EngDescr: "Sunday Service", ChiDescr: "主日崇拜", FileCount: 2,
	}); err != nil {
		t.Fatalf("InsertFileDesc: %v", err)
	}

	return model.Channel{
		Name:            "video",
		CopyLang:        lang,
		Title:           "GJCC Video",
		Link:            "https://media.example.org/video",
		MediaLink:       "https://media.example.org/video/",
		ServerName:      "media",
		FilePath:        dir,
		FilterExtension: ".mp4",
		Language:        "en-us",
		OutputPath:      filepath.Join(t.TempDir(), "rss", "video.rss"),
	}
}

// descriptions возвращает описания записей по имени файла.
func descriptions(ch model.Channel) map[string]string {
	out := make(map[string]string, len(ch.Entries))
	for _, e := range ch.Entries {
		out[e.FileName] = e.Description
	}
	return out
}

func TestScanChannel(t *testing.T) {
	ch := setupChannel(t, openTestStore(t), "en")

	raw, err := ScanChannel(ch)
	if err != nil {
		t.Fatalf("ScanChannel: %v", err)
	}
	if len(raw.Entries) != 3 {
		t.Fatalf("ожидалось 3 записи .mp4, получено %d", len(raw.Entries))
	}
	if raw.Entries[0].FileName != "zsv250103-1.mp4" {
		t.Errorf("первой ожидалась самая новая запись, получена %q", raw.Entries[0].FileName)
	}

	ch.FilePath = filepath.Join(t.TempDir(), "missing")
	if _, err := ScanChannel(ch); err == nil {
		t.Error("ожидалась ошибка для отсутствующего каталога")
	}
}

func TestMergeDescriptions_Languages(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	tests := []struct {
		lang string
		want string
	}{
		{"en", "Sunday Service (03-1)"},
		{"zh", "主日崇拜 (03-1)"},
	}
	for _, tt := range tests {
		ch := setupChannel(t, store, tt.lang)
		raw, err := ScanChannel(ch)
		if err != nil {
			t.Fatalf("ScanChannel: %v", err)
		}

		merged, err := MergeDescriptions(ctx, store, raw, nil)
		if err != nil {
			t.Fatalf("MergeDescriptions: %v", err)
		}
		got := descriptions(merged)
		if got["zsv250101-3-1.mp4"] != tt.want {
			t.Errorf("%s: ожидалось %q, получено %q", tt.lang, tt.want, got["zsv250101-3-1.mp4"])
		}
		// Для события без описания остаётся описание по умолчанию
		if d := got["zsv250103-1.mp4"]; !strings.HasPrefix(d, "GJCC Video") {
			t.Errorf("%s: ожидалось описание по умолчанию, получено %q", tt.lang, d)
		}
		// Исходный канал не изменяется
		if strings.Contains(descriptions(raw)["zsv250101-3-1.mp4"], "Sunday Service") {
			t.Errorf("%s: MergeDescriptions изменил исходный канал", tt.lang)
		}
	}
}

// TestMergeDescriptions_ZhFallback проверяет сохранение описания из предыдущего снимка.
func TestMergeDescriptions_ZhFallback(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, lang := range []string{"zh", "en"} {
		ch := setupChannel(t, store, lang)
		raw, _ := ScanChannel(ch)

		prev := raw.Clone()
		for i := range prev.Entries {
			if prev.Entries[i].FileName == "zsv250103-1.mp4" {
				prev.Entries[i].Description = "舊描述"
			}
		}

		merged, err := MergeDescriptions(ctx, store, raw, &prev)
		if err != nil {
			t.Fatalf("MergeDescriptions: %v", err)
		}
		got := descriptions(merged)["zsv250103-1.mp4"]
		if lang == "zh" && got != "舊描述" {
			t.Errorf("zh: ожидалось описание из снимка, получено %q", got)
		}
		if lang == "en" && got == "舊描述" {
			t.Error("en: описание из снимка не должно подставляться")
		}
	}
}

func newTestRefresh(store ListingStore, channels []model.Channel, cache *ChannelCache) *RefreshService {
	rs := NewRefreshService(channels, store, cache, time.Hour, 10, 30, testLogger())
	rs.now = func() time.Time { return time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC) }
	return rs
}

// TestGate проверяет пропуск только изменившихся каналов.
func TestGate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ch := setupChannel(t, store, "en")
	cache := NewChannelCache(300*time.Second, nil)
	rs := newTestRefresh(store, []model.Channel{ch}, cache)

	raw, _ := ScanChannel(ch)
	merged, changed, err := rs.Gate(ctx, raw)
	if err != nil || !changed {
		t.Fatalf("первый снимок должен считаться изменением: %v, %v", changed, err)
	}
	if cached, ok := cache.Get("en/video"); !ok || !cached.ListingEqual(&merged) {
		t.Error("изменённый снимок должен попасть в кэш")
	}

	raw, _ = ScanChannel(ch)
	if _, changed, _ := rs.Gate(ctx, raw); changed {
		t.Error("повтор без изменений не должен пропускаться")
	}

	if err := store.InsertFileDesc(ctx, model.FileDescriptor{ID: "zsv250101-03", EngDescr: "Sunday Worship"}); err != nil {
		t.Fatal(err)
	}
	raw, _ = ScanChannel(ch)
	merged, changed, _ = rs.Gate(ctx, raw)
	if !changed {
		t.Fatal("изменение описания должно пропускаться")
	}
	if d := descriptions(merged)["zsv250101-3-2.mp4"]; d != "Sunday Worship (03-2)" {
		t.Errorf("неверное описание после изменения: %q", d)
	}
}

// TestScanAndGate_ForwardsOnce проверяет, что два одинаковых тика дают один снимок.
func TestScanAndGate_ForwardsOnce(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ch := setupChannel(t, store, "en")

	empty := model.Channel{Name: "empty", CopyLang: "en", FilePath: t.TempDir()}
	missing := model.Channel{Name: "missing", CopyLang: "en", FilePath: filepath.Join(t.TempDir(), "missing")}

	rs := newTestRefresh(store, []model.Channel{empty, ch, missing}, NewChannelCache(300*time.Second, nil))

	scanned := make(chan model.Channel, 10)
	for i := 0; i < 2; i++ {
		if skipped, err := rs.ScanOnce(ctx, scanned); skipped || err != nil {
			t.Fatalf("ScanOnce: skipped=%v, err=%v", skipped, err)
		}
	}
	close(scanned)
	if len(scanned) != 2 {
		t.Fatalf("ожидалось 2 просканированных канала (пустой и отсутствующий пропускаются), получено %d", len(scanned))
	}

	changed := make(chan model.Channel, 10)
	if err := rs.gateStage(ctx, scanned, changed); err != nil {
		t.Fatalf("gateStage: %v", err)
	}
	close(changed)
	if len(changed) != 1 {
		t.Errorf("ожидался 1 пропущенный снимок, получено %d", len(changed))
	}
}

func TestScanOnce_SkipWhileRunning(t *testing.T) {
	rs := newTestRefresh(openTestStore(t), nil, NewChannelCache(time.Minute, nil))
	rs.inProcess = true

	skipped, err := rs.ScanOnce(context.Background(), make(chan model.Channel, 1))
	if err != nil || !skipped {
		t.Errorf("ожидался пропуск тика: skipped=%v, err=%v", skipped, err)
	}
}

func TestScanOnce_CancelledWhileBlocked(t *testing.T) {
	store := openTestStore(t)
	ch := setupChannel(t, store, "en")
	rs := newTestRefresh(store, []model.Channel{ch, ch}, NewChannelCache(time.Minute, nil))

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan model.Channel) // без буфера и без читателя
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	if _, err := rs.ScanOnce(ctx, out); !errors.Is(err, context.Canceled) {
		t.Errorf("ожидалась context.Canceled, получено %v", err)
	}
}

func TestPublish(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ch := setupChannel(t, store, "en")
	rs := newTestRefresh(store, []model.Channel{ch}, NewChannelCache(time.Minute, nil))

	raw, _ := ScanChannel(ch)
	merged, _ := MergeDescriptions(ctx, store, raw, nil)
	rs.Publish(ctx, merged)

	data, err := os.ReadFile(ch.OutputPath)
	if err != nil {
		t.Fatalf("RSS не записан: %v", err)
	}
	if !strings.Contains(string(data), "Sunday Service (03-1)") {
		t.Error("RSS должен содержать описание из docx")
	}

	snap, err := store.GetChannel(ctx, "en/video")
	if err != nil {
		t.Fatalf("снимок канала не сохранён: %v", err)
	}
	if !snap.ListingEqual(&merged) {
		t.Error("сохранённый снимок не совпадает с опубликованным")
	}
}

// TestRun проверяет работу всех стадий конвейера и остановку по контексту.
func TestRun(t *testing.T) {
	base := openTestStore(t)
	store := &countingStore{Store: base}
	ch := setupChannel(t, base, "en")
	cache := NewChannelCache(300*time.Second, nil)
	rs := newTestRefresh(store, []model.Channel{ch}, cache)
	rs.interval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rs.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(ch.OutputPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("RSS не записан конвейером")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Несколько тиков без изменений не публикуют канал повторно
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("ожидалась context.Canceled, получено %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("конвейер не остановился после отмены контекста")
	}

	if n := store.channels.Load(); n != 1 {
		t.Errorf("ожидалась 1 публикация, получено %d", n)
	}
	if _, ok := cache.Peek("en/video"); !ok {
		t.Error("снимок канала должен быть в кэше")
	}
}

func TestLister(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, writeBack := range []bool{true, false} {
		ch := setupChannel(t, store, "en")
		cache := NewChannelCache(300*time.Second, nil)
		l := NewLister(store, cache, writeBack, testLogger())

		got, err := l.Listing(ctx, ch)
		if err != nil {
			t.Fatalf("Listing: %v", err)
		}
		if len(got.Entries) != 3 || descriptions(got)["zsv250101-3-1.mp4"] != "Sunday Service (03-1)" {
			t.Errorf("writeBack=%v: неверный листинг: %+v", writeBack, descriptions(got))
		}

		if err := os.Remove(filepath.Join(ch.FilePath, "zsv250103-1.mp4")); err != nil {
			t.Fatal(err)
		}
		again, err := l.Listing(ctx, ch)
		if err != nil {
			t.Fatalf("Listing: %v", err)
		}

		// Повторный запрос в пределах TTL обслуживается из кэша
		if len(again.Entries) != 3 {
			t.Errorf("writeBack=%v: ожидалось 3 записи из кэша, получено %d", writeBack, len(again.Entries))
		}

		wantShared := 0
		if writeBack {
			wantShared = 1
		}
		if n := cache.Len(); n != wantShared {
			t.Errorf("writeBack=%v: ожидалось %d записей в общем кэше, получено %d", writeBack, wantShared, n)
		}
	}
}

// TestLister_ScanCacheExpiry проверяет, что без writeBack сканирование
// повторяется только после TTL, а общий кэш остаётся за конвейером.
func TestLister_ScanCacheExpiry(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ch := setupChannel(t, store, "en")

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cache := NewChannelCache(time.Minute, func() time.Time { return now })
	l := NewLister(store, cache, false, testLogger())

	if _, err := l.Listing(ctx, ch); err != nil {
		t.Fatalf("Listing: %v", err)
	}
	if err := os.Remove(filepath.Join(ch.FilePath, "zsv250103-1.mp4")); err != nil {
		t.Fatal(err)
	}

	now = now.Add(30 * time.Second)
	got, err := l.Listing(ctx, ch)
	if err != nil {
		t.Fatalf("Listing: %v", err)
	}
	if len(got.Entries) != 3 {
		t.Errorf("до истечения TTL ожидался листинг из кэша (3 записи), получено %d", len(got.Entries))
	}

	now = now.Add(time.Minute)
	got, err = l.Listing(ctx, ch)
	if err != nil {
		t.Fatalf("Listing: %v", err)
	}
	if len(got.Entries) != 2 {
		t.Errorf("после TTL ожидалось повторное сканирование (2 записи), получено %d", len(got.Entries))
	}

	if _, ok := cache.Peek(ch.CacheID()); ok {
		t.Error("Lister без writeBack не должен писать в общий кэш")
	}

	// Снимок конвейера имеет приоритет над кэшем сканирований
	cache.Put(ch.CacheID(), model.Channel{Name: ch.Name, CopyLang: ch.CopyLang, Entries: []model.MediaEntry{{FileName: "pipeline.mp4"}}})
	got, err = l.Listing(ctx, ch)
	if err != nil {
		t.Fatalf("Listing: %v", err)
	}
	if len(got.Entries) != 1 || got.Entries[0].FileName != "pipeline.mp4" {
		t.Errorf("ожидался снимок конвейера, получено %+v", got.Entries)
	}
}

func TestLister_CacheHit(t *testing.T) {
	cache := NewChannelCache(300*time.Second, nil)
	ch := model.Channel{Name: "video", CopyLang: "en", FilePath: filepath.Join(t.TempDir(), "missing")}
	cache.Put("en/video", model.Channel{Name: "video", CopyLang: "en", Entries: []model.MediaEntry{{FileName: "cached.mp4"}}})

	l := NewLister(openTestStore(t), cache, false, testLogger())
	got, err := l.Listing(context.Background(), ch)
	if err != nil {
		t.Fatalf("свежая запись кэша не должна требовать сканирования: %v", err)
	}
	if len(got.Entries) != 1 || got.Entries[0].FileName != "cached.mp4" {
		t.Errorf("ожидался листинг из кэша, получено %+v", got.Entries)
	}
}
