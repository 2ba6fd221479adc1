// extraction.go — фоновое извлечение описаний событий из docx-файлов.
//
// Каждый тик:
//  1. Список файлов каталога описаний, подходящих под шаблон имени
//  2. Отбор новых файлов (нет в таблице filenames), сортировка по имени
//  3. Для каждого нового файла: таблица docx → FileDescriptor → пакетная вставка
//  4. Просмотренные имена отмечаются в filenames, даже при ошибках разбора.
//     Файл, описания которого не удалось сохранить, не отмечается и
//     обрабатывается снова на следующем тике.
//
// Тик, начавшийся во время выполнения предыдущего, пропускается.
package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/media-gateway/internal/docx"
	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/media-gateway/internal/media"
)

// Prometheus метрики извлечения описаний
var (
	extractionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mg_extraction_runs_total",
		Help: "Количество тиков извлечения описаний",
	}, []string{"result"})

	extractionDescriptorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mg_extraction_descriptors_total",
		Help: "Количество сохранённых описаний событий",
	})

	extractionRowErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mg_extraction_row_errors_total",
		Help: "Количество пропущенных строк docx-таблиц",
	})

	extractionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mg_extraction_duration_seconds",
		Help:    "Длительность тика извлечения описаний в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// DescriptorStore — операции Metadata Store, нужные извлечению описаний.
type DescriptorStore interface {
	FilenameExists(ctx context.Context, name string) (bool, error)
	InsertFileDescs(ctx context.Context, descs []model.FileDescriptor) error
	InsertFilenames(ctx context.Context, names []string) error
}

// ExtractionResult — результат одного тика.
type ExtractionResult struct {
	// Scanned — файлов, подходящих под шаблон
	Scanned int `json:"scanned"`
	// NewFiles — файлов, обработанных впервые
	NewFiles int `json:"new_files"`
	// Descriptors — сохранённых описаний
	Descriptors int `json:"descriptors"`
	// RowErrors — пропущенных строк таблиц
	RowErrors int `json:"row_errors"`
	// FileErrors — файлов, которые не удалось прочитать или сохранить
	FileErrors int           `json:"file_errors"`
	Duration   time.Duration `json:"duration_ns"`
}

// ExtractionService — сервис извлечения описаний событий.
type ExtractionService struct {
	store     DescriptorStore
	watchPath string
	pattern   *regexp.Regexp
	interval  time.Duration
	logger    *slog.Logger

	mu        sync.Mutex // защита флага inProcess
	inProcess bool       // тик в процессе выполнения
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewExtractionService создаёт сервис извлечения описаний.
func NewExtractionService(
	store DescriptorStore,
	watchPath string,
	pattern *regexp.Regexp,
	interval time.Duration,
	logger *slog.Logger,
) *ExtractionService {
	return &ExtractionService{
		store:     store,
		watchPath: watchPath,
		pattern:   pattern,
		interval:  interval,
		logger:    logger.With(slog.String("component", "extraction")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
func (es *ExtractionService) Start(ctx context.Context) {
	esCtx, cancel := context.WithCancel(ctx)
	es.cancel = cancel
	es.done = make(chan struct{})

	go es.run(esCtx)

	es.logger.Info("Извлечение описаний запущено",
		slog.String("watch_path", es.watchPath),
		slog.String("pattern", es.pattern.String()),
		slog.String("interval", es.interval.String()),
	)
}

// Stop останавливает фоновый процесс и ждёт завершения текущего тика.
func (es *ExtractionService) Stop() {
	if es.cancel != nil {
		es.cancel()
		<-es.done
	}
	es.logger.Info("Извлечение описаний остановлено")
}

// IsInProgress возвращает true, если тик выполняется.
func (es *ExtractionService) IsInProgress() bool {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.inProcess
}

// run — основной цикл фоновой горутины.
func (es *ExtractionService) run(ctx context.Context) {
	defer close(es.done)

	// Первый тик — сразу после старта
	es.RunOnce(ctx)

	ticker := time.NewTicker(es.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			es.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один тик извлечения.
// Если тик уже выполняется, возвращает nil, true.
func (es *ExtractionService) RunOnce(ctx context.Context) (*ExtractionResult, bool) {
	es.mu.Lock()
	if es.inProcess {
		es.mu.Unlock()
		es.logger.Warn("Извлечение описаний уже выполняется, пропуск тика")
		extractionRunsTotal.WithLabelValues("skipped").Inc()
		return nil, true
	}
	es.inProcess = true
	es.mu.Unlock()

	defer func() {
		es.mu.Lock()
		es.inProcess = false
		es.mu.Unlock()
	}()

	start := time.Now()
	result, err := es.extract(ctx)
	result.Duration = time.Since(start)
	extractionDurationSeconds.Observe(result.Duration.Seconds())

	if err != nil {
		extractionRunsTotal.WithLabelValues("error").Inc()
		es.logger.Error("Ошибка извлечения описаний",
			slog.String("error", err.Error()),
		)
		return result, false
	}
	extractionRunsTotal.WithLabelValues("ok").Inc()

	if result.NewFiles > 0 {
		es.logger.Info("Извлечение описаний завершено",
			slog.Int("scanned", result.Scanned),
			slog.Int("new_files", result.NewFiles),
			slog.Int("descriptors", result.Descriptors),
			slog.Int("row_errors", result.RowErrors),
			slog.Int("file_errors", result.FileErrors),
			slog.Duration("duration", result.Duration),
		)
	}
	return result, false
}

// extract сканирует каталог и обрабатывает новые файлы.
// Ошибка возвращается только при сбое Metadata Store или отмене контекста.
func (es *ExtractionService) extract(ctx context.Context) (*ExtractionResult, error) {
	result := &ExtractionResult{}

	names, err := es.scan()
	if err != nil {
		return result, err
	}
	result.Scanned = len(names)

	var fresh []string
	for _, name := range names {
		exists, err := es.store.FilenameExists(ctx, name)
		if err != nil {
			return result, err
		}
		if !exists {
			fresh = append(fresh, name)
		}
	}
	sort.Strings(fresh)

	// unsaved — файлы, описания которых не записаны в Metadata Store
	unsaved := make(map[string]struct{})
	for _, name := range fresh {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.NewFiles++

		path := filepath.Join(es.watchPath, name)
		rows, err := docx.ReadTable(path)
		if err != nil {
			es.logger.Error("Ошибка чтения docx-описания",
				slog.String("file", path),
				slog.String("error", err.Error()),
			)
			result.FileErrors++
			continue
		}

		descs, rowErrs := media.DescriptorsFromRows(rows)
		for _, rowErr := range rowErrs {
			es.logger.Warn("Строка таблицы пропущена",
				slog.String("file", name),
				slog.String("error", rowErr.Error()),
			)
		}
		result.RowErrors += len(rowErrs)
		extractionRowErrorsTotal.Add(float64(len(rowErrs)))

		if err := es.store.InsertFileDescs(ctx, descs); err != nil {
			es.logger.Error("Ошибка сохранения описаний",
				slog.String("file", name),
				slog.String("error", err.Error()),
			)
			result.FileErrors++
			unsaved[name] = struct{}{}
			continue
		}
		result.Descriptors += len(descs)
		extractionDescriptorsTotal.Add(float64(len(descs)))

		es.logger.Info("Описания прочитаны",
			slog.String("file", name),
			slog.Int("count", len(descs)),
		)
	}

	seen := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := unsaved[name]; !ok {
			seen = append(seen, name)
		}
	}
	if len(seen) > 0 {
		if err := es.store.InsertFilenames(ctx, seen); err != nil {
			return result, err
		}
	}
	return result, nil
}

// scan возвращает имена обычных файлов каталога, подходящих под шаблон.
// Отсутствующий каталог даёт пустой список.
func (es *ExtractionService) scan() ([]string, error) {
	entries, err := os.ReadDir(es.watchPath)
	if err != nil {
		if os.IsNotExist(err) {
			es.logger.Warn("Каталог описаний не найден",
				slog.String("watch_path", es.watchPath),
			)
			return nil, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if es.pattern.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
