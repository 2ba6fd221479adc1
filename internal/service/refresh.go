// refresh.go — конвейер обновления листингов каналов.
//
// Три стадии, связанные ограниченными каналами Go:
//  1. scan — по тикеру сканирует каталоги настроенных каналов
//  2. gate — подставляет описания из Metadata Store и пропускает дальше
//     только изменившиеся каналы (сравнение с Channel Cache)
//  3. publish — записывает RSS и сохраняет снимок канала в Metadata Store
//
// Переполненный канал блокирует предыдущую стадию, данные не теряются.
// Отмена контекста останавливает все стадии.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/media-gateway/internal/rss"
)

// defaultRSSDays — глубина RSS при MG_RSS_DAYS=0.
const defaultRSSDays = 7

// Prometheus метрики конвейера листингов
var (
	refreshChannelsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mg_refresh_channels_total",
		Help: "Количество каналов, прошедших стадию конвейера листингов",
	}, []string{"stage", "result"})

	refreshScanDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mg_refresh_scan_duration_seconds",
		Help:    "Длительность сканирования каталогов каналов в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// ListingStore — операции Metadata Store, нужные конвейеру листингов.
type ListingStore interface {
	DescriptorReader
	InsertChannel(ctx context.Context, ch *model.Channel) error
}

// RefreshService — конвейер обновления листингов.
type RefreshService struct {
	channels []model.Channel
	store    ListingStore
	cache    *ChannelCache
	interval time.Duration
	buffer   int
	rssDays  int
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex // защита флага inProcess
	inProcess bool       // сканирование в процессе выполнения
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewRefreshService создаёт конвейер для каналов channels.
// rssDays — глубина RSS в днях (0 — 7 дней); buffer — ёмкость каналов между стадиями.
func NewRefreshService(
	channels []model.Channel,
	store ListingStore,
	cache *ChannelCache,
	interval time.Duration,
	buffer int,
	rssDays int,
	logger *slog.Logger,
) *RefreshService {
	if rssDays == 0 {
		rssDays = defaultRSSDays
	}
	if buffer < 1 {
		buffer = 1
	}
	return &RefreshService{
		channels: channels,
		store:    store,
		cache:    cache,
		interval: interval,
		buffer:   buffer,
		rssDays:  rssDays,
		logger:   logger.With(slog.String("component", "refresh")),
		now:      time.Now,
	}
}

// Start запускает стадии конвейера в фоне.
func (rs *RefreshService) Start(ctx context.Context) {
	rsCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel
	rs.done = make(chan struct{})

	go func() {
		defer close(rs.done)
		if err := rs.Run(rsCtx); err != nil && rsCtx.Err() == nil {
			rs.logger.Error("Конвейер листингов остановлен с ошибкой",
				slog.String("error", err.Error()),
			)
		}
	}()

	rs.logger.Info("Конвейер листингов запущен",
		slog.Int("channels", len(rs.channels)),
		slog.Int("rss_days", rs.rssDays),
		slog.String("interval", rs.interval.String()),
	)
}

// Stop останавливает конвейер и ждёт завершения стадий.
func (rs *RefreshService) Stop() {
	if rs.cancel != nil {
		rs.cancel()
		<-rs.done
	}
	rs.logger.Info("Конвейер листингов остановлен")
}

// Run выполняет конвейер до отмены ctx.
func (rs *RefreshService) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	scanned := make(chan model.Channel, rs.buffer)
	changed := make(chan model.Channel, rs.buffer)

	g.Go(func() error {
		defer close(scanned)

		// Первый тик — сразу после старта
		if _, err := rs.ScanOnce(gctx, scanned); err != nil {
			return err
		}

		ticker := time.NewTicker(rs.interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if _, err := rs.ScanOnce(gctx, scanned); err != nil {
					return err
				}
			}
		}
	})

	g.Go(func() error {
		defer close(changed)
		return rs.gateStage(gctx, scanned, changed)
	})

	g.Go(func() error {
		for ch := range changed {
			rs.Publish(gctx, ch)
		}
		return nil
	})

	return g.Wait()
}

// ScanOnce сканирует каталоги всех каналов и отправляет их в out.
// Если сканирование уже выполняется, возвращает true (пропуск).
// Ошибка возвращается только при отмене ctx.
func (rs *RefreshService) ScanOnce(ctx context.Context, out chan<- model.Channel) (bool, error) {
	rs.mu.Lock()
	if rs.inProcess {
		rs.mu.Unlock()
		rs.logger.Warn("Сканирование каналов уже выполняется, пропуск тика")
		return true, nil
	}
	rs.inProcess = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProcess = false
		rs.mu.Unlock()
	}()

	start := time.Now()
	defer func() { refreshScanDurationSeconds.Observe(time.Since(start).Seconds()) }()

	for _, ch := range rs.channels {
		id := ch.CacheID()
		raw, err := ScanChannel(ch)
		if err != nil {
			rs.logger.Error("Ошибка сканирования канала",
				slog.String("channel", id),
				slog.String("error", err.Error()),
			)
			refreshChannelsTotal.WithLabelValues("scan", "error").Inc()
			continue
		}
		if len(raw.Entries) == 0 {
			rs.logger.Warn("В каталоге канала нет файлов",
				slog.String("channel", id),
				slog.String("file_path", ch.FilePath),
			)
			refreshChannelsTotal.WithLabelValues("scan", "empty").Inc()
			continue
		}
		refreshChannelsTotal.WithLabelValues("scan", "ok").Inc()

		select {
		case out <- raw:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return false, nil
}

// gateStage пропускает в out только изменившиеся каналы.
func (rs *RefreshService) gateStage(ctx context.Context, in <-chan model.Channel, out chan<- model.Channel) error {
	for raw := range in {
		merged, isChanged, err := rs.Gate(ctx, raw)
		if err != nil {
			rs.logger.Error("Ошибка подстановки описаний",
				slog.String("channel", raw.CacheID()),
				slog.String("error", err.Error()),
			)
			refreshChannelsTotal.WithLabelValues("gate", "error").Inc()
			continue
		}
		if !isChanged {
			refreshChannelsTotal.WithLabelValues("gate", "unchanged").Inc()
			continue
		}
		refreshChannelsTotal.WithLabelValues("gate", "changed").Inc()

		select {
		case out <- merged:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Gate подставляет описания и сравнивает результат с кэшированным снимком.
// При изменении снимок заменяется в Channel Cache и возвращается true.
func (rs *RefreshService) Gate(ctx context.Context, raw model.Channel) (model.Channel, bool, error) {
	id := raw.CacheID()

	var prev *model.Channel
	if p, ok := rs.cache.Peek(id); ok {
		prev = &p
	}

	merged, err := MergeDescriptions(ctx, rs.store, raw, prev)
	if err != nil {
		return raw, false, err
	}
	if merged.ListingEqual(prev) {
		return merged, false, nil
	}

	rs.cache.Put(id, merged)
	rs.logger.Debug("Канал изменился",
		slog.String("channel", id),
		slog.Int("entries", len(merged.Entries)),
	)
	return merged, true, nil
}

// Publish записывает RSS канала и сохраняет снимок в Metadata Store.
// Ошибки логируются; канал будет опубликован при следующем изменении.
func (rs *RefreshService) Publish(ctx context.Context, ch model.Channel) {
	id := ch.CacheID()
	now := rs.now().UTC()
	since := model.Date(now.Year(), now.Month(), now.Day()).AddDate(0, 0, -rs.rssDays)

	if ch.OutputPath != "" {
		res, err := rss.WriteChannel(&ch, since, now)
		if err != nil {
			rs.logger.Error("Ошибка записи RSS",
				slog.String("channel", id),
				slog.String("error", err.Error()),
			)
			refreshChannelsTotal.WithLabelValues("publish", "error").Inc()
		} else {
			rs.logger.Info("RSS записан",
				slog.String("channel", id),
				slog.String("path", res.FullPath),
				slog.Int64("size", res.Size),
			)
		}
	}

	if err := rs.store.InsertChannel(ctx, &ch); err != nil {
		rs.logger.Error("Ошибка сохранения снимка канала",
			slog.String("channel", id),
			slog.String("error", err.Error()),
		)
		refreshChannelsTotal.WithLabelValues("publish", "error").Inc()
		return
	}
	refreshChannelsTotal.WithLabelValues("publish", "ok").Inc()
}
