// channelcache.go — кэш собранных каналов (листинг + описания) с TTL.
//
// Запись заменяется целиком. Get учитывает TTL и используется при обработке
// запросов листинга, Peek игнорирует TTL и служит базой для сравнения
// в конвейере обновления листингов.
package service

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
)

// Prometheus-метрики кэша каналов.
var (
	channelCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mg_channel_cache_hits_total",
		Help: "Общее количество попаданий в кэш каналов.",
	})
	channelCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mg_channel_cache_misses_total",
		Help: "Общее количество промахов кэша каналов.",
	})
)

// cachedChannel — снимок канала и момент его сборки.
type cachedChannel struct {
	channel    model.Channel
	computedAt time.Time
}

// ChannelCache — потокобезопасный кэш каналов по ключу lang/name.
type ChannelCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cachedChannel
}

// NewChannelCache создаёт кэш с временем жизни записи ttl.
// now — источник времени; nil означает time.Now.
func NewChannelCache(ttl time.Duration, now func() time.Time) *ChannelCache {
	if now == nil {
		now = time.Now
	}
	return &ChannelCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cachedChannel),
	}
}

// Get возвращает копию канала, если запись моложе TTL.
func (c *ChannelCache) Get(id string) (model.Channel, bool) {
	now := c.now()

	c.mu.Lock()
	e, ok := c.entries[id]
	c.mu.Unlock()

	if !ok || now.Sub(e.computedAt) >= c.ttl {
		channelCacheMissesTotal.Inc()
		return model.Channel{}, false
	}
	channelCacheHitsTotal.Inc()
	return e.channel.Clone(), true
}

// Peek возвращает копию канала без учёта TTL.
func (c *ChannelCache) Peek(id string) (model.Channel, bool) {
	c.mu.Lock()
	e, ok := c.entries[id]
	c.mu.Unlock()

	if !ok {
		return model.Channel{}, false
	}
	return e.channel.Clone(), true
}

// Put заменяет запись id снимком ch с текущим временем сборки.
func (c *ChannelCache) Put(id string, ch model.Channel) {
	e := cachedChannel{channel: ch.Clone(), computedAt: c.now()}

	c.mu.Lock()
	c.entries[id] = e
	c.mu.Unlock()
}

// Len возвращает количество записей (включая устаревшие).
func (c *ChannelCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
