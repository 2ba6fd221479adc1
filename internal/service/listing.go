// listing.go — сборка листинга канала: сканирование каталога и подстановка
// описаний событий из Metadata Store.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/media-gateway/internal/media"
)

// DescriptorReader — чтение описаний событий из Metadata Store.
type DescriptorReader interface {
	GetFileDescs(ctx context.Context, ids []string) (map[string]model.FileDescriptor, error)
}

// ScanChannel читает каталог канала и возвращает канал с отфильтрованными
// и отсортированными записями (без описаний из docx).
func ScanChannel(ch model.Channel) (model.Channel, error) {
	entries, err := media.ReadChannelDir(&ch)
	if err != nil {
		return ch, fmt.Errorf("ошибка чтения каталога канала %s: %w", ch.CacheID(), err)
	}
	ch.SetEntries(entries, time.Time{})
	return ch, nil
}

// MergeDescriptions подставляет описания событий в записи канала.
//
// Язык копии zh берёт китайское описание, en — английское; к описанию
// добавляется метка события " (03-2)". Для zh при отсутствии описания
// сохраняется описание той же записи из предыдущего снимка prev.
func MergeDescriptions(ctx context.Context, store DescriptorReader, ch model.Channel, prev *model.Channel) (model.Channel, error) {
	out := ch.Clone()

	ids := make([]string, 0, len(out.Entries))
	for i := range out.Entries {
		if id := out.Entries[i].NormalizedEventID(media.EventIDPrefix); id != "" {
			ids = append(ids, id)
		}
	}
	descs, err := store.GetFileDescs(ctx, ids)
	if err != nil {
		return ch, fmt.Errorf("ошибка чтения описаний канала %s: %w", ch.CacheID(), err)
	}

	var previous map[string]string
	if prev != nil && out.CopyLang == "zh" {
		previous = make(map[string]string, len(prev.Entries))
		for i := range prev.Entries {
			previous[prev.Entries[i].NormalizedEventID(media.EventIDPrefix)] = prev.Entries[i].Description
		}
	}

	for i := range out.Entries {
		e := &out.Entries[i]
		key := e.NormalizedEventID(media.EventIDPrefix)

		desc, ok := descs[key]
		if !ok {
			if d, found := previous[key]; found {
				e.Description = d
			}
			continue
		}
		if text := desc.DescriptionFor(out.CopyLang); text != "" {
			e.Description = text + eventSuffix(e)
		}
	}
	return out, nil
}

// eventSuffix возвращает " (метка события)" или пустую строку.
func eventSuffix(e *model.MediaEntry) string {
	label := e.EventLabel()
	if label == "" {
		return ""
	}
	return " (" + label + ")"
}

// Lister собирает листинги каналов для HTTP-запросов.
type Lister struct {
	store  DescriptorReader
	cache  *ChannelCache
	logger *slog.Logger

	// writeBack — сохранять собранные листинги в кэш.
	// Включается, когда конвейер обновления листингов отключён.
	writeBack bool

	// scans — собственный кэш сканирований при выключенном writeBack.
	// Общий кэш в этом режиме пишет только конвейер обновления.
	scans *ChannelCache
}

// NewLister создаёт Lister.
func NewLister(store DescriptorReader, cache *ChannelCache, writeBack bool, logger *slog.Logger) *Lister {
	l := &Lister{
		store:     store,
		cache:     cache,
		writeBack: writeBack,
		logger:    logger.With(slog.String("component", "lister")),
	}
	if !writeBack {
		l.scans = NewChannelCache(cache.ttl, cache.now)
	}
	return l
}

// Listing возвращает канал с записями: из кэша, если запись свежая,
// иначе сканированием каталога и подстановкой описаний.
// Без writeBack результат сканирования живёт TTL в собственном кэше Lister.
func (l *Lister) Listing(ctx context.Context, ch model.Channel) (model.Channel, error) {
	id := ch.CacheID()
	if cached, ok := l.cache.Get(id); ok {
		l.logger.Debug("Листинг из кэша", slog.String("channel", id))
		return cached, nil
	}
	if l.scans != nil {
		if cached, ok := l.scans.Get(id); ok {
			l.logger.Debug("Листинг из кэша сканирований", slog.String("channel", id))
			return cached, nil
		}
	}

	raw, err := ScanChannel(ch)
	if err != nil {
		return ch, err
	}

	var prev *model.Channel
	if p, ok := l.cache.Peek(id); ok {
		prev = &p
	}
	merged, err := MergeDescriptions(ctx, l.store, raw, prev)
	if err != nil {
		return ch, err
	}

	if l.writeBack {
		l.cache.Put(id, merged)
	} else {
		l.scans.Put(id, merged)
	}
	return merged, nil
}
