// Пакет rss — запись каналов в RSS 2.0 (gorilla/feeds).
package rss

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/media-gateway/internal/media"
	"github.com/bigkaa/goartstore/media-gateway/internal/storage/filestore"
)

// Build строит RSS-канал из записей канала ch. Записи с датой публикации
// раньше since (если since не нулевая) пропускаются. now — lastBuildDate.
func Build(ch *model.Channel, since, now time.Time) *feeds.RssFeed {
	feed := &feeds.Feed{
		Title:       ch.Title,
		Link:        &feeds.Link{Href: ch.Link},
		Description: ch.Description,
		Updated:     now,
		Subtitle:    fmt.Sprintf("%s Pub: %s", ch.Title, now.Format(time.UnixDate)),
	}
	if ch.Author != "" {
		feed.Author = &feeds.Author{Name: ch.Author}
	}
	if ch.Image != "" {
		feed.Image = &feeds.Image{Url: ch.Image, Title: ch.Title, Link: ch.Link}
	}

	for i := range ch.Entries {
		e := &ch.Entries[i]
		if !since.IsZero() && e.PubDate.Before(since) {
			continue
		}
		feed.Add(item(e, ch))
	}

	out := (&feeds.Rss{Feed: feed}).RssFeed()
	out.Language = ch.Language
	out.Category = ch.Category
	out.Generator = ch.Generator
	return out
}

// item строит элемент RSS с enclosure на медиафайл.
func item(e *model.MediaEntry, ch *model.Channel) *feeds.Item {
	link := e.Link
	if link == "" {
		link = strings.TrimRight(ch.MediaLink, "/") + "/" + e.FileName
	}
	it := &feeds.Item{
		Title:       e.Title,
		Link:        &feeds.Link{Href: link},
		Description: e.Description,
		Id:          e.GUID,
		IsPermaLink: "false",
		Created:     e.PubDate,
		Enclosure: &feeds.Enclosure{
			Url:    link,
			Length: strconv.FormatInt(e.Size, 10),
			Type:   media.MimeType(e.FileName),
		},
	}
	if ch.Author != "" {
		it.Author = &feeds.Author{Name: ch.Author}
	}
	return it
}

// Write записывает RSS канала в w.
func Write(w io.Writer, ch *model.Channel, since, now time.Time) error {
	return feeds.WriteXML(Build(ch, since, now), w)
}

// WriteChannel атомарно записывает RSS канала в ch.OutputPath.
func WriteChannel(ch *model.Channel, since, now time.Time) (*filestore.SaveResult, error) {
	if ch.OutputPath == "" {
		return nil, fmt.Errorf("канал %s: не задан output_path", ch.CacheID())
	}

	var buf bytes.Buffer
	if err := Write(&buf, ch, since, now); err != nil {
		return nil, fmt.Errorf("ошибка формирования RSS канала %s: %w", ch.CacheID(), err)
	}
	return filestore.WriteAtomic(ch.OutputPath, &buf)
}
