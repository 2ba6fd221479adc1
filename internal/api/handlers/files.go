// files.go — HTTP handler /fs/v1: листинги каналов и каталогов, отдача файлов.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/media-gateway/internal/api/errors"
	"github.com/bigkaa/goartstore/media-gateway/internal/api/middleware"
	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
	"github.com/bigkaa/goartstore/media-gateway/internal/service"
	"github.com/bigkaa/goartstore/media-gateway/internal/storage/filestore"
)

// defaultLang — язык листинга каталога вне настроенных каналов.
const defaultLang = "zh"

// ChannelDirectory — настроенные каналы и каналы для произвольных каталогов.
type ChannelDirectory interface {
	Channel(lang, name string) (model.Channel, bool)
	FolderChannel(lang, dir string) (model.Channel, error)
}

// ChannelLister собирает листинг канала.
type ChannelLister interface {
	Listing(ctx context.Context, ch model.Channel) (model.Channel, error)
}

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	channels    ChannelDirectory
	lister      ChannelLister
	downloadSvc *service.DownloadService
	// basePath — корень для пользователей без папки
	basePath string
	logger   *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(
	channels ChannelDirectory,
	lister ChannelLister,
	downloadSvc *service.DownloadService,
	basePath string,
	logger *slog.Logger,
) *FilesHandler {
	return &FilesHandler{
		channels:    channels,
		lister:      lister,
		downloadSvc: downloadSvc,
		basePath:    basePath,
		logger:      logger.With(slog.String("component", "files_handler")),
	}
}

// target — разрешённый путь запроса.
type target struct {
	lang string
	// root и rel — корень и относительный путь внутри него
	root string
	rel  string
	// channel — настроенный канал, если запрошен его корень
	channel *model.Channel
}

// resolve разбирает путь запроса. Пути вида zh/<канал>/... и en/<канал>/...
// относятся к настроенным каналам, остальные — к папке пользователя.
func (h *FilesHandler) resolve(path string, folder *model.Folder) (*target, bool) {
	path = strings.Trim(path, "/")

	lang, rest, _ := strings.Cut(path, "/")
	if lang == "zh" || lang == "en" {
		name, rel, _ := strings.Cut(rest, "/")
		ch, ok := h.channels.Channel(lang, name)
		if !ok || ch.FilePath == "" {
			return nil, false
		}
		t := &target{lang: lang, root: ch.FilePath, rel: rel}
		if rel == "" {
			t.channel = &ch
		}
		return t, true
	}

	root := h.basePath
	if folder != nil && folder.BaseFilePath != "" {
		root = folder.BaseFilePath
	}
	return &target{lang: defaultLang, root: root, rel: path}, true
}

// Get обрабатывает GET /fs/v1/ и GET /fs/v1/*.
// Каталог возвращается листингом канала в JSON, файл — содержимым.
func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.ResultFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "no token")
		return
	}

	t, ok := h.resolve(chi.URLParam(r, "*"), res.Folder)
	if !ok {
		apierrors.ValidationError(w, "Invalid path format")
		return
	}

	store, err := filestore.New(t.root)
	if err != nil {
		apierrors.InternalError(w, "Некорректный корень папки")
		return
	}
	full, info, err := store.Stat(t.rel)
	if err != nil {
		if !errors.Is(err, filestore.ErrNotFound) && !errors.Is(err, filestore.ErrOutsideRoot) {
			h.logger.Warn("Ошибка доступа к файлу",
				slog.String("path", t.rel),
				slog.String("error", err.Error()),
			)
		}
		apierrors.NotFound(w, "File not found")
		return
	}

	if !info.IsDir() {
		if dlErr := h.downloadSvc.Serve(w, r, t.root, t.rel); dlErr != nil {
			apierrors.WriteError(w, dlErr.StatusCode, dlErr.Code, dlErr.Message)
		}
		return
	}

	var ch model.Channel
	if t.channel != nil {
		ch = *t.channel
	} else {
		ch, err = h.channels.FolderChannel(t.lang, full)
		if err != nil {
			h.logger.Error("Ошибка построения канала каталога",
				slog.String("dir", full),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Failed to get folder info")
			return
		}
	}

	h.logger.Info("Листинг каталога",
		slog.String("lang", t.lang),
		slog.String("dir", full),
		slog.String("folder", res.FolderName()),
	)
	listing, err := h.lister.Listing(r.Context(), ch)
	if err != nil {
		h.logger.Error("Ошибка листинга",
			slog.String("channel", ch.CacheID()),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Failed to read directory")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}
