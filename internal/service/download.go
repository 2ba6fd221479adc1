// download.go — сервис отдачи медиафайлов из папки пользователя.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/bigkaa/goartstore/media-gateway/internal/api/errors"
	"github.com/bigkaa/goartstore/media-gateway/internal/media"
	"github.com/bigkaa/goartstore/media-gateway/internal/storage/filestore"
)

var downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mg_downloads_total",
	Help: "Количество запросов на отдачу файлов",
}, []string{"result"})

// DownloadService — сервис отдачи файлов.
type DownloadService struct {
	logger *slog.Logger
}

// NewDownloadService создаёт сервис отдачи файлов.
func NewDownloadService(logger *slog.Logger) *DownloadService {
	return &DownloadService{
		logger: logger.With(slog.String("component", "download_service")),
	}
}

// DownloadError — ошибка отдачи файла с HTTP-кодом.
type DownloadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func notFound() *DownloadError {
	return &DownloadError{
		StatusCode: http.StatusNotFound,
		Code:       apierrors.CodeNotFound,
		Message:    "File not found",
	}
}

// Serve отдаёт файл rel из корня root через http.ServeContent.
// Поддерживает Range requests (206 Partial Content) и ETag (If-None-Match).
// Каталоги и пути за пределами корня считаются отсутствующими.
func (s *DownloadService) Serve(w http.ResponseWriter, r *http.Request, root, rel string) *DownloadError {
	store, err := filestore.New(root)
	if err != nil {
		downloadsTotal.WithLabelValues("error").Inc()
		return &DownloadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Некорректный корень папки",
		}
	}

	file, err := store.Open(rel)
	if err != nil {
		downloadsTotal.WithLabelValues("not_found").Inc()
		if !errors.Is(err, filestore.ErrNotFound) && !errors.Is(err, filestore.ErrOutsideRoot) {
			s.logger.Warn("Ошибка открытия файла",
				slog.String("path", rel),
				slog.String("error", err.Error()),
			)
		}
		return notFound()
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		downloadsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Ошибка получения stat файла",
			slog.String("path", rel),
			slog.String("error", err.Error()),
		)
		return &DownloadError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка чтения файла",
		}
	}
	if stat.IsDir() {
		downloadsTotal.WithLabelValues("not_found").Inc()
		return notFound()
	}

	w.Header().Set("Content-Type", media.MimeType(stat.Name()))
	w.Header().Set("ETag", "\""+strconv.FormatInt(stat.ModTime().UnixNano(), 36)+"-"+strconv.FormatInt(stat.Size(), 36)+"\"")
	w.Header().Set("Accept-Ranges", "bytes")

	http.ServeContent(w, r, stat.Name(), stat.ModTime(), file)
	downloadsTotal.WithLabelValues("success").Inc()

	s.logger.Debug("Файл отдан",
		slog.String("path", rel),
		slog.Int64("size", stat.Size()),
	)
	return nil
}
