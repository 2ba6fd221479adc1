// mime.go — таблица MIME-типов по расширению и классификация типа медиа.
package media

import (
	"path/filepath"
	"strings"
)

// mimeTypes — MIME-типы по расширению файла (нижний регистр, без точки).
var mimeTypes = map[string]string{
	// Видео
	"mp4":  "video/mp4",
	"avi":  "video/x-msvideo",
	"wmv":  "video/x-ms-wmv",
	"mkv":  "video/x-matroska",
	"mov":  "video/quicktime",
	"flv":  "video/x-flv",
	"webm": "video/webm",
	"m4v":  "video/x-m4v",
	"3gp":  "video/3gpp",
	"mpg":  "video/mpeg",
	"mpeg": "video/mpeg",
	// Аудио
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"flac": "audio/flac",
	"aac":  "audio/aac",
	"ogg":  "audio/ogg",
	"wma":  "audio/x-ms-wma",
	"m4a":  "audio/mp4",
	"opus": "audio/opus",
	// Изображения
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
	"svg":  "image/svg+xml",
	"webp": "image/webp",
	// Документы
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"txt":  "text/plain",
	"rtf":  "application/rtf",
	// Архивы
	"zip": "application/zip",
	"rar": "application/x-rar-compressed",
	"7z":  "application/x-7z-compressed",
	"tar": "application/x-tar",
	"gz":  "application/gzip",
	// Прочее
	"json": "application/json",
	"xml":  "application/xml",
	"html": "text/html",
	"css":  "text/css",
	"js":   "application/javascript",
}

// DefaultMimeType — тип для неизвестных расширений.
const DefaultMimeType = "application/octet-stream"

// MimeType возвращает MIME-тип файла по расширению.
func MimeType(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if mt, ok := mimeTypes[ext]; ok {
		return mt
	}
	return DefaultMimeType
}

// MediaType классифицирует файл: video, audio, image, archive, blob или unknown.
func MediaType(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	mt, ok := mimeTypes[ext]
	if !ok {
		return "unknown"
	}
	switch {
	case strings.HasPrefix(mt, "video/"):
		return "video"
	case strings.HasPrefix(mt, "audio/"):
		return "audio"
	case strings.HasPrefix(mt, "image/"):
		return "image"
	}
	switch ext {
	case "zip", "rar", "7z", "tar", "gz":
		return "archive"
	}
	return "blob"
}
