// Пакет filestore — доступ к файлам медиакаталогов на диске.
// Обеспечивает разрешение относительных путей внутри корня без выхода
// за его пределы и атомарную запись выходных файлов с подсчётом SHA-256.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot — путь указывает за пределы корня.
var ErrOutsideRoot = errors.New("путь вне корневой директории")

// ErrNotFound — файл или каталог не существует.
var ErrNotFound = errors.New("файл не найден")

// FileStore — файлы внутри одной корневой директории.
type FileStore struct {
	// root — абсолютный путь корня (base_file_path папки или канала)
	root string
}

// SaveResult — результат атомарной записи файла.
type SaveResult struct {
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого файла
	Checksum string
}

// New создаёт FileStore для корня root. Директория не создаётся.
func New(root string) (*FileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("некорректный корень %s: %w", root, err)
	}
	return &FileStore{root: filepath.Clean(abs)}, nil
}

// Root возвращает абсолютный путь корня.
func (fs *FileStore) Root() string {
	return fs.root
}

// Resolve возвращает абсолютный путь для относительного rel.
// Пустой rel — сам корень. Пути с ".." за пределы корня отклоняются.
func (fs *FileStore) Resolve(rel string) (string, error) {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "/")
	full := filepath.Join(fs.root, filepath.FromSlash(rel))
	if full != fs.root && !strings.HasPrefix(full, fs.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	return full, nil
}

// Stat возвращает информацию о файле или каталоге rel.
func (fs *FileStore) Stat(rel string) (string, os.FileInfo, error) {
	full, err := fs.Resolve(rel)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return full, nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
		}
		return full, nil, fmt.Errorf("ошибка получения информации о файле %s: %w", rel, err)
	}
	return full, info, nil
}

// Open открывает файл rel для чтения. Вызывающий код обязан закрыть файл.
func (fs *FileStore) Open(rel string) (*os.File, error) {
	full, err := fs.Resolve(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", rel, err)
	}
	return f, nil
}

// WriteAtomic записывает данные из reader в path с подсчётом SHA-256 на лету.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется, существующий path не изменяется.
func WriteAtomic(path string, reader io.Reader) (*SaveResult, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := f.Name()

	hasher := sha256.New()
	size, err := io.Copy(f, io.TeeReader(reader, hasher))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка установки прав: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		FullPath: path,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// ComputeChecksum вычисляет SHA-256 хэш существующего файла.
func ComputeChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("ошибка вычисления checksum %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
