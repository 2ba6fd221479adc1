// Пакет metastore — Metadata Store на SQLite: просмотренные docx-файлы,
// описания событий и снимки каналов. Значения хранятся как JSON.
// Каждая операция записи — отдельная транзакция.
package metastore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/bigkaa/goartstore/media-gateway/internal/domain/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound — запись не найдена.
var ErrNotFound = errors.New("запись не найдена")

// Store — Metadata Store.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open создаёт каталог базы, применяет миграции и открывает подключение.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию базы %s: %w", dir, err)
		}
	}

	if err := Migrate(path, logger); err != nil {
		return nil, err
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия SQLite %s: %w", path, err)
	}
	// SQLite допускает одного писателя
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка подключения к SQLite %s: %w", path, err)
	}

	logger.Info("Metadata Store открыт", slog.String("path", path))
	return &Store{
		db:     db,
		path:   path,
		logger: logger.With(slog.String("component", "metastore")),
	}, nil
}

// Migrate применяет SQL-миграции из embedded FS к файлу базы.
func Migrate(path string, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, "sqlite://"+path)
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Миграции применены",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// Close закрывает подключение.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping проверяет доступность базы.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CheckReady проверяет базу для readiness probe.
// Возвращает статус ("ok", "fail") и сообщение.
func (s *Store) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := s.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("SQLite недоступна: %v", err)
	}
	return "ok", "подключение активно"
}

// runInTx выполняет fn в транзакции. Ошибка fn откатывает транзакцию.
func (s *Store) runInTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // откат после коммита — no-op

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// --- filedesc ---

const upsertFileDesc = `INSERT OR REPLACE INTO filedesc (id, data) VALUES (?, ?)`

// InsertFileDesc сохраняет описание события. Запись с тем же ID заменяется.
func (s *Store) InsertFileDesc(ctx context.Context, d model.FileDescriptor) error {
	return s.InsertFileDescs(ctx, []model.FileDescriptor{d})
}

// InsertFileDescs сохраняет описания одной транзакцией: либо все, либо ни одного.
func (s *Store) InsertFileDescs(ctx context.Context, descs []model.FileDescriptor) error {
	if len(descs) == 0 {
		return nil
	}
	return s.runInTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertFileDesc)
		if err != nil {
			return fmt.Errorf("ошибка подготовки вставки filedesc: %w", err)
		}
		defer stmt.Close()

		for _, d := range descs {
			data, err := json.Marshal(d)
			if err != nil {
				return fmt.Errorf("ошибка сериализации описания %s: %w", d.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, d.ID, string(data)); err != nil {
				return fmt.Errorf("ошибка вставки описания %s: %w", d.ID, err)
			}
		}
		return nil
	})
}

// GetFileDesc возвращает описание события по ID.
func (s *Store) GetFileDesc(ctx context.Context, id string) (*model.FileDescriptor, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM filedesc WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения описания %s: %w", id, err)
	}

	var d model.FileDescriptor
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("ошибка разбора описания %s: %w", id, err)
	}
	return &d, nil
}

// GetFileDescs возвращает найденные описания по набору ID.
// Отсутствующие ID в результат не попадают.
func (s *Store) GetFileDescs(ctx context.Context, ids []string) (map[string]model.FileDescriptor, error) {
	out := make(map[string]model.FileDescriptor, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		args = append(args, id)
	}
	if len(args) == 0 {
		return out, nil
	}

	query := `SELECT id, data FROM filedesc WHERE id IN (?` + strings.Repeat(",?", len(args)-1) + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения описаний: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("ошибка чтения описания: %w", err)
		}
		var d model.FileDescriptor
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			s.logger.Warn("Повреждённое описание пропущено",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		out[id] = d
	}
	return out, rows.Err()
}

// --- filenames ---

// FilenameExists сообщает, обработан ли docx-файл.
func (s *Store) FilenameExists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM filenames WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка проверки файла %s: %w", name, err)
	}
	return true, nil
}

// InsertFilename отмечает файл как обработанный.
func (s *Store) InsertFilename(ctx context.Context, name string) error {
	return s.InsertFilenames(ctx, []string{name})
}

// InsertFilenames отмечает файлы как обработанные одной транзакцией.
func (s *Store) InsertFilenames(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	return s.runInTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO filenames (name) VALUES (?)`)
		if err != nil {
			return fmt.Errorf("ошибка подготовки вставки filenames: %w", err)
		}
		defer stmt.Close()

		for _, name := range names {
			if _, err := stmt.ExecContext(ctx, name); err != nil {
				return fmt.Errorf("ошибка вставки файла %s: %w", name, err)
			}
		}
		return nil
	})
}

// --- channel ---

// InsertChannel сохраняет снимок канала под ключом lang/name.
func (s *Store) InsertChannel(ctx context.Context, ch *model.Channel) error {
	data, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("ошибка сериализации канала %s: %w", ch.CacheID(), err)
	}
	return s.runInTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO channel (id, data, updated_at) VALUES (?, ?, ?)`,
			ch.CacheID(), string(data), time.Now().Unix(),
		)
		if err != nil {
			return fmt.Errorf("ошибка сохранения канала %s: %w", ch.CacheID(), err)
		}
		return nil
	})
}

// GetChannel возвращает сохранённый снимок канала.
func (s *Store) GetChannel(ctx context.Context, id string) (*model.Channel, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM channel WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения канала %s: %w", id, err)
	}

	var ch model.Channel
	if err := json.Unmarshal([]byte(data), &ch); err != nil {
		return nil, fmt.Errorf("ошибка разбора канала %s: %w", id, err)
	}
	return &ch, nil
}
