// Package sqlite хранилище движка синхронизации в одном файле SQLite.
// Время хранится в миллисекундах Unix
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS variant_lookup (
	sku        TEXT PRIMARY KEY,
	product_id INTEGER NOT NULL,
	variant_id INTEGER,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS image_tracking (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	sku              TEXT NOT NULL,
	product_id       INTEGER NOT NULL,
	pim_image_url    TEXT NOT NULL,
	pim_filename     TEXT NOT NULL,
	remote_image_url TEXT NOT NULL DEFAULT '',
	remote_image_id  INTEGER NOT NULL,
	created_at       INTEGER NOT NULL,
	UNIQUE (sku, pim_filename)
);
CREATE TABLE IF NOT EXISTS import_runs (
	id           TEXT PRIMARY KEY,
	started_at   INTEGER NOT NULL,
	finished_at  INTEGER,
	triggered_by TEXT NOT NULL,
	created      INTEGER NOT NULL DEFAULT 0,
	updated      INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	duration_ms  INTEGER
);
CREATE INDEX IF NOT EXISTS import_runs_started_at_idx ON import_runs (started_at);
CREATE TABLE IF NOT EXISTS import_items (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES import_runs (id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	sku        TEXT NOT NULL,
	op         TEXT NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS import_items_run_idx ON import_items (run_id, seq);
CREATE TABLE IF NOT EXISTS brands (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS suppliers (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS exclusions (
	sku        TEXT PRIMARY KEY,
	reason     TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
`

type txKey struct{}

// Storage реализует ports.Store
type Storage struct {
	db *sql.DB
}

// NewStorage открывает файл базы. ":memory:" допустим для тестов
func NewStorage(ctx context.Context, path string) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// один писатель, иначе SQLITE_BUSY под нагрузкой
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error {
	return s.db.Close()
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *Storage) getExecutor(ctx context.Context) executor {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// WithTx выполняет fn в транзакции; вложенный вызов использует внешнюю
func (s *Storage) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tx.Begin failed: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tx.Commit failed: %w", err)
	}
	return nil
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().UnixMilli()
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ---------- variant_lookup ----------

func (s *Storage) GetLookup(ctx context.Context, sku string) (*models.LookupRecord, error) {
	rec := models.LookupRecord{SKU: sku}
	var variantID sql.NullInt64
	err := s.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT product_id, variant_id FROM variant_lookup WHERE sku = ?`, sku,
	).Scan(&rec.ProductID, &variantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lookup: %w", err)
	}
	if variantID.Valid {
		v := variantID.Int64
		rec.VariantID = &v
	}
	return &rec, nil
}

func (s *Storage) UpsertLookup(ctx context.Context, rec *models.LookupRecord) error {
	var variantID sql.NullInt64
	if rec.VariantID != nil {
		variantID = sql.NullInt64{Int64: *rec.VariantID, Valid: true}
	}
	_, err := s.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO variant_lookup (sku, product_id, variant_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(sku) DO UPDATE SET
			product_id = excluded.product_id,
			variant_id = excluded.variant_id,
			updated_at = excluded.updated_at`,
		rec.SKU, rec.ProductID, variantID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert lookup: %w", err)
	}
	return nil
}

func (s *Storage) ClearLookup(ctx context.Context) error {
	if _, err := s.getExecutor(ctx).ExecContext(ctx, `DELETE FROM variant_lookup`); err != nil {
		return fmt.Errorf("failed to clear lookup: %w", err)
	}
	return nil
}

// ---------- image_tracking ----------

func (s *Storage) ListImages(ctx context.Context, sku string) ([]*models.ImageTrackingRecord, error) {
	rows, err := s.getExecutor(ctx).QueryContext(ctx, `
		SELECT sku, product_id, pim_image_url, pim_filename, remote_image_url, remote_image_id, created_at
		FROM image_tracking WHERE sku = ? ORDER BY id`, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	out := make([]*models.ImageTrackingRecord, 0)
	for rows.Next() {
		var (
			r       models.ImageTrackingRecord
			created int64
		)
		if err := rows.Scan(&r.SKU, &r.ProductID, &r.PIMImageURL, &r.PIMFilename,
			&r.RemoteImageURL, &r.RemoteImageID, &created); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		r.CreatedAt = fromMillis(created)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *Storage) DeleteImages(ctx context.Context, sku string) error {
	if _, err := s.getExecutor(ctx).ExecContext(ctx, `DELETE FROM image_tracking WHERE sku = ?`, sku); err != nil {
		return fmt.Errorf("failed to delete images: %w", err)
	}
	return nil
}

func (s *Storage) SaveImage(ctx context.Context, rec *models.ImageTrackingRecord) error {
	_, err := s.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO image_tracking (sku, product_id, pim_image_url, pim_filename, remote_image_url, remote_image_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sku, pim_filename) DO UPDATE SET
			product_id = excluded.product_id,
			pim_image_url = excluded.pim_image_url,
			remote_image_url = excluded.remote_image_url,
			remote_image_id = excluded.remote_image_id`,
		rec.SKU, rec.ProductID, rec.PIMImageURL, rec.PIMFilename, rec.RemoteImageURL, rec.RemoteImageID, millis(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// ---------- exclusions ----------

func (s *Storage) ListExclusions(ctx context.Context) ([]*models.Exclusion, error) {
	rows, err := s.getExecutor(ctx).QueryContext(ctx,
		`SELECT sku, reason, created_at FROM exclusions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list exclusions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Exclusion, 0)
	for rows.Next() {
		var (
			e       models.Exclusion
			created int64
		)
		if err := rows.Scan(&e.SKU, &e.Reason, &created); err != nil {
			return nil, fmt.Errorf("failed to scan exclusion: %w", err)
		}
		e.CreatedAt = fromMillis(created)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Storage) SaveExclusion(ctx context.Context, e *models.Exclusion) error {
	_, err := s.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO exclusions (sku, reason, created_at) VALUES (?, ?, ?)
		ON CONFLICT(sku) DO UPDATE SET reason = excluded.reason`,
		e.SKU, e.Reason, millis(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save exclusion: %w", err)
	}
	return nil
}

func (s *Storage) DeleteExclusion(ctx context.Context, sku string) error {
	if _, err := s.getExecutor(ctx).ExecContext(ctx, `DELETE FROM exclusions WHERE sku = ?`, sku); err != nil {
		return fmt.Errorf("failed to delete exclusion: %w", err)
	}
	return nil
}

func (s *Storage) IsExcluded(ctx context.Context, sku string) (bool, error) {
	var n int
	err := s.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT count(*) FROM exclusions WHERE sku = ?`, sku).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check exclusion: %w", err)
	}
	return n > 0, nil
}

// ---------- brands / suppliers ----------

func table(kind models.DirectoryKind) (string, error) {
	switch kind {
	case models.Brands, models.Suppliers:
		return string(kind), nil
	}
	return "", fmt.Errorf("%w: directory %q", utils.ErrValidationMissing, kind)
}

func (s *Storage) UpsertReference(ctx context.Context, kind models.DirectoryKind, ref models.Reference) error {
	t, err := table(kind)
	if err != nil {
		return err
	}
	_, err = s.getExecutor(ctx).ExecContext(ctx,
		`INSERT INTO `+t+` (id, name) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		ref.ID, ref.Title)
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", t, err)
	}
	return nil
}

func (s *Storage) FindReferenceID(ctx context.Context, kind models.DirectoryKind, name string) (int64, bool, error) {
	t, err := table(kind)
	if err != nil {
		return 0, false, err
	}
	var id int64
	err = s.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT id FROM `+t+` WHERE lower(trim(name)) = lower(trim(?)) ORDER BY id LIMIT 1`, name).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to find %s: %w", t, err)
	}
	return id, true, nil
}

func (s *Storage) FindReferenceName(ctx context.Context, kind models.DirectoryKind, id int64) (string, bool, error) {
	t, err := table(kind)
	if err != nil {
		return "", false, err
	}
	var name string
	err = s.getExecutor(ctx).QueryRowContext(ctx, `SELECT name FROM `+t+` WHERE id = ?`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get %s: %w", t, err)
	}
	return name, true, nil
}

func (s *Storage) ClearDirectory(ctx context.Context, kind models.DirectoryKind) error {
	t, err := table(kind)
	if err != nil {
		return err
	}
	if _, err := s.getExecutor(ctx).ExecContext(ctx, `DELETE FROM `+t); err != nil {
		return fmt.Errorf("failed to clear %s: %w", t, err)
	}
	return nil
}
