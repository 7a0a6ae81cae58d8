// Package postgres хранилище движка синхронизации в PostgreSQL (pgxpool)
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/tx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Storage реализует ports.Store
type Storage struct {
	pool *pgxpool.Pool
	tx   tx.TxManager
}

// NewStorage подключается к PostgreSQL по строке подключения
func NewStorage(ctx context.Context, connectionString string, logger interfaces.LoggerPort) (*Storage, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return NewStorageWithPool(ctx, pool, logger)
}

func NewStorageWithPool(ctx context.Context, pool *pgxpool.Pool, logger interfaces.LoggerPort) (*Storage, error) {
	if pool == nil {
		return nil, errors.New("pool is nil")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Storage{pool: pool, tx: tx.NewTxManager(pool, logger)}, nil
}

func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

type executor interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// getExecutor возвращает транзакцию из контекста или пул
func (s *Storage) getExecutor(ctx context.Context) executor {
	if t, ok := tx.GetTxFromContext(ctx); ok {
		return t
	}
	return s.pool
}

// ---------- variant_lookup ----------

func (s *Storage) GetLookup(ctx context.Context, sku string) (*models.LookupRecord, error) {
	rec := models.LookupRecord{SKU: sku}
	err := s.getExecutor(ctx).QueryRow(ctx,
		`SELECT product_id, variant_id FROM variant_lookup WHERE sku = $1`, sku,
	).Scan(&rec.ProductID, &rec.VariantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lookup: %w", err)
	}
	return &rec, nil
}

func (s *Storage) UpsertLookup(ctx context.Context, rec *models.LookupRecord) error {
	_, err := s.getExecutor(ctx).Exec(ctx, `
		INSERT INTO variant_lookup (sku, product_id, variant_id, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (sku) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			variant_id = EXCLUDED.variant_id,
			updated_at = now()`,
		rec.SKU, rec.ProductID, rec.VariantID)
	if err != nil {
		return fmt.Errorf("failed to upsert lookup: %w", err)
	}
	return nil
}

func (s *Storage) ClearLookup(ctx context.Context) error {
	if _, err := s.getExecutor(ctx).Exec(ctx, `TRUNCATE variant_lookup`); err != nil {
		return fmt.Errorf("failed to clear lookup: %w", err)
	}
	return nil
}

// ---------- image_tracking ----------

func (s *Storage) ListImages(ctx context.Context, sku string) ([]*models.ImageTrackingRecord, error) {
	rows, err := s.getExecutor(ctx).Query(ctx, `
		SELECT sku, product_id, pim_image_url, pim_filename, remote_image_url, remote_image_id, created_at
		FROM image_tracking WHERE sku = $1 ORDER BY id`, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var out []*models.ImageTrackingRecord
	for rows.Next() {
		var r models.ImageTrackingRecord
		if err := rows.Scan(&r.SKU, &r.ProductID, &r.PIMImageURL, &r.PIMFilename,
			&r.RemoteImageURL, &r.RemoteImageID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *Storage) DeleteImages(ctx context.Context, sku string) error {
	if _, err := s.getExecutor(ctx).Exec(ctx, `DELETE FROM image_tracking WHERE sku = $1`, sku); err != nil {
		return fmt.Errorf("failed to delete images: %w", err)
	}
	return nil
}

func (s *Storage) SaveImage(ctx context.Context, rec *models.ImageTrackingRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.getExecutor(ctx).Exec(ctx, `
		INSERT INTO image_tracking (sku, product_id, pim_image_url, pim_filename, remote_image_url, remote_image_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sku, pim_filename) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			pim_image_url = EXCLUDED.pim_image_url,
			remote_image_url = EXCLUDED.remote_image_url,
			remote_image_id = EXCLUDED.remote_image_id`,
		rec.SKU, rec.ProductID, rec.PIMImageURL, rec.PIMFilename, rec.RemoteImageURL, rec.RemoteImageID, createdAt)
	if err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// ---------- exclusions ----------

func (s *Storage) ListExclusions(ctx context.Context) ([]*models.Exclusion, error) {
	rows, err := s.getExecutor(ctx).Query(ctx, `SELECT sku, reason, created_at FROM exclusions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list exclusions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Exclusion, 0)
	for rows.Next() {
		var e models.Exclusion
		if err := rows.Scan(&e.SKU, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan exclusion: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Storage) SaveExclusion(ctx context.Context, e *models.Exclusion) error {
	_, err := s.getExecutor(ctx).Exec(ctx, `
		INSERT INTO exclusions (sku, reason, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (sku) DO UPDATE SET reason = EXCLUDED.reason`,
		e.SKU, e.Reason, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save exclusion: %w", err)
	}
	return nil
}

func (s *Storage) DeleteExclusion(ctx context.Context, sku string) error {
	if _, err := s.getExecutor(ctx).Exec(ctx, `DELETE FROM exclusions WHERE sku = $1`, sku); err != nil {
		return fmt.Errorf("failed to delete exclusion: %w", err)
	}
	return nil
}

func (s *Storage) IsExcluded(ctx context.Context, sku string) (bool, error) {
	var exists bool
	err := s.getExecutor(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM exclusions WHERE sku = $1)`, sku).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check exclusion: %w", err)
	}
	return exists, nil
}
