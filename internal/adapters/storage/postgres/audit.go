package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/jackc/pgx/v5"
)

const runColumns = `id, started_at, finished_at, triggered_by, created, updated, failed, duration_ms`

func scanRun(row pgx.Row) (*models.ImportRun, error) {
	var r models.ImportRun
	if err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.TriggeredBy,
		&r.Created, &r.Updated, &r.Failed, &r.DurationMs); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Storage) CreateRun(ctx context.Context, run *models.ImportRun) error {
	_, err := s.getExecutor(ctx).Exec(ctx, `
		INSERT INTO import_runs (id, started_at, triggered_by) VALUES ($1, $2, $3)`,
		run.ID, run.StartedAt, run.TriggeredBy)
	if err != nil {
		return fmt.Errorf("failed to create import run: %w", err)
	}
	return nil
}

// AppendItem вставляет элемент и увеличивает счетчик прогона в одной транзакции
func (s *Storage) AppendItem(ctx context.Context, item *models.ImportItem) error {
	// имя колонки берется только из фиксированного набора CounterColumn
	counter := item.CounterColumn()
	return s.tx.Do(ctx, func(ctx context.Context) error {
		ex := s.getExecutor(ctx)
		tag, err := ex.Exec(ctx,
			fmt.Sprintf(`UPDATE import_runs SET %[1]s = %[1]s + 1 WHERE id = $1`, counter), item.RunID)
		if err != nil {
			return fmt.Errorf("failed to update run counters: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return utils.ErrRunNotFound
		}
		_, err = ex.Exec(ctx, `
			INSERT INTO import_items (id, run_id, sku, op, status, message, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.ID, item.RunID, item.SKU, item.Op, item.Status, item.Message, item.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert import item: %w", err)
		}
		return nil
	})
}

func (s *Storage) FinishRun(ctx context.Context, runID string, finishedAt time.Time) (*models.ImportRun, error) {
	var out *models.ImportRun
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		ex := s.getExecutor(ctx)
		run, err := scanRun(ex.QueryRow(ctx,
			`SELECT `+runColumns+` FROM import_runs WHERE id = $1 FOR UPDATE`, runID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return utils.ErrRunNotFound
			}
			return fmt.Errorf("failed to lock import run: %w", err)
		}
		if run.FinishedAt != nil {
			return utils.ErrRunAlreadyFinished
		}
		duration := finishedAt.Sub(run.StartedAt).Milliseconds()
		if _, err := ex.Exec(ctx,
			`UPDATE import_runs SET finished_at = $2, duration_ms = $3 WHERE id = $1`,
			runID, finishedAt, duration); err != nil {
			return fmt.Errorf("failed to finish import run: %w", err)
		}
		run.FinishedAt = &finishedAt
		run.DurationMs = &duration
		out = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Storage) GetRun(ctx context.Context, runID string) (*models.ImportRun, error) {
	run, err := scanRun(s.getExecutor(ctx).QueryRow(ctx,
		`SELECT `+runColumns+` FROM import_runs WHERE id = $1`, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get import run: %w", err)
	}
	return run, nil
}

func (s *Storage) ListRecentRuns(ctx context.Context, limit int) ([]*models.ImportRun, error) {
	rows, err := s.getExecutor(ctx).Query(ctx,
		`SELECT `+runColumns+` FROM import_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list import runs: %w", err)
	}
	defer rows.Close()

	out := make([]*models.ImportRun, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *Storage) ListItems(ctx context.Context, runID string, offset, limit int) ([]*models.ImportItem, int64, error) {
	ex := s.getExecutor(ctx)
	var total int64
	if err := ex.QueryRow(ctx, `SELECT count(*) FROM import_items WHERE run_id = $1`, runID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count import items: %w", err)
	}

	rows, err := ex.Query(ctx, `
		SELECT id, run_id, sku, op, status, message, created_at
		FROM import_items WHERE run_id = $1
		ORDER BY id
		OFFSET $2 LIMIT $3`, runID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list import items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.ImportItem, 0, limit)
	for rows.Next() {
		var it models.ImportItem
		if err := rows.Scan(&it.ID, &it.RunID, &it.SKU, &it.Op, &it.Status, &it.Message, &it.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan import item: %w", err)
		}
		items = append(items, &it)
	}
	return items, total, rows.Err()
}

// ---------- brands / suppliers ----------

// table имя таблицы справочника; только фиксированные значения
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
	_, err = s.getExecutor(ctx).Exec(ctx,
		`INSERT INTO `+t+` (id, name) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
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
	err = s.getExecutor(ctx).QueryRow(ctx,
		`SELECT id FROM `+t+` WHERE lower(trim(name)) = lower(trim($1)) ORDER BY id LIMIT 1`, name).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	err = s.getExecutor(ctx).QueryRow(ctx, `SELECT name FROM `+t+` WHERE id = $1`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	if _, err := s.getExecutor(ctx).Exec(ctx, `TRUNCATE `+t); err != nil {
		return fmt.Errorf("failed to clear %s: %w", t, err)
	}
	return nil
}
