package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
)

const runColumns = `id, started_at, finished_at, triggered_by, created, updated, failed, duration_ms`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*models.ImportRun, error) {
	var (
		r          models.ImportRun
		started    int64
		finished   sql.NullInt64
		durationMs sql.NullInt64
	)
	if err := row.Scan(&r.ID, &started, &finished, &r.TriggeredBy,
		&r.Created, &r.Updated, &r.Failed, &durationMs); err != nil {
		return nil, err
	}
	r.StartedAt = fromMillis(started)
	if finished.Valid {
		t := fromMillis(finished.Int64)
		r.FinishedAt = &t
	}
	if durationMs.Valid {
		d := durationMs.Int64
		r.DurationMs = &d
	}
	return &r, nil
}

func (s *Storage) CreateRun(ctx context.Context, run *models.ImportRun) error {
	_, err := s.getExecutor(ctx).ExecContext(ctx,
		`INSERT INTO import_runs (id, started_at, triggered_by) VALUES (?, ?, ?)`,
		run.ID, millis(run.StartedAt), run.TriggeredBy)
	if err != nil {
		return fmt.Errorf("failed to create import run: %w", err)
	}
	return nil
}

// AppendItem вставляет элемент и увеличивает счетчик прогона в одной транзакции
func (s *Storage) AppendItem(ctx context.Context, item *models.ImportItem) error {
	counter := item.CounterColumn()
	return s.WithTx(ctx, func(ctx context.Context) error {
		ex := s.getExecutor(ctx)
		res, err := ex.ExecContext(ctx,
			fmt.Sprintf(`UPDATE import_runs SET %[1]s = %[1]s + 1 WHERE id = ?`, counter), item.RunID)
		if err != nil {
			return fmt.Errorf("failed to update run counters: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return utils.ErrRunNotFound
		}
		_, err = ex.ExecContext(ctx, `
			INSERT INTO import_items (id, run_id, seq, sku, op, status, message, created_at)
			VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM import_items WHERE run_id = ?), ?, ?, ?, ?, ?)`,
			item.ID, item.RunID, item.RunID, item.SKU, item.Op, item.Status, item.Message, millis(item.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert import item: %w", err)
		}
		return nil
	})
}

func (s *Storage) FinishRun(ctx context.Context, runID string, finishedAt time.Time) (*models.ImportRun, error) {
	var out *models.ImportRun
	err := s.WithTx(ctx, func(ctx context.Context) error {
		ex := s.getExecutor(ctx)
		run, err := scanRun(ex.QueryRowContext(ctx,
			`SELECT `+runColumns+` FROM import_runs WHERE id = ?`, runID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return utils.ErrRunNotFound
			}
			return fmt.Errorf("failed to get import run: %w", err)
		}
		if run.FinishedAt != nil {
			return utils.ErrRunAlreadyFinished
		}
		duration := finishedAt.Sub(run.StartedAt).Milliseconds()
		res, err := ex.ExecContext(ctx,
			`UPDATE import_runs SET finished_at = ?, duration_ms = ? WHERE id = ? AND finished_at IS NULL`,
			finishedAt.UnixMilli(), duration, runID)
		if err != nil {
			return fmt.Errorf("failed to finish import run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return utils.ErrRunAlreadyFinished
		}
		fin := fromMillis(finishedAt.UnixMilli())
		run.FinishedAt = &fin
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
	run, err := scanRun(s.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM import_runs WHERE id = ?`, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get import run: %w", err)
	}
	return run, nil
}

func (s *Storage) ListRecentRuns(ctx context.Context, limit int) ([]*models.ImportRun, error) {
	rows, err := s.getExecutor(ctx).QueryContext(ctx,
		`SELECT `+runColumns+` FROM import_runs ORDER BY started_at DESC LIMIT ?`, limit)
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
	if err := ex.QueryRowContext(ctx, `SELECT count(*) FROM import_items WHERE run_id = ?`, runID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count import items: %w", err)
	}

	rows, err := ex.QueryContext(ctx, `
		SELECT id, run_id, sku, op, status, message, created_at
		FROM import_items WHERE run_id = ?
		ORDER BY seq
		LIMIT ? OFFSET ?`, runID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list import items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.ImportItem, 0, limit)
	for rows.Next() {
		var (
			it      models.ImportItem
			created int64
		)
		if err := rows.Scan(&it.ID, &it.RunID, &it.SKU, &it.Op, &it.Status, &it.Message, &created); err != nil {
			return nil, 0, fmt.Errorf("failed to scan import item: %w", err)
		}
		it.CreatedAt = fromMillis(created)
		items = append(items, &it)
	}
	return items, total, rows.Err()
}
