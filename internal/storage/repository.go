package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"candle-diff/internal/reconcile"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

// candle_diffs mirrors the current artifact window: one row per grid minute,
// keyed by minute_ts, nullable NUMERIC price columns.
const (
	upsertDiffRowSQL = `INSERT INTO candle_diffs (
        minute_ts,
        binance_mark_close,
        reya_close,
        abs_diff,
        diff_pct,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (minute_ts) DO UPDATE
    SET
        binance_mark_close = EXCLUDED.binance_mark_close,
        reya_close         = EXCLUDED.reya_close,
        abs_diff           = EXCLUDED.abs_diff,
        diff_pct           = EXCLUDED.diff_pct,
        updated_at         = EXCLUDED.updated_at;`

	pruneDiffRowsSQL = `DELETE FROM candle_diffs WHERE minute_ts < $1;`
)

// DiffRowStore defines the persistence operations used by the run pipeline.
type DiffRowStore interface {
	ReplaceWindow(ctx context.Context, windowStartMS int64, rows []reconcile.Row) error
}

// Store mirrors reconciled windows into PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// ReplaceWindow upserts every row keyed by minute and prunes rows older than
// the window start, in one transaction. The table always reflects the latest
// run's window, never an accumulating history.
func (s *Store) ReplaceWindow(ctx context.Context, windowStartMS int64, rows []reconcile.Row) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace window: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(upsertDiffRowSQL,
			time.UnixMilli(row.MinuteMS).UTC(),
			decArg(row.BinanceClose),
			decArg(row.ReyaClose),
			decArg(row.AbsDiff),
			decArg(row.DiffPct),
			row.UpdatedAt.UTC(),
		)
	}
	batch.Queue(pruneDiffRowsSQL, time.UnixMilli(windowStartMS).UTC())

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("replace window (%d rows): %w", len(rows), err)
	}
	return tx.Commit(ctx)
}

// decArg renders a nullable decimal as a query argument, NULL when absent.
func decArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

var _ DiffRowStore = (*Store)(nil)
