// internal/workers/capacity/record-decision/postgres.go
package recorddecision

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresSink appends decisions to an audit table.
type PostgresSink struct {
	db    *sql.DB
	table string
}

func NewPostgresSink(db *sql.DB, table string) *PostgresSink {
	return &PostgresSink{db: db, table: pq.QuoteIdentifier(table)}
}

func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id UUID PRIMARY KEY,
		capacity_date DATE NOT NULL,
		state TEXT NOT NULL,
		rule TEXT NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		technicians INTEGER NOT NULL,
		open_windows INTEGER NOT NULL,
		provider_windows INTEGER NOT NULL,
		express_windows INTEGER NOT NULL,
		degraded BOOLEAN NOT NULL,
		degraded_reason TEXT,
		request_id TEXT,
		computed_at TIMESTAMPTZ NOT NULL
	)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create decisions table: %w", err)
	}
	return nil
}

func (s *PostgresSink) Record(ctx context.Context, d *Decision) error {
	query := fmt.Sprintf(`INSERT INTO %s
		(id, capacity_date, state, rule, score, technicians, open_windows, provider_windows,
		 express_windows, degraded, degraded_reason, request_id, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, s.table)

	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.Date, d.State, d.Rule, d.Score, d.Technicians, d.OpenWindows, d.ProviderWindows,
		d.ExpressWindows, d.Degraded, nullString(d.DegradedReason), nullString(d.RequestID), d.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
