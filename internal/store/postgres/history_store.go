package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianhq/riskwatch/internal/domain"
)

// HistoryStore implements domain.HistoryStore using PostgreSQL. The tables
// are append-only; nothing in the engine ever mutates a recorded row.
type HistoryStore struct {
	pool *pgxpool.Pool
}

// NewHistoryStore creates a new HistoryStore backed by the given connection
// pool.
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// RecordClosedPosition persists a position that transitioned to closed. The
// insert is idempotent on the position ID so a re-applied close is harmless.
func (s *HistoryStore) RecordClosedPosition(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO closed_positions (
			id, symbol, side, entry_price, exit_price, quantity,
			leverage, realized_pnl, opened_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`

	closedAt := time.Now().UTC()
	if p.ClosedAt != nil {
		closedAt = *p.ClosedAt
	}
	leverage := p.Leverage
	if leverage <= 1 {
		leverage = 1
	}

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.Symbol, string(p.Side),
		p.EntryPrice, p.CurrentPrice, p.Quantity,
		leverage, p.UnrealizedPnL,
		p.OpenedAt, closedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record closed position %s: %w", p.ID, err)
	}
	return nil
}

// RecordAlert persists a raised alert.
func (s *HistoryStore) RecordAlert(ctx context.Context, a domain.Alert) error {
	const query = `
		INSERT INTO alert_history (
			id, category, severity, symbol, value, threshold, raised_at, acknowledged
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		a.ID, string(a.Category), string(a.Severity), a.Symbol,
		a.Value, a.Threshold, a.Timestamp, a.Acknowledged,
	)
	if err != nil {
		return fmt.Errorf("postgres: record alert %s: %w", a.ID, err)
	}
	return nil
}

// ListClosedPositions returns up to limit closed positions, newest first.
func (s *HistoryStore) ListClosedPositions(ctx context.Context, limit int) ([]domain.Position, error) {
	const query = `
		SELECT id, symbol, side, entry_price, exit_price, quantity,
		       leverage, realized_pnl, opened_at, closed_at
		FROM closed_positions
		ORDER BY closed_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var side string
		var closedAt time.Time

		if err := rows.Scan(
			&p.ID, &p.Symbol, &side,
			&p.EntryPrice, &p.CurrentPrice, &p.Quantity,
			&p.Leverage, &p.UnrealizedPnL,
			&p.OpenedAt, &closedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan closed position: %w", err)
		}
		p.Side = domain.Side(side)
		p.Status = domain.PositionStatusClosed
		p.ClosedAt = &closedAt
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list closed positions: %w", err)
	}
	return positions, nil
}

// ListAlerts returns up to limit recorded alerts, newest first.
func (s *HistoryStore) ListAlerts(ctx context.Context, limit int) ([]domain.Alert, error) {
	const query = `
		SELECT id, category, severity, symbol, value, threshold, raised_at, acknowledged
		FROM alert_history
		ORDER BY raised_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var category, severity string

		if err := rows.Scan(
			&a.ID, &category, &severity, &a.Symbol,
			&a.Value, &a.Threshold, &a.Timestamp, &a.Acknowledged,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan alert: %w", err)
		}
		a.Category = domain.AlertCategory(category)
		a.Severity = domain.AlertSeverity(severity)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list alerts: %w", err)
	}
	return alerts, nil
}

// Compile-time interface check.
var _ domain.HistoryStore = (*HistoryStore)(nil)
