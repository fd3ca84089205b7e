package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"medcase-engine/internal/domain"
)

// CatalogLoader loads case and event JSONB from Postgres.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadCase(ctx context.Context, caseID string) (domain.Case, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM cases WHERE id=$1`, caseID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Case{}, domain.ErrCaseNotFound
	}
	if err != nil {
		return domain.Case{}, fmt.Errorf("load case: %w", err)
	}
	var c domain.Case
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.Case{}, fmt.Errorf("unmarshal case: %w", err)
	}
	return c, nil
}

func (l *CatalogLoader) LoadEvent(ctx context.Context, eventID string) (domain.Event, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM events WHERE id=$1`, eventID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, domain.ErrEventNotFound
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("load event: %w", err)
	}
	var event domain.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return domain.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
