package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kitbuilder587/crawldock/internal/domain"
)

const maxRecentLimit = 100

type SearchLogRepo struct {
	db *DB
}

func NewSearchLogRepo(db *DB) *SearchLogRepo {
	return &SearchLogRepo{db: db}
}

func (r *SearchLogRepo) Record(ctx context.Context, entry *domain.SearchLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	id, err := uuid.Parse(entry.ID)
	if err != nil {
		return fmt.Errorf("record search: invalid id %q: %w", entry.ID, err)
	}

	query := `
		INSERT INTO search_log (id, query, engine, status, result_count, error, processing_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		id,
		entry.Query,
		nullString(entry.Engine),
		string(entry.Status),
		entry.ResultCount,
		nullString(entry.Error),
		entry.ProcessingTimeMs,
		entry.CreatedAt,
	)
	if err != nil {
		if isDuplicateError(err) {
			return fmt.Errorf("record search %s: duplicate id", entry.ID)
		}
		return fmt.Errorf("record search: %w", err)
	}
	return nil
}

func (r *SearchLogRepo) Recent(ctx context.Context, limit int) ([]domain.SearchLogEntry, error) {
	if limit <= 0 || limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	query := `
		SELECT id, query, engine, status, result_count, error, processing_ms, created_at
		FROM search_log
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent searches: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]domain.SearchLogEntry, error) {
	var entries []domain.SearchLogEntry
	for rows.Next() {
		var e domain.SearchLogEntry
		var id uuid.UUID
		var engine, errText *string
		var status string
		err := rows.Scan(
			&id,
			&e.Query,
			&engine,
			&status,
			&e.ResultCount,
			&errText,
			&e.ProcessingTimeMs,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan search log: %w", err)
		}
		e.ID = id.String()
		e.Status = domain.SearchStatus(status)
		if engine != nil {
			e.Engine = *engine
		}
		if errText != nil {
			e.Error = *errText
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search log: %w", err)
	}
	return entries, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isDuplicateError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
