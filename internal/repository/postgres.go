package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PostgresBackend stores records as JSONB rows in a single records table
type PostgresBackend struct {
	db *pgxpool.Pool
}

// NewPostgresBackend creates a new postgres backend
func NewPostgresBackend(db *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// FetchAll returns every record of kind
func (r *PostgresBackend) FetchAll(ctx context.Context, kind Kind) ([]Document, error) {
	return r.Query(ctx, kind)
}

// FetchByID retrieves a record by ID
func (r *PostgresBackend) FetchByID(ctx context.Context, kind Kind, id string) (Document, error) {
	query := `SELECT data FROM records WHERE kind = $1 AND id = $2`
	var data []byte
	err := r.db.QueryRow(ctx, query, string(kind), id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(kind, id)
		}
		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}
	return decodeJSON(data)
}

// Insert creates a new record
func (r *PostgresBackend) Insert(ctx context.Context, kind Kind, doc Document) (Document, error) {
	stored, err := cloneDocument(doc)
	if err != nil {
		return nil, err
	}
	if stored.ID() == "" {
		stored["id"] = uuid.New().String()
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", kind, err)
	}

	query := `
		INSERT INTO records (kind, id, data, created_at)
		VALUES ($1, $2, $3::jsonb, $4)
	`
	_, err = r.db.Exec(ctx, query, string(kind), stored.ID(), string(data), time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, fmt.Errorf("%s %s: %w", kind, stored.ID(), ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create %s: %w", kind, err)
	}
	return stored, nil
}

// Update merges patch into the stored JSONB document
func (r *PostgresBackend) Update(ctx context.Context, kind Kind, id string, patch Patch) (Document, error) {
	data, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}

	query := `
		UPDATE records SET data = data || $3::jsonb
		WHERE kind = $1 AND id = $2
		RETURNING data
	`
	var out []byte
	err = r.db.QueryRow(ctx, query, string(kind), id, string(data)).Scan(&out)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(kind, id)
		}
		return nil, fmt.Errorf("failed to update %s: %w", kind, err)
	}
	return decodeJSON(out)
}

// Delete deletes a record by ID
func (r *PostgresBackend) Delete(ctx context.Context, kind Kind, id string) error {
	query := `DELETE FROM records WHERE kind = $1 AND id = $2`
	result, err := r.db.Exec(ctx, query, string(kind), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	if result.RowsAffected() == 0 {
		return notFound(kind, id)
	}
	return nil
}

// Query returns records matching every filter, oldest first
func (r *PostgresBackend) Query(ctx context.Context, kind Kind, filters ...Filter) ([]Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	cond := []string{"kind = $1"}
	args := []any{string(kind)}
	idx := 2
	for _, f := range filters {
		cond = append(cond, fmt.Sprintf("data->>$%d = $%d", idx, idx+1))
		args = append(args, f.Field, f.Value)
		idx += 2
	}

	query := "SELECT data FROM records WHERE " + strings.Join(cond, " AND ") + " ORDER BY created_at ASC, id ASC"
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", kind, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		doc, err := decodeJSON(data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", kind, err)
	}

	return docs, nil
}

// Ping checks the database connection
func (r *PostgresBackend) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Close closes the connection pool
func (r *PostgresBackend) Close() error {
	r.db.Close()
	return nil
}

func decodeJSON(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return doc, nil
}
