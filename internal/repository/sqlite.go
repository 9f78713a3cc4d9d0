package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// SQLiteBackend stores records as JSON text in an embedded SQLite file
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens the database file at path
func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

// FetchAll returns every record of kind
func (r *SQLiteBackend) FetchAll(ctx context.Context, kind Kind) ([]Document, error) {
	return r.Query(ctx, kind)
}

// FetchByID retrieves a record by ID
func (r *SQLiteBackend) FetchByID(ctx context.Context, kind Kind, id string) (Document, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM records WHERE kind = ? AND id = ?`, string(kind), id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(kind, id)
		}
		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}
	return decodeJSON([]byte(data))
}

// Insert creates a new record
func (r *SQLiteBackend) Insert(ctx context.Context, kind Kind, doc Document) (Document, error) {
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

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO records (kind, id, data) VALUES (?, ?, ?)`,
		string(kind), stored.ID(), string(data),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return nil, fmt.Errorf("%s %s: %w", kind, stored.ID(), ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create %s: %w", kind, err)
	}
	return stored, nil
}

// Update merges patch into the stored document with json_patch
func (r *SQLiteBackend) Update(ctx context.Context, kind Kind, id string, patch Patch) (Document, error) {
	data, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}

	var out string
	err = r.db.QueryRowContext(ctx,
		`UPDATE records SET data = json_patch(data, ?) WHERE kind = ? AND id = ? RETURNING data`,
		string(data), string(kind), id,
	).Scan(&out)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(kind, id)
		}
		return nil, fmt.Errorf("failed to update %s: %w", kind, err)
	}
	return decodeJSON([]byte(out))
}

// Delete deletes a record by ID
func (r *SQLiteBackend) Delete(ctx context.Context, kind Kind, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE kind = ? AND id = ?`, string(kind), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}

// Query returns records matching every filter in insertion order
func (r *SQLiteBackend) Query(ctx context.Context, kind Kind, filters ...Filter) ([]Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	cond := []string{"kind = ?"}
	args := []any{string(kind)}
	for _, f := range filters {
		cond = append(cond, "json_extract(data, '$.' || ?) = ?")
		args = append(args, f.Field, f.Value)
	}

	query := "SELECT data FROM records WHERE " + strings.Join(cond, " AND ") + " ORDER BY seq ASC"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", kind, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		doc, err := decodeJSON([]byte(data))
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

// Ping checks the database file is reachable
func (r *SQLiteBackend) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database
func (r *SQLiteBackend) Close() error {
	return r.db.Close()
}
