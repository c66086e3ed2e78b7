package entry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jcortez/winsmith/internal/db"
)

// Store manages persistence of win entries.
type Store struct {
	db *db.DB
}

// NewStore creates a new entry store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create adds a new entry. Entries are never updated afterwards.
func (s *Store) Create(ctx context.Context, e Entry) (*Entry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Category == "" {
		e.Category = "general"
	}
	e.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (id, category, action, impact, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Category, e.Action, e.Impact, e.Result, e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting entry: %w", err)
	}
	return &e, nil
}

// GetByID retrieves an entry by its ID. Returns nil if not found.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	var e Entry
	err := s.db.QueryRowContext(ctx,
		`SELECT id, category, action, impact, result, created_at
		 FROM entries WHERE id = ?`, id,
	).Scan(&e.ID, &e.Category, &e.Action, &e.Impact, &e.Result, &e.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting entry: %w", err)
	}
	return &e, nil
}

// GetByIDs resolves the given ids to entries, preserving input order.
// Ids that do not exist are skipped rather than treated as an error;
// callers proceed with whatever subset resolved.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, action, impact, result, created_at
		 FROM entries WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("getting entries: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Entry, len(ids))
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Category, &e.Action, &e.Impact, &e.Result, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		byID[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var entries []Entry
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// List returns entries matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	query := `SELECT id, category, action, impact, result, created_at
		 FROM entries WHERE 1=1`
	args := []any{}

	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Category, &e.Action, &e.Impact, &e.Result, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
