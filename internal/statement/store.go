package statement

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jcortez/winsmith/internal/db"
)

// Store manages persistence of statements.
type Store struct {
	db *db.DB
}

// NewStore creates a new statement store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts a new statement.
func (s *Store) Create(ctx context.Context, st Statement) (*Statement, error) {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	if st.Category == "" {
		st.Category = "general"
	}
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now

	sourceIDs, err := json.Marshal(st.SourceEntryIDs)
	if err != nil {
		return nil, fmt.Errorf("marshalling source entry ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO statements (id, content, category, source_entry_ids, completed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Content, st.Category, string(sourceIDs), st.Completed, st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting statement: %w", err)
	}
	return &st, nil
}

// GetByID retrieves a statement by its ID. Returns nil if not found.
func (s *Store) GetByID(ctx context.Context, id string) (*Statement, error) {
	var st Statement
	var sourceIDs string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, content, category, source_entry_ids, completed, created_at, updated_at
		 FROM statements WHERE id = ?`, id,
	).Scan(&st.ID, &st.Content, &st.Category, &sourceIDs, &st.Completed, &st.CreatedAt, &st.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting statement: %w", err)
	}
	if err := json.Unmarshal([]byte(sourceIDs), &st.SourceEntryIDs); err != nil {
		st.SourceEntryIDs = nil
	}
	return &st, nil
}

// UpdateContent replaces the statement's content.
func (s *Store) UpdateContent(ctx context.Context, id, content string) error {
	return s.UpdateContentTx(ctx, s.db, id, content)
}

// UpdateContentTx is UpdateContent running against the given executor,
// so the write can commit together with other rows.
func (s *Store) UpdateContentTx(ctx context.Context, ex db.Execer, id, content string) error {
	res, err := ex.ExecContext(ctx,
		`UPDATE statements SET content = ?, updated_at = ? WHERE id = ?`,
		content, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating statement content: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("statement not found: %s", id)
	}
	return nil
}

// MarkCompleted sets the completed flag.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	return s.MarkCompletedTx(ctx, s.db, id)
}

// MarkCompletedTx is MarkCompleted running against the given executor.
func (s *Store) MarkCompletedTx(ctx context.Context, ex db.Execer, id string) error {
	res, err := ex.ExecContext(ctx,
		`UPDATE statements SET completed = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking statement completed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("statement not found: %s", id)
	}
	return nil
}

// List returns statements matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Statement, error) {
	query := `SELECT id, content, category, source_entry_ids, completed, created_at, updated_at
		 FROM statements WHERE 1=1`
	args := []any{}

	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	if filter.Completed != nil {
		query += " AND completed = ?"
		args = append(args, *filter.Completed)
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
		return nil, fmt.Errorf("listing statements: %w", err)
	}
	defer rows.Close()

	var statements []Statement
	for rows.Next() {
		var st Statement
		var sourceIDs string
		if err := rows.Scan(&st.ID, &st.Content, &st.Category, &sourceIDs, &st.Completed, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning statement: %w", err)
		}
		if err := json.Unmarshal([]byte(sourceIDs), &st.SourceEntryIDs); err != nil {
			st.SourceEntryIDs = nil
		}
		statements = append(statements, st)
	}
	return statements, rows.Err()
}
