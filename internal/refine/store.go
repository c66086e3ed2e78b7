package refine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jcortez/winsmith/internal/db"
)

// Store manages persistence of refinement sessions. A session is one row
// keyed by its statement id; Save rewrites the whole row in a single
// UPDATE so each transition commits atomically.
type Store struct {
	db *db.DB
}

// NewStore creates a new session store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts a fresh session at stage 1 for the given statement.
// initialDraft is the statement content at creation time.
func (s *Store) Create(ctx context.Context, statementID, initialDraft string) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		StatementID:  statementID,
		CurrentStage: StageDrafted,
		Answers:      map[string]string{},
		Artifacts:    StagedArtifacts{InitialDraft: initialDraft},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refinement_sessions (statement_id, current_stage, answers, initial_draft, created_at, updated_at)
		 VALUES (?, ?, '{}', ?, ?, ?)`,
		sess.StatementID, int(sess.CurrentStage), sess.Artifacts.InitialDraft, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	return sess, nil
}

// Get retrieves the session for a statement. Returns nil if not found.
func (s *Store) Get(ctx context.Context, statementID string) (*Session, error) {
	var (
		sess               Session
		stage              int
		questions, answers sql.NullString
		feedback           sql.NullString
		postAnswer         sql.NullString
		polished           sql.NullString
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT statement_id, current_stage, questions, answers, feedback,
		        initial_draft, post_answer, polished, loop_count, completed,
		        created_at, updated_at
		 FROM refinement_sessions WHERE statement_id = ?`, statementID,
	).Scan(&sess.StatementID, &stage, &questions, &answers, &feedback,
		&sess.Artifacts.InitialDraft, &postAnswer, &polished,
		&sess.LoopCount, &sess.Completed, &sess.CreatedAt, &sess.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	sess.CurrentStage = Stage(stage)
	if questions.Valid && questions.String != "" {
		if err := json.Unmarshal([]byte(questions.String), &sess.Questions); err != nil {
			return nil, fmt.Errorf("unmarshalling questions: %w", err)
		}
	}
	sess.Answers = map[string]string{}
	if answers.Valid && answers.String != "" {
		if err := json.Unmarshal([]byte(answers.String), &sess.Answers); err != nil {
			return nil, fmt.Errorf("unmarshalling answers: %w", err)
		}
	}
	if feedback.Valid && feedback.String != "" {
		sess.Feedback = &Feedback{}
		if err := json.Unmarshal([]byte(feedback.String), sess.Feedback); err != nil {
			return nil, fmt.Errorf("unmarshalling feedback: %w", err)
		}
	}
	if postAnswer.Valid {
		sess.Artifacts.PostAnswer = postAnswer.String
	}
	if polished.Valid {
		sess.Artifacts.Polished = polished.String
	}
	return &sess, nil
}

// Save writes the full session row.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	return s.SaveTx(ctx, s.db, sess)
}

// SaveTx is Save running against the given executor, so a stage
// transition can commit the session and statement rows together.
func (s *Store) SaveTx(ctx context.Context, ex db.Execer, sess *Session) error {
	sess.UpdatedAt = time.Now().UTC()

	var questions, feedback, postAnswer, polished sql.NullString
	if sess.Questions != nil {
		data, err := json.Marshal(sess.Questions)
		if err != nil {
			return fmt.Errorf("marshalling questions: %w", err)
		}
		questions = sql.NullString{String: string(data), Valid: true}
	}
	if sess.Feedback != nil {
		data, err := json.Marshal(sess.Feedback)
		if err != nil {
			return fmt.Errorf("marshalling feedback: %w", err)
		}
		feedback = sql.NullString{String: string(data), Valid: true}
	}
	if sess.Artifacts.PostAnswer != "" {
		postAnswer = sql.NullString{String: sess.Artifacts.PostAnswer, Valid: true}
	}
	if sess.Artifacts.Polished != "" {
		polished = sql.NullString{String: sess.Artifacts.Polished, Valid: true}
	}

	answers, err := json.Marshal(sess.Answers)
	if err != nil {
		return fmt.Errorf("marshalling answers: %w", err)
	}

	res, err := ex.ExecContext(ctx,
		`UPDATE refinement_sessions
		 SET current_stage = ?, questions = ?, answers = ?, feedback = ?,
		     initial_draft = ?, post_answer = ?, polished = ?,
		     loop_count = ?, completed = ?, updated_at = ?
		 WHERE statement_id = ?`,
		int(sess.CurrentStage), questions, string(answers), feedback,
		sess.Artifacts.InitialDraft, postAnswer, polished,
		sess.LoopCount, sess.Completed, sess.UpdatedAt,
		sess.StatementID,
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("session not found: %s", sess.StatementID)
	}
	return nil
}
