package audit

import "time"

// ActorType identifies who performed an action.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

// Action describes what was done.
type Action string

const (
	ActionEntryCreated       Action = "entry_created"
	ActionStatementDrafted   Action = "statement_drafted"
	ActionQuestionsGenerated Action = "questions_generated"
	ActionAnswerRecorded     Action = "answer_recorded"
	ActionStageAdvanced      Action = "stage_advanced"
	ActionLoopBack           Action = "loop_back"
	ActionStatementCompleted Action = "statement_completed"
)

// Scope describes the level at which an action applies.
type Scope string

const (
	ScopeEntry     Scope = "entry"
	ScopeStatement Scope = "statement"
	ScopeSession   Scope = "session"
)

// Entry is a single audit trail record. Previous/new values carry the
// before/after content of a transition for debugging staged artifacts.
type Entry struct {
	ID            string
	Timestamp     time.Time
	ActorType     ActorType
	ActorID       string
	Action        Action
	Scope         Scope
	ScopeID       string
	Summary       string
	PreviousStage int
	NewStage      int
	PreviousValue string
	NewValue      string
}
