package refine

import (
	"time"

	"github.com/jcortez/winsmith/internal/statement"
)

// Stage is one of the five ordered steps of the refinement workflow.
type Stage int

const (
	StageDrafted     Stage = 1 // initial content exists, nothing refined yet
	StageQuestioning Stage = 2 // follow-up questions generated and answered
	StageComparing   Stage = 3 // merge/critique/polish pipeline has run
	StageFeedback    Stage = 4 // critique shown for review
	StageSaveOrLoop  Stage = 5 // terminal: complete, or loop back to stage 2
)

func (s Stage) String() string {
	switch s {
	case StageDrafted:
		return "drafted"
	case StageQuestioning:
		return "questioning"
	case StageComparing:
		return "comparing"
	case StageFeedback:
		return "feedback"
	case StageSaveOrLoop:
		return "save_or_loop"
	default:
		return "unknown"
	}
}

// QuestionCategory tags a follow-up question with the angle it probes.
type QuestionCategory string

const (
	CategoryQuantitative QuestionCategory = "quantitative"
	CategoryLeadership   QuestionCategory = "leadership"
	CategoryStrategic    QuestionCategory = "strategic"
)

// Question is one generated follow-up question.
type Question struct {
	ID       string           `json:"id"`
	Category QuestionCategory `json:"category"`
	Text     string           `json:"text"`
}

// Feedback is a structured critique of a draft: a quality score plus
// style-only observations. Improvements never touch facts, numbers, or
// names; that restriction is part of the critique generator's contract.
type Feedback struct {
	Score        int      `json:"score"` // 0-10
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// StagedArtifacts records the intermediate content a refinement pass
// produces, kept for before/after comparison.
type StagedArtifacts struct {
	InitialDraft string `json:"initial_draft"`
	PostAnswer   string `json:"post_answer,omitempty"`
	Polished     string `json:"polished,omitempty"`
}

// Session is the durable state of one statement's refinement. Exactly one
// session exists per statement; it lives and dies with it.
type Session struct {
	StatementID  string            `json:"statement_id"`
	CurrentStage Stage             `json:"current_stage"`
	Questions    []Question        `json:"questions,omitempty"`
	Answers      map[string]string `json:"answers"`
	Feedback     *Feedback         `json:"feedback,omitempty"`
	Artifacts    StagedArtifacts   `json:"artifacts"`
	LoopCount    int               `json:"loop_count"`
	Completed    bool              `json:"completed"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// View is what every orchestrator operation returns: the statement, its
// session, and whether the refine-again action should be offered.
type View struct {
	Statement   *statement.Statement `json:"statement"`
	Session     *Session             `json:"session"`
	CanLoopBack bool                 `json:"can_loop_back"`
}
