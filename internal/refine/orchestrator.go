package refine

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jcortez/winsmith/internal/audit"
	"github.com/jcortez/winsmith/internal/config"
	"github.com/jcortez/winsmith/internal/llm"
	"github.com/jcortez/winsmith/internal/statement"
)

// Orchestrator drives statements through the five-stage refinement
// workflow. Operations against the same session are serialized with a
// per-session lock; different sessions proceed independently. A failed
// generation commits nothing: the caller may retry the same transition.
type Orchestrator struct {
	cfg        config.RefineConfig
	statements *statement.Store
	sessions   *Store
	gen        *generator
	audit      *audit.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOrchestrator wires the workflow engine. The audit store may be nil,
// in which case transitions are not recorded.
func NewOrchestrator(cfg config.RefineConfig, statements *statement.Store, sessions *Store, provider llm.Provider, model string, auditStore *audit.Store) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		statements: statements,
		sessions:   sessions,
		gen:        &generator{provider: provider, model: model, cfg: cfg},
		audit:      auditStore,
		locks:      map[string]*sync.Mutex{},
	}
}

// lockSession acquires the per-session lock and returns its release func.
func (o *Orchestrator) lockSession(statementID string) func() {
	o.mu.Lock()
	l, ok := o.locks[statementID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[statementID] = l
	}
	o.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// releaseLock drops the per-session lock entry so the map does not grow
// with every session ever touched. Only called once a session is
// completed: from then on every call against it is rejected or
// idempotent, so a racing caller minting a fresh mutex is harmless.
func (o *Orchestrator) releaseLock(statementID string) {
	o.mu.Lock()
	delete(o.locks, statementID)
	o.mu.Unlock()
}

// genCtx bounds a single generation call. A timeout surfaces as a
// generation failure like any other provider error.
func (o *Orchestrator) genCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(o.cfg.TimeoutSeconds)*time.Second)
}

// load fetches the statement and its session, mapping absence to ErrNotFound.
func (o *Orchestrator) load(ctx context.Context, statementID string) (*statement.Statement, *Session, error) {
	st, err := o.statements.GetByID(ctx, statementID)
	if err != nil {
		return nil, nil, err
	}
	if st == nil {
		return nil, nil, fmt.Errorf("statement %s: %w", statementID, ErrNotFound)
	}
	sess, err := o.sessions.Get(ctx, statementID)
	if err != nil {
		return nil, nil, err
	}
	return st, sess, nil
}

func (o *Orchestrator) view(st *statement.Statement, sess *Session) *View {
	return &View{
		Statement:   st,
		Session:     sess,
		CanLoopBack: !sess.Completed && sess.CurrentStage == StageSaveOrLoop && sess.LoopCount < o.cfg.LoopBackCap,
	}
}

func (o *Orchestrator) record(ctx context.Context, e audit.Entry) {
	if o.audit == nil {
		return
	}
	// Audit is best-effort; a failed write never fails the transition.
	_ = o.audit.Log(ctx, e)
}

// StartRefinement returns the refinement view for a statement, creating
// its session at stage 1 if it does not exist yet.
func (o *Orchestrator) StartRefinement(ctx context.Context, statementID string) (*View, error) {
	unlock := o.lockSession(statementID)
	defer unlock()

	st, sess, err := o.load(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		sess, err = o.sessions.Create(ctx, statementID, st.Content)
		if err != nil {
			return nil, err
		}
	}
	return o.view(st, sess), nil
}

// Get returns the current view without mutating anything.
func (o *Orchestrator) Get(ctx context.Context, statementID string) (*View, error) {
	st, sess, err := o.load(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session for statement %s: %w", statementID, ErrNotFound)
	}
	return o.view(st, sess), nil
}

// Questions ensures the session's follow-up questions exist, generating
// them on first call at the questioning stage. Idempotent: once generated
// the same three questions are returned until a loop-back clears them.
func (o *Orchestrator) Questions(ctx context.Context, statementID string) (*View, error) {
	unlock := o.lockSession(statementID)
	defer unlock()

	st, sess, err := o.load(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session for statement %s: %w", statementID, ErrNotFound)
	}
	if sess.Completed {
		return nil, &InvalidTransitionError{From: sess.CurrentStage, To: sess.CurrentStage, Reason: "session is completed"}
	}
	if sess.CurrentStage != StageQuestioning {
		return nil, &InvalidTransitionError{From: sess.CurrentStage, To: StageQuestioning, Reason: "questions are generated at the questioning stage"}
	}
	if sess.Questions != nil {
		return o.view(st, sess), nil
	}

	gctx, cancel := o.genCtx(ctx)
	defer cancel()
	questions, err := o.gen.Questions(gctx, st.Content)
	if err != nil {
		return nil, &GenerationFailedError{Stage: StageQuestioning, Step: "questions", Cause: err}
	}

	sess.Questions = questions
	if err := o.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	o.record(ctx, audit.Entry{
		Action:  audit.ActionQuestionsGenerated,
		Scope:   audit.ScopeSession,
		ScopeID: statementID,
		Summary: fmt.Sprintf("generated %d follow-up questions", len(questions)),
	})
	return o.view(st, sess), nil
}

// SubmitAnswer upserts an answer to a follow-up question. Answer content
// is not validated; blank answers simply do not count toward gating.
func (o *Orchestrator) SubmitAnswer(ctx context.Context, statementID, questionID, text string) (*View, error) {
	unlock := o.lockSession(statementID)
	defer unlock()

	st, sess, err := o.load(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session for statement %s: %w", statementID, ErrNotFound)
	}
	if sess.Completed {
		return nil, &InvalidTransitionError{From: sess.CurrentStage, To: sess.CurrentStage, Reason: "session is completed"}
	}

	sess.RecordAnswer(questionID, text)
	if err := o.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	o.record(ctx, audit.Entry{
		ActorType: audit.ActorUser,
		ActorID:   "user",
		Action:    audit.ActionAnswerRecorded,
		Scope:     audit.ScopeSession,
		ScopeID:   statementID,
		Summary:   fmt.Sprintf("answer recorded for question %s", questionID),
	})
	return o.view(st, sess), nil
}

// AdvanceStage moves the session one stage forward, performing the target
// stage's work. Leaving the questioning stage requires the gating
// threshold of non-blank answers and runs the merge, critique, and polish
// pipeline; every other advance is a plain pointer move.
func (o *Orchestrator) AdvanceStage(ctx context.Context, statementID string) (*View, error) {
	unlock := o.lockSession(statementID)
	defer unlock()

	st, sess, err := o.load(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session for statement %s: %w", statementID, ErrNotFound)
	}
	if sess.Completed {
		return nil, &InvalidTransitionError{From: sess.CurrentStage, To: sess.CurrentStage + 1, Reason: "session is completed"}
	}

	from := sess.CurrentStage
	switch sess.CurrentStage {
	case StageDrafted, StageComparing, StageFeedback:
		if err := sess.Advance(sess.CurrentStage + 1); err != nil {
			return nil, err
		}

	case StageQuestioning:
		if sess.Questions == nil {
			return nil, &InvalidTransitionError{From: StageQuestioning, To: StageComparing, Reason: "no questions generated yet"}
		}
		answered := sess.AnsweredQuestions()
		if len(answered) < o.cfg.MinAnswers {
			return nil, &InvalidTransitionError{
				From:   StageQuestioning,
				To:     StageComparing,
				Reason: fmt.Sprintf("%d of %d questions answered, need %d", len(answered), len(sess.Questions), o.cfg.MinAnswers),
			}
		}
		if err := o.runComparePipeline(ctx, st, sess, answered); err != nil {
			return nil, err
		}

	case StageSaveOrLoop:
		return nil, &InvalidTransitionError{From: StageSaveOrLoop, To: StageSaveOrLoop + 1, Reason: "terminal stage: complete or loop back"}

	default:
		return nil, &InvalidTransitionError{From: sess.CurrentStage, To: sess.CurrentStage + 1}
	}

	// The session row and, on reaching the comparing stage, the polished
	// statement content commit together or not at all.
	err = o.sessions.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := o.sessions.SaveTx(ctx, tx, sess); err != nil {
			return err
		}
		if sess.CurrentStage == StageComparing {
			return o.statements.UpdateContentTx(ctx, tx, st.ID, sess.Artifacts.Polished)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if sess.CurrentStage == StageComparing {
		st.Content = sess.Artifacts.Polished
	}

	o.record(ctx, audit.Entry{
		Action:        audit.ActionStageAdvanced,
		Scope:         audit.ScopeSession,
		ScopeID:       statementID,
		Summary:       fmt.Sprintf("advanced to %s", sess.CurrentStage),
		PreviousStage: int(from),
		NewStage:      int(sess.CurrentStage),
	})
	return o.view(st, sess), nil
}

// runComparePipeline executes merge, critique, and polish against the
// current content and mutates the session in memory only on full success.
// Nothing is persisted here; the caller saves afterwards.
func (o *Orchestrator) runComparePipeline(ctx context.Context, st *statement.Statement, sess *Session, answered []AnsweredQuestion) error {
	gctx, cancel := o.genCtx(ctx)
	merged, err := o.gen.Merge(gctx, st.Content, answered)
	cancel()
	if err != nil {
		return &GenerationFailedError{Stage: StageComparing, Step: "merge", Cause: err}
	}

	gctx, cancel = o.genCtx(ctx)
	feedback, err := o.gen.Critique(gctx, merged)
	cancel()
	if err != nil {
		return &GenerationFailedError{Stage: StageComparing, Step: "critique", Cause: err}
	}

	gctx, cancel = o.genCtx(ctx)
	polished, err := o.gen.Polish(gctx, merged, feedback.Improvements)
	cancel()
	if err != nil {
		return &GenerationFailedError{Stage: StageComparing, Step: "polish", Cause: err}
	}
	if missing := missingFacts(merged, polished); len(missing) > 0 {
		return &GenerationFailedError{
			Stage: StageComparing,
			Step:  "polish",
			Cause: fmt.Errorf("polished draft dropped facts: %v", missing),
		}
	}

	sess.Artifacts.PostAnswer = merged
	sess.Artifacts.Polished = polished
	sess.Feedback = feedback
	sess.CurrentStage = StageComparing
	return nil
}

// LoopBack returns a terminal-stage session to questioning for another
// pass. The polished draft becomes the new starting draft; answers,
// feedback, questions, and per-pass artifacts are cleared. The loop cap
// only stops the action from being offered; it does not reject the call.
func (o *Orchestrator) LoopBack(ctx context.Context, statementID string) (*View, error) {
	unlock := o.lockSession(statementID)
	defer unlock()

	st, sess, err := o.load(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session for statement %s: %w", statementID, ErrNotFound)
	}
	if sess.Completed {
		return nil, &InvalidTransitionError{From: sess.CurrentStage, To: StageQuestioning, Reason: "session is completed"}
	}
	if sess.CurrentStage != StageSaveOrLoop {
		return nil, &InvalidTransitionError{From: sess.CurrentStage, To: StageQuestioning, Reason: "loop-back is only available from the final stage"}
	}

	sess.Reset()
	sess.LoopCount++
	if err := o.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	o.record(ctx, audit.Entry{
		ActorType:     audit.ActorUser,
		ActorID:       "user",
		Action:        audit.ActionLoopBack,
		Scope:         audit.ScopeSession,
		ScopeID:       statementID,
		Summary:       fmt.Sprintf("loop-back iteration %d", sess.LoopCount),
		PreviousStage: int(StageSaveOrLoop),
		NewStage:      int(StageQuestioning),
	})
	return o.view(st, sess), nil
}

// Complete archives the statement at the terminal stage. The session and
// statement rows commit in one transaction. Completing an
// already-completed session returns the current view, re-marking the
// statement if it was somehow left behind.
func (o *Orchestrator) Complete(ctx context.Context, statementID string) (*View, error) {
	unlock := o.lockSession(statementID)
	defer unlock()

	st, sess, err := o.load(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session for statement %s: %w", statementID, ErrNotFound)
	}
	if sess.Completed {
		// Re-assert the statement flag so a retry repairs any row the
		// session got ahead of.
		if !st.Completed {
			if err := o.statements.MarkCompleted(ctx, st.ID); err != nil {
				return nil, err
			}
			st.Completed = true
		}
		o.releaseLock(statementID)
		return o.view(st, sess), nil
	}
	if sess.CurrentStage != StageSaveOrLoop {
		return nil, &InvalidTransitionError{From: sess.CurrentStage, To: StageSaveOrLoop, Reason: "completion is only available from the final stage"}
	}

	sess.Completed = true
	err = o.sessions.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := o.sessions.SaveTx(ctx, tx, sess); err != nil {
			return err
		}
		return o.statements.MarkCompletedTx(ctx, tx, st.ID)
	})
	if err != nil {
		return nil, err
	}
	st.Completed = true
	o.releaseLock(statementID)

	o.record(ctx, audit.Entry{
		ActorType: audit.ActorUser,
		ActorID:   "user",
		Action:    audit.ActionStatementCompleted,
		Scope:     audit.ScopeStatement,
		ScopeID:   statementID,
		Summary:   "statement completed",
		NewValue:  st.Content,
	})
	return o.view(st, sess), nil
}
