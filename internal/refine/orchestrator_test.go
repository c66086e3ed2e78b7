package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/jcortez/winsmith/internal/audit"
	"github.com/jcortez/winsmith/internal/config"
	"github.com/jcortez/winsmith/internal/db"
	"github.com/jcortez/winsmith/internal/llm"
	"github.com/jcortez/winsmith/internal/statement"
)

const questionsJSON = `{"questions":[
  {"category":"quantitative","question":"How many personnel or assets were involved?"},
  {"category":"leadership","question":"Who did you direct or train?"},
  {"category":"strategic","question":"What wider mission did this support?"}]}`

const critiqueJSON = `{"score":7,"strengths":["concrete action"],"improvements":["tighten the opening"]}`

type fakeResponse struct {
	content string
	err     error
}

// fakeProvider returns scripted responses in order.
type fakeProvider struct {
	mu        sync.Mutex
	responses []fakeResponse
	calls     []llm.CompletionRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if len(f.responses) == 0 {
		return nil, fmt.Errorf("fake provider: no scripted response for call %d", len(f.calls))
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	if resp.err != nil {
		return nil, resp.err
	}
	return &llm.CompletionResponse{Content: resp.content, Model: "fake-model"}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testRefineConfig() config.RefineConfig {
	return config.RefineConfig{
		StrictMaxChars:  350,
		RelaxedMaxChars: 600,
		MinAnswers:      2,
		LoopBackCap:     2,
		TimeoutSeconds:  5,
	}
}

func setupOrchestrator(t *testing.T, provider llm.Provider) (*Orchestrator, *statement.Store, string) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	statements := statement.NewStore(database)
	sessions := NewStore(database)

	st, err := statements.Create(context.Background(), statement.Statement{
		Content:  "Maintained flight records for the squadron",
		Category: "mission",
	})
	if err != nil {
		t.Fatalf("creating statement: %v", err)
	}

	o := NewOrchestrator(testRefineConfig(), statements, sessions, provider, "fake-model", audit.NewStore(database))
	return o, statements, st.ID
}

// toQuestioning walks a fresh session to stage 2 with questions generated.
func toQuestioning(t *testing.T, o *Orchestrator, id string) *View {
	t.Helper()
	ctx := context.Background()
	if _, err := o.StartRefinement(ctx, id); err != nil {
		t.Fatalf("StartRefinement: %v", err)
	}
	if _, err := o.AdvanceStage(ctx, id); err != nil {
		t.Fatalf("AdvanceStage to questioning: %v", err)
	}
	v, err := o.Questions(ctx, id)
	if err != nil {
		t.Fatalf("Questions: %v", err)
	}
	return v
}

func TestStartRefinementCreatesSession(t *testing.T) {
	o, _, id := setupOrchestrator(t, &fakeProvider{})
	ctx := context.Background()

	v, err := o.StartRefinement(ctx, id)
	if err != nil {
		t.Fatalf("StartRefinement: %v", err)
	}
	if v.Session.CurrentStage != StageDrafted {
		t.Errorf("expected stage 1, got %d", v.Session.CurrentStage)
	}
	if v.Session.Artifacts.InitialDraft != v.Statement.Content {
		t.Errorf("initial draft should mirror statement content")
	}

	// Idempotent: a second start returns the same session.
	v2, err := o.StartRefinement(ctx, id)
	if err != nil {
		t.Fatalf("second StartRefinement: %v", err)
	}
	if v2.Session.CurrentStage != StageDrafted {
		t.Errorf("second start changed stage to %d", v2.Session.CurrentStage)
	}
}

func TestStartRefinementUnknownStatement(t *testing.T) {
	o, _, _ := setupOrchestrator(t, &fakeProvider{})

	_, err := o.StartRefinement(context.Background(), "no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdvanceFromDraftedIsTrivial(t *testing.T) {
	provider := &fakeProvider{}
	o, _, id := setupOrchestrator(t, provider)
	ctx := context.Background()

	o.StartRefinement(ctx, id)
	v, err := o.AdvanceStage(ctx, id)
	if err != nil {
		t.Fatalf("AdvanceStage: %v", err)
	}
	if v.Session.CurrentStage != StageQuestioning {
		t.Errorf("expected stage 2, got %d", v.Session.CurrentStage)
	}
	if v.Session.Questions != nil {
		t.Errorf("questions should still be pending")
	}
	if provider.callCount() != 0 {
		t.Errorf("no generation expected, got %d calls", provider.callCount())
	}
}

func TestQuestionsGeneratesExactlyThree(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{{content: questionsJSON}}}
	o, _, id := setupOrchestrator(t, provider)

	v := toQuestioning(t, o, id)
	if len(v.Session.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(v.Session.Questions))
	}
	categories := map[QuestionCategory]bool{}
	for _, q := range v.Session.Questions {
		if q.ID == "" {
			t.Error("question missing ID")
		}
		categories[q.Category] = true
	}
	for _, want := range []QuestionCategory{CategoryQuantitative, CategoryLeadership, CategoryStrategic} {
		if !categories[want] {
			t.Errorf("missing category %s", want)
		}
	}

	// Second call returns the cached set without another generation.
	v2, err := o.Questions(context.Background(), id)
	if err != nil {
		t.Fatalf("second Questions: %v", err)
	}
	if provider.callCount() != 1 {
		t.Errorf("expected 1 generation call, got %d", provider.callCount())
	}
	if v2.Session.Questions[0].ID != v.Session.Questions[0].ID {
		t.Errorf("cached questions changed between calls")
	}
}

func TestQuestionsMalformedOutputFailsCleanly(t *testing.T) {
	short := `{"questions":[{"category":"quantitative","question":"How many?"}]}`
	provider := &fakeProvider{responses: []fakeResponse{{content: short}}}
	o, _, id := setupOrchestrator(t, provider)
	ctx := context.Background()

	o.StartRefinement(ctx, id)
	o.AdvanceStage(ctx, id)

	_, err := o.Questions(ctx, id)
	var genFailed *GenerationFailedError
	if !errors.As(err, &genFailed) {
		t.Fatalf("expected GenerationFailedError, got %v", err)
	}
	if genFailed.Stage != StageQuestioning {
		t.Errorf("expected failing stage 2, got %d", genFailed.Stage)
	}

	// Session is untouched: questions still pending, stage unchanged.
	v, err := o.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.Session.Questions != nil {
		t.Errorf("questions should not have been persisted")
	}
	if v.Session.CurrentStage != StageQuestioning {
		t.Errorf("stage changed on failure: %d", v.Session.CurrentStage)
	}
}

func TestGatingRequiresTwoNonBlankAnswers(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{{content: questionsJSON}}}
	o, _, id := setupOrchestrator(t, provider)
	ctx := context.Background()

	v := toQuestioning(t, o, id)
	qs := v.Session.Questions

	// No answers at all.
	_, err := o.AdvanceStage(ctx, id)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}

	// One real answer plus one blank answer is still below the threshold.
	o.SubmitAnswer(ctx, id, qs[0].ID, "Led 12 personnel")
	o.SubmitAnswer(ctx, id, qs[1].ID, "   ")
	_, err = o.AdvanceStage(ctx, id)
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError with blank answer, got %v", err)
	}

	got, _ := o.Get(ctx, id)
	if got.Session.CurrentStage != StageQuestioning {
		t.Errorf("stage moved despite failed gating: %d", got.Session.CurrentStage)
	}
}

func TestComparePipelineMergesAnswers(t *testing.T) {
	merged := "Led 12 personnel maintaining flight records, saving $40K for the squadron"
	polished := "Led 12 personnel in flight records upkeep, saving the squadron $40K"
	provider := &fakeProvider{responses: []fakeResponse{
		{content: questionsJSON},
		{content: merged},
		{content: critiqueJSON},
		{content: polished},
	}}
	o, statements, id := setupOrchestrator(t, provider)
	ctx := context.Background()

	v := toQuestioning(t, o, id)
	qs := v.Session.Questions
	o.SubmitAnswer(ctx, id, qs[0].ID, "Led 12 personnel")
	o.SubmitAnswer(ctx, id, qs[2].ID, "saved $40K")

	v, err := o.AdvanceStage(ctx, id)
	if err != nil {
		t.Fatalf("AdvanceStage through pipeline: %v", err)
	}
	if v.Session.CurrentStage != StageComparing {
		t.Errorf("expected stage 3, got %d", v.Session.CurrentStage)
	}
	if v.Session.Artifacts.PostAnswer != merged {
		t.Errorf("post-answer artifact mismatch: %q", v.Session.Artifacts.PostAnswer)
	}
	if v.Session.Artifacts.Polished != polished {
		t.Errorf("polished artifact mismatch: %q", v.Session.Artifacts.Polished)
	}
	if v.Session.Feedback == nil || v.Session.Feedback.Score != 7 {
		t.Errorf("feedback not recorded: %+v", v.Session.Feedback)
	}

	// The polished draft contains the user-supplied facts.
	for _, fact := range []string{"12", "$40"} {
		if !strings.Contains(v.Session.Artifacts.Polished, fact) {
			t.Errorf("polished draft missing fact %q", fact)
		}
	}

	// The statement content was replaced by the polished draft.
	st, _ := statements.GetByID(ctx, id)
	if st.Content != polished {
		t.Errorf("statement content not updated: %q", st.Content)
	}

	// The merge prompt carried both answers.
	mergeReq := provider.calls[1]
	prompt := mergeReq.Messages[len(mergeReq.Messages)-1].Content
	if !strings.Contains(prompt, "Led 12 personnel") || !strings.Contains(prompt, "saved $40K") {
		t.Errorf("merge prompt missing answers: %q", prompt)
	}
}

func TestPipelineFailureCommitsNothing(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{
		{content: questionsJSON},
		{content: "merged draft with 12 personnel"},
		{err: fmt.Errorf("upstream timeout")},
	}}
	o, statements, id := setupOrchestrator(t, provider)
	ctx := context.Background()

	v := toQuestioning(t, o, id)
	qs := v.Session.Questions
	o.SubmitAnswer(ctx, id, qs[0].ID, "Led 12 personnel")
	o.SubmitAnswer(ctx, id, qs[1].ID, "Trained 3 airmen")

	before, _ := o.Get(ctx, id)
	stBefore, _ := statements.GetByID(ctx, id)

	_, err := o.AdvanceStage(ctx, id)
	var genFailed *GenerationFailedError
	if !errors.As(err, &genFailed) {
		t.Fatalf("expected GenerationFailedError, got %v", err)
	}
	if genFailed.Stage != StageComparing || genFailed.Step != "critique" {
		t.Errorf("wrong failure location: stage %d step %s", genFailed.Stage, genFailed.Step)
	}

	after, _ := o.Get(ctx, id)
	if after.Session.CurrentStage != before.Session.CurrentStage {
		t.Errorf("stage changed on failure")
	}
	if after.Session.Artifacts != before.Session.Artifacts {
		t.Errorf("artifacts changed on failure: %+v", after.Session.Artifacts)
	}
	if after.Session.Feedback != nil {
		t.Errorf("feedback persisted on failure")
	}
	stAfter, _ := statements.GetByID(ctx, id)
	if stAfter.Content != stBefore.Content {
		t.Errorf("statement content changed on failure")
	}
}

func TestPolishDroppingFactsIsAFailure(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{
		{content: questionsJSON},
		{content: "Led 12 personnel, saving $40K"},
		{content: critiqueJSON},
		{content: "Led a team, achieving savings"}, // numbers dropped
	}}
	o, _, id := setupOrchestrator(t, provider)
	ctx := context.Background()

	v := toQuestioning(t, o, id)
	qs := v.Session.Questions
	o.SubmitAnswer(ctx, id, qs[0].ID, "Led 12 personnel")
	o.SubmitAnswer(ctx, id, qs[1].ID, "saved $40K")

	_, err := o.AdvanceStage(ctx, id)
	var genFailed *GenerationFailedError
	if !errors.As(err, &genFailed) {
		t.Fatalf("expected GenerationFailedError, got %v", err)
	}
	if genFailed.Step != "polish" {
		t.Errorf("expected polish step failure, got %s", genFailed.Step)
	}

	got, _ := o.Get(ctx, id)
	if got.Session.CurrentStage != StageQuestioning {
		t.Errorf("stage moved despite dropped facts")
	}
}

// runToSaveOrLoop drives a session through the full pipeline to stage 5.
func runToSaveOrLoop(t *testing.T, o *Orchestrator, id string) *View {
	t.Helper()
	ctx := context.Background()
	v := toQuestioning(t, o, id)
	qs := v.Session.Questions
	o.SubmitAnswer(ctx, id, qs[0].ID, "Led 12 personnel")
	o.SubmitAnswer(ctx, id, qs[1].ID, "saved $40K")
	for i := 0; i < 3; i++ {
		var err error
		v, err = o.AdvanceStage(ctx, id)
		if err != nil {
			t.Fatalf("AdvanceStage %d: %v", i, err)
		}
	}
	if v.Session.CurrentStage != StageSaveOrLoop {
		t.Fatalf("expected stage 5, got %d", v.Session.CurrentStage)
	}
	return v
}

func pipelineResponses() []fakeResponse {
	return []fakeResponse{
		{content: questionsJSON},
		{content: "Led 12 personnel maintaining records, saving $40K"},
		{content: critiqueJSON},
		{content: "Led 12 personnel in records upkeep, saving $40K"},
	}
}

func TestLoopBackResetsForAnotherPass(t *testing.T) {
	provider := &fakeProvider{responses: pipelineResponses()}
	o, _, id := setupOrchestrator(t, provider)
	ctx := context.Background()

	v := runToSaveOrLoop(t, o, id)
	polished := v.Session.Artifacts.Polished
	if !v.CanLoopBack {
		t.Fatalf("expected loop-back to be offered")
	}

	v, err := o.LoopBack(ctx, id)
	if err != nil {
		t.Fatalf("LoopBack: %v", err)
	}
	if v.Session.CurrentStage != StageQuestioning {
		t.Errorf("expected stage 2 after loop-back, got %d", v.Session.CurrentStage)
	}
	if v.Session.Artifacts.InitialDraft != polished {
		t.Errorf("initial draft should be the prior polished draft")
	}
	if v.Session.Artifacts.PostAnswer != "" || v.Session.Artifacts.Polished != "" {
		t.Errorf("per-pass artifacts not cleared: %+v", v.Session.Artifacts)
	}
	if len(v.Session.Answers) != 0 {
		t.Errorf("answers not cleared: %v", v.Session.Answers)
	}
	if v.Session.Feedback != nil {
		t.Errorf("feedback not cleared")
	}
	if v.Session.Questions != nil {
		t.Errorf("questions not cleared for regeneration")
	}
	if v.Session.LoopCount != 1 {
		t.Errorf("expected loop count 1, got %d", v.Session.LoopCount)
	}
}

func TestLoopBackCapOnlyHidesTheAction(t *testing.T) {
	responses := pipelineResponses()
	responses = append(responses, pipelineResponses()...)
	provider := &fakeProvider{responses: responses}
	o, _, id := setupOrchestrator(t, provider)
	o.cfg.LoopBackCap = 1
	ctx := context.Background()

	runToSaveOrLoop(t, o, id)
	if _, err := o.LoopBack(ctx, id); err != nil {
		t.Fatalf("first LoopBack: %v", err)
	}

	// Second pass back to stage 5.
	v, err := o.Questions(ctx, id)
	if err != nil {
		t.Fatalf("Questions after loop: %v", err)
	}
	qs := v.Session.Questions
	o.SubmitAnswer(ctx, id, qs[0].ID, "Led 12 personnel")
	o.SubmitAnswer(ctx, id, qs[1].ID, "saved $40K")
	for i := 0; i < 3; i++ {
		if v, err = o.AdvanceStage(ctx, id); err != nil {
			t.Fatalf("AdvanceStage: %v", err)
		}
	}

	if v.CanLoopBack {
		t.Errorf("loop-back should no longer be offered at the cap")
	}
	// The call itself still succeeds: the cap is advisory.
	if _, err := o.LoopBack(ctx, id); err != nil {
		t.Errorf("LoopBack past cap should succeed, got %v", err)
	}
}

func TestCompleteArchivesStatement(t *testing.T) {
	provider := &fakeProvider{responses: pipelineResponses()}
	o, statements, id := setupOrchestrator(t, provider)
	ctx := context.Background()

	runToSaveOrLoop(t, o, id)

	v, err := o.Complete(ctx, id)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !v.Session.Completed || !v.Statement.Completed {
		t.Errorf("completion flags not set: session=%v statement=%v", v.Session.Completed, v.Statement.Completed)
	}

	st, _ := statements.GetByID(ctx, id)
	if !st.Completed {
		t.Errorf("statement not marked completed in store")
	}

	// Loop-back after completion is rejected.
	_, err = o.LoopBack(ctx, id)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError after completion, got %v", err)
	}
}

func TestCompleteBeforeTerminalStage(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{{content: questionsJSON}}}
	o, _, id := setupOrchestrator(t, provider)

	toQuestioning(t, o, id)
	_, err := o.Complete(context.Background(), id)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestAdvancePastTerminalStage(t *testing.T) {
	provider := &fakeProvider{responses: pipelineResponses()}
	o, _, id := setupOrchestrator(t, provider)

	runToSaveOrLoop(t, o, id)
	_, err := o.AdvanceStage(context.Background(), id)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError at terminal stage, got %v", err)
	}
}

func TestCompleteRetryRepairsStatement(t *testing.T) {
	provider := &fakeProvider{responses: pipelineResponses()}
	o, statements, id := setupOrchestrator(t, provider)
	ctx := context.Background()

	runToSaveOrLoop(t, o, id)

	// A session row marked completed while the statement row is not, as a
	// crash between the two writes would have left it.
	sess, err := o.sessions.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	sess.Completed = true
	if err := o.sessions.Save(ctx, sess); err != nil {
		t.Fatalf("Save session: %v", err)
	}

	v, err := o.Complete(ctx, id)
	if err != nil {
		t.Fatalf("Complete retry: %v", err)
	}
	if !v.Statement.Completed {
		t.Errorf("view statement still incomplete after retry")
	}
	st, _ := statements.GetByID(ctx, id)
	if !st.Completed {
		t.Errorf("statement row still incomplete after retry")
	}
}

func TestCompleteReleasesSessionLock(t *testing.T) {
	provider := &fakeProvider{responses: pipelineResponses()}
	o, _, id := setupOrchestrator(t, provider)

	runToSaveOrLoop(t, o, id)
	if _, err := o.Complete(context.Background(), id); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	o.mu.Lock()
	_, held := o.locks[id]
	o.mu.Unlock()
	if held {
		t.Errorf("lock entry retained after completion")
	}
}

func TestAdvanceAuditsEachTransition(t *testing.T) {
	provider := &fakeProvider{responses: pipelineResponses()}
	o, _, id := setupOrchestrator(t, provider)
	ctx := context.Background()

	runToSaveOrLoop(t, o, id)

	entries, err := o.audit.Query(ctx, audit.QueryFilter{Action: audit.ActionStageAdvanced})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 stage advances, got %d", len(entries))
	}
	got := map[[2]int]bool{}
	for _, e := range entries {
		got[[2]int{e.PreviousStage, e.NewStage}] = true
	}
	for _, want := range [][2]int{{1, 2}, {2, 3}, {3, 4}, {4, 5}} {
		if !got[want] {
			t.Errorf("missing audit record for %d -> %d transition", want[0], want[1])
		}
	}
}

func TestConcurrentAnswersAreSerialized(t *testing.T) {
	provider := &fakeProvider{responses: []fakeResponse{{content: questionsJSON}}}
	o, _, id := setupOrchestrator(t, provider)
	ctx := context.Background()

	v := toQuestioning(t, o, id)
	qs := v.Session.Questions

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(q Question, n int) {
			defer wg.Done()
			o.SubmitAnswer(ctx, id, q.ID, fmt.Sprintf("answer %d", n))
		}(qs[i], i)
	}
	wg.Wait()

	got, _ := o.Get(ctx, id)
	if len(got.Session.Answers) != 3 {
		t.Errorf("expected 3 answers after concurrent submits, got %d", len(got.Session.Answers))
	}
}
