package drafter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/jcortez/winsmith/internal/audit"
	"github.com/jcortez/winsmith/internal/config"
	"github.com/jcortez/winsmith/internal/db"
	"github.com/jcortez/winsmith/internal/entry"
	"github.com/jcortez/winsmith/internal/llm"
	"github.com/jcortez/winsmith/internal/refine"
	"github.com/jcortez/winsmith/internal/statement"
)

// scriptedProvider returns canned drafts in order.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     []llm.CompletionRequest
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return nil, fmt.Errorf("no scripted response for call %d", len(p.calls))
	}
	content := p.responses[0]
	p.responses = p.responses[1:]
	return &llm.CompletionResponse{Content: content}, nil
}

type fixture struct {
	drafter  *Drafter
	entries  *entry.Store
	sessions *refine.Store
	provider *scriptedProvider
}

func setup(t *testing.T, provider *scriptedProvider) *fixture {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	entries := entry.NewStore(database)
	statements := statement.NewStore(database)
	sessions := refine.NewStore(database)
	cfg := config.RefineConfig{StrictMaxChars: 350, RelaxedMaxChars: 600, MinAnswers: 2, LoopBackCap: 2, TimeoutSeconds: 5}

	return &fixture{
		drafter:  New(cfg, entries, statements, sessions, provider, "fake-model", audit.NewStore(database)),
		entries:  entries,
		sessions: sessions,
		provider: provider,
	}
}

func (f *fixture) addEntry(t *testing.T, e entry.Entry) *entry.Entry {
	t.Helper()
	created, err := f.entries.Create(context.Background(), e)
	if err != nil {
		t.Fatalf("creating entry: %v", err)
	}
	return created
}

func TestCombineDraftsOneStatement(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"Overhauled records and trained 3 airmen, saving 40 hours monthly"}}
	f := setup(t, provider)
	ctx := context.Background()

	a := f.addEntry(t, entry.Entry{Action: "Overhauled the records process", Impact: "cut filing time", Category: "mission"})
	b := f.addEntry(t, entry.Entry{Action: "Trained 3 airmen", Result: "all qualified", Category: "training"})

	st, err := f.drafter.Combine(ctx, []string{a.ID, b.ID})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if st.Content != "Overhauled records and trained 3 airmen, saving 40 hours monthly" {
		t.Errorf("unexpected content: %q", st.Content)
	}
	if st.Category != "mission" {
		t.Errorf("expected first entry's category, got %q", st.Category)
	}
	if len(st.SourceEntryIDs) != 2 || st.SourceEntryIDs[0] != a.ID {
		t.Errorf("source entry ids mismatch: %v", st.SourceEntryIDs)
	}

	// A stage-1 session exists for the new statement.
	sess, err := f.sessions.Get(ctx, st.ID)
	if err != nil {
		t.Fatalf("getting session: %v", err)
	}
	if sess == nil || sess.CurrentStage != refine.StageDrafted {
		t.Errorf("expected stage-1 session, got %+v", sess)
	}
	if sess.Artifacts.InitialDraft != st.Content {
		t.Errorf("initial draft should mirror statement content")
	}

	// The prompt carried both entries' fields.
	prompt := provider.calls[0].Messages[1].Content
	for _, want := range []string{"Overhauled the records process", "cut filing time", "Trained 3 airmen", "all qualified"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("draft prompt missing %q", want)
		}
	}
}

func TestCombineSkipsMissingIDs(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"drafted"}}
	f := setup(t, provider)

	a := f.addEntry(t, entry.Entry{Action: "did a thing"})
	st, err := f.drafter.Combine(context.Background(), []string{"missing", a.ID})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if len(st.SourceEntryIDs) != 1 || st.SourceEntryIDs[0] != a.ID {
		t.Errorf("expected only the resolved entry, got %v", st.SourceEntryIDs)
	}
}

func TestCombineNoEntriesResolve(t *testing.T) {
	f := setup(t, &scriptedProvider{})

	_, err := f.drafter.Combine(context.Background(), []string{"missing-1", "missing-2"})
	if !errors.Is(err, refine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSeparateDraftsPerEntry(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"first draft", "second draft"}}
	f := setup(t, provider)
	ctx := context.Background()

	a := f.addEntry(t, entry.Entry{Action: "first", Category: "mission"})
	b := f.addEntry(t, entry.Entry{Action: "second", Category: "training"})

	statements, err := f.drafter.Separate(ctx, []string{a.ID, b.ID})
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(statements))
	}
	if statements[0].Content != "first draft" || statements[1].Content != "second draft" {
		t.Errorf("unexpected contents: %q / %q", statements[0].Content, statements[1].Content)
	}
	if statements[1].Category != "training" {
		t.Errorf("category not inherited per entry: %q", statements[1].Category)
	}

	for _, st := range statements {
		sess, _ := f.sessions.Get(ctx, st.ID)
		if sess == nil {
			t.Errorf("no session for drafted statement %s", st.ID)
		}
	}
}

func TestGenerateFailureWrapsError(t *testing.T) {
	provider := &scriptedProvider{err: fmt.Errorf("provider down")}
	f := setup(t, provider)

	a := f.addEntry(t, entry.Entry{Action: "did a thing"})
	_, err := f.drafter.Combine(context.Background(), []string{a.ID})
	var genFailed *refine.GenerationFailedError
	if !errors.As(err, &genFailed) {
		t.Fatalf("expected GenerationFailedError, got %v", err)
	}
	if genFailed.Stage != refine.StageDrafted || genFailed.Step != "draft" {
		t.Errorf("wrong failure location: stage %d step %s", genFailed.Stage, genFailed.Step)
	}
}

func TestDraftAPI(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"drafted statement"}}
	f := setup(t, provider)
	a := f.addEntry(t, entry.Entry{Action: "did a thing"})

	r := chi.NewRouter()
	RegisterRoutes(r, f.drafter)
	srv := httptest.NewServer(r)
	defer srv.Close()

	body, _ := json.Marshal(draftRequest{EntryIDs: []string{a.ID}})
	resp, err := http.Post(srv.URL+"/api/statements/draft", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status %d, want 201", resp.StatusCode)
	}
	var statements []statement.Statement
	json.NewDecoder(resp.Body).Decode(&statements)
	resp.Body.Close()
	if len(statements) != 1 || statements[0].Content != "drafted statement" {
		t.Errorf("unexpected response: %v", statements)
	}

	// Unknown entries map to 404.
	body, _ = json.Marshal(draftRequest{EntryIDs: []string{"missing"}})
	resp, _ = http.Post(srv.URL+"/api/statements/draft", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing entries: status %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()

	// Empty id list maps to 400.
	resp, _ = http.Post(srv.URL+"/api/statements/draft", "application/json", bytes.NewReader([]byte(`{"entry_ids":[]}`)))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty ids: status %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	// Unknown mode maps to 400.
	resp, _ = http.Post(srv.URL+"/api/statements/draft", "application/json", bytes.NewReader([]byte(`{"entry_ids":["x"],"mode":"merge"}`)))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad mode: status %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}
