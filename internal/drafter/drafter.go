package drafter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jcortez/winsmith/internal/audit"
	"github.com/jcortez/winsmith/internal/config"
	"github.com/jcortez/winsmith/internal/entry"
	"github.com/jcortez/winsmith/internal/llm"
	"github.com/jcortez/winsmith/internal/refine"
	"github.com/jcortez/winsmith/internal/statement"
)

// Drafter turns win entries into drafted statements, each paired with a
// stage-1 refinement session. Combine folds several entries into one
// statement; Separate drafts one statement per entry.
type Drafter struct {
	cfg        config.RefineConfig
	entries    *entry.Store
	statements *statement.Store
	sessions   *refine.Store
	provider   llm.Provider
	model      string
	audit      *audit.Store
}

// New creates a Drafter. The audit store may be nil.
func New(cfg config.RefineConfig, entries *entry.Store, statements *statement.Store, sessions *refine.Store, provider llm.Provider, model string, auditStore *audit.Store) *Drafter {
	return &Drafter{
		cfg:        cfg,
		entries:    entries,
		statements: statements,
		sessions:   sessions,
		provider:   provider,
		model:      model,
		audit:      auditStore,
	}
}

// Combine drafts a single statement from the entries that resolve from
// the given ids. Missing ids are skipped; it is an error only if none
// resolve. The statement inherits the first resolved entry's category.
func (d *Drafter) Combine(ctx context.Context, entryIDs []string) (*statement.Statement, error) {
	entries, err := d.entries.GetByIDs(ctx, entryIDs)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries resolved from %d ids: %w", len(entryIDs), refine.ErrNotFound)
	}

	content, err := d.generate(ctx, entries)
	if err != nil {
		return nil, err
	}
	return d.create(ctx, content, entries)
}

// Separate drafts one statement per resolved entry. Missing ids are
// skipped; it is an error only if none resolve.
func (d *Drafter) Separate(ctx context.Context, entryIDs []string) ([]statement.Statement, error) {
	entries, err := d.entries.GetByIDs(ctx, entryIDs)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries resolved from %d ids: %w", len(entryIDs), refine.ErrNotFound)
	}

	var statements []statement.Statement
	for _, e := range entries {
		content, err := d.generate(ctx, []entry.Entry{e})
		if err != nil {
			return nil, err
		}
		st, err := d.create(ctx, content, []entry.Entry{e})
		if err != nil {
			return nil, err
		}
		statements = append(statements, *st)
	}
	return statements, nil
}

func (d *Drafter) generate(ctx context.Context, entries []entry.Entry) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, time.Duration(d.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	resp, err := d.provider.Complete(gctx, llm.CompletionRequest{
		Model: d.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: draftSystemPrompt},
			{Role: llm.RoleUser, Content: buildDraftPrompt(entries, d.cfg.StrictMaxChars, d.cfg.BannedWords)},
		},
		MaxTokens:   512,
		Temperature: 0.5,
	})
	if err != nil {
		return "", &refine.GenerationFailedError{Stage: refine.StageDrafted, Step: "draft", Cause: err}
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return "", &refine.GenerationFailedError{Stage: refine.StageDrafted, Step: "draft", Cause: fmt.Errorf("empty draft output")}
	}
	return content, nil
}

func (d *Drafter) create(ctx context.Context, content string, entries []entry.Entry) (*statement.Statement, error) {
	sourceIDs := make([]string, len(entries))
	for i, e := range entries {
		sourceIDs[i] = e.ID
	}

	st, err := d.statements.Create(ctx, statement.Statement{
		Content:        content,
		Category:       entries[0].Category,
		SourceEntryIDs: sourceIDs,
	})
	if err != nil {
		return nil, err
	}
	if _, err := d.sessions.Create(ctx, st.ID, st.Content); err != nil {
		return nil, err
	}

	if d.audit != nil {
		_ = d.audit.Log(ctx, audit.Entry{
			Action:   audit.ActionStatementDrafted,
			Scope:    audit.ScopeStatement,
			ScopeID:  st.ID,
			Summary:  fmt.Sprintf("drafted from %d entries", len(entries)),
			NewValue: st.Content,
		})
	}
	return st, nil
}
