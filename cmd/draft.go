package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jcortez/winsmith/internal/audit"
	"github.com/jcortez/winsmith/internal/config"
	"github.com/jcortez/winsmith/internal/db"
	"github.com/jcortez/winsmith/internal/drafter"
	"github.com/jcortez/winsmith/internal/entry"
	"github.com/jcortez/winsmith/internal/llm"
	"github.com/jcortez/winsmith/internal/refine"
	"github.com/jcortez/winsmith/internal/statement"
)

var draftCategory string

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Draft a statement for every stored entry without one",
	Long:  `Batch-drafts one statement per stored entry, skipping entries already referenced by a statement. Prints an estimated generation cost when done.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		provider, err := buildProvider(cfg)
		if err != nil {
			return err
		}
		tracked := &usageTracker{provider: provider}

		database, err := db.Open(filepath.Join(cfg.DataDir, "winsmith.db"))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		entries := entry.NewStore(database)
		statements := statement.NewStore(database)
		sessions := refine.NewStore(database)
		d := drafter.New(cfg.Refine, entries, statements, sessions, tracked, cfg.Model, audit.NewStore(database))

		ctx := context.Background()

		all, err := entries.List(ctx, entry.ListFilter{Category: draftCategory})
		if err != nil {
			return fmt.Errorf("listing entries: %w", err)
		}
		pending, err := withoutStatements(ctx, statements, all)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("Nothing to draft: every entry already has a statement.")
			return nil
		}

		bar := progressbar.Default(int64(len(pending)), "drafting")
		var drafted int
		for _, e := range pending {
			drafts, err := d.Separate(ctx, []string{e.ID})
			if err != nil {
				fmt.Printf("\nentry %s: %v\n", e.ID, err)
			} else {
				drafted++
				if verbose {
					fmt.Printf("\n%s -> %s\n", e.ID, drafts[0].Content)
				}
			}
			bar.Add(1)
		}

		cost := tracked.Cost()
		fmt.Printf("\nDrafted %d of %d statements (estimated cost $%.4f)\n", drafted, len(pending), cost)
		return nil
	},
}

// withoutStatements filters out entries already referenced by a statement.
func withoutStatements(ctx context.Context, statements *statement.Store, all []entry.Entry) ([]entry.Entry, error) {
	existing, err := statements.List(ctx, statement.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing statements: %w", err)
	}
	used := map[string]bool{}
	for _, st := range existing {
		for _, id := range st.SourceEntryIDs {
			used[id] = true
		}
	}

	var pending []entry.Entry
	for _, e := range all {
		if !used[e.ID] {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

// usageTracker decorates a provider to accumulate an estimated USD cost
// across completions.
type usageTracker struct {
	provider llm.Provider
	mu       sync.Mutex
	cost     float64
}

func (t *usageTracker) Name() string { return t.provider.Name() }

func (t *usageTracker) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := t.provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.cost += llm.EstimateCost(resp.Model, resp.InputTokens, resp.OutputTokens)
	t.mu.Unlock()
	return resp, nil
}

func (t *usageTracker) Cost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cost
}

func init() {
	draftCmd.Flags().StringVar(&draftCategory, "category", "", "only draft entries in this category")
	rootCmd.AddCommand(draftCmd)
}
