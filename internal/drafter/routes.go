package drafter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jcortez/winsmith/internal/refine"
	"github.com/jcortez/winsmith/internal/statement"
)

// RegisterRoutes mounts the drafting API route.
func RegisterRoutes(r chi.Router, d *Drafter) {
	r.Post("/api/statements/draft", handleDraft(d))
}

type draftRequest struct {
	EntryIDs []string `json:"entry_ids"`
	Mode     string   `json:"mode"` // "combine" (default) or "separate"
}

func handleDraft(d *Drafter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req draftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if len(req.EntryIDs) == 0 {
			http.Error(w, `{"error":"entry_ids is required"}`, http.StatusBadRequest)
			return
		}

		var (
			statements []statement.Statement
			err        error
		)
		switch req.Mode {
		case "", "combine":
			var st *statement.Statement
			st, err = d.Combine(r.Context(), req.EntryIDs)
			if st != nil {
				statements = []statement.Statement{*st}
			}
		case "separate":
			statements, err = d.Separate(r.Context(), req.EntryIDs)
		default:
			http.Error(w, `{"error":"mode must be combine or separate"}`, http.StatusBadRequest)
			return
		}

		if err != nil {
			var genFailed *refine.GenerationFailedError
			switch {
			case errors.Is(err, refine.ErrNotFound):
				http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusNotFound)
			case errors.As(err, &genFailed):
				http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadGateway)
			default:
				http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(statements)
	}
}
