package refine

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the refinement workflow API routes.
func RegisterRoutes(r chi.Router, o *Orchestrator) {
	r.Route("/api/refine/{statementID}", func(r chi.Router) {
		r.Get("/", handleGet(o))
		r.Post("/start", handleStart(o))
		r.Post("/questions", handleQuestions(o))
		r.Post("/answers", handleSubmitAnswer(o))
		r.Post("/advance", handleAdvance(o))
		r.Post("/loop", handleLoopBack(o))
		r.Post("/complete", handleComplete(o))
	})
}

// writeView writes a view or maps the error taxonomy onto status codes:
// absent resources 404, gating violations 409, generation failures 502.
func writeView(w http.ResponseWriter, v *View, err error) {
	if err != nil {
		var invalid *InvalidTransitionError
		var genFailed *GenerationFailedError
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusNotFound)
		case errors.As(err, &invalid):
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusConflict)
		case errors.As(err, &genFailed):
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadGateway)
		default:
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func handleGet(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := o.Get(r.Context(), chi.URLParam(r, "statementID"))
		writeView(w, v, err)
	}
}

func handleStart(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := o.StartRefinement(r.Context(), chi.URLParam(r, "statementID"))
		writeView(w, v, err)
	}
}

func handleQuestions(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := o.Questions(r.Context(), chi.URLParam(r, "statementID"))
		writeView(w, v, err)
	}
}

type answerRequest struct {
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
}

func handleSubmitAnswer(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req answerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.QuestionID == "" {
			http.Error(w, `{"error":"question_id is required"}`, http.StatusBadRequest)
			return
		}

		v, err := o.SubmitAnswer(r.Context(), chi.URLParam(r, "statementID"), req.QuestionID, req.Text)
		writeView(w, v, err)
	}
}

func handleAdvance(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := o.AdvanceStage(r.Context(), chi.URLParam(r, "statementID"))
		writeView(w, v, err)
	}
}

func handleLoopBack(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := o.LoopBack(r.Context(), chi.URLParam(r, "statementID"))
		writeView(w, v, err)
	}
}

func handleComplete(o *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := o.Complete(r.Context(), chi.URLParam(r, "statementID"))
		writeView(w, v, err)
	}
}
