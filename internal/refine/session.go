package refine

import "strings"

// RecordAnswer upserts an answer. Content is not validated; blank answers
// are kept but do not count toward the gating threshold.
func (s *Session) RecordAnswer(questionID, text string) {
	if s.Answers == nil {
		s.Answers = map[string]string{}
	}
	s.Answers[questionID] = text
}

// Advance moves the stage pointer. The only legal moves are one step
// forward, or the explicit loop-back from stage 5 to stage 2.
func (s *Session) Advance(to Stage) error {
	if to == s.CurrentStage+1 && to <= StageSaveOrLoop {
		s.CurrentStage = to
		return nil
	}
	if s.CurrentStage == StageSaveOrLoop && to == StageQuestioning {
		s.CurrentStage = to
		return nil
	}
	return &InvalidTransitionError{From: s.CurrentStage, To: to}
}

// Reset prepares the session for another refinement pass: the polished
// draft becomes the new starting content, every per-pass artifact is
// cleared, and the stage returns to questioning. Used only by loop-back.
func (s *Session) Reset() {
	if s.Artifacts.Polished != "" {
		s.Artifacts.InitialDraft = s.Artifacts.Polished
	}
	s.Artifacts.PostAnswer = ""
	s.Artifacts.Polished = ""
	s.Answers = map[string]string{}
	s.Feedback = nil
	s.Questions = nil
	s.CurrentStage = StageQuestioning
}

// AnsweredQuestion pairs a question with its non-blank answer.
type AnsweredQuestion struct {
	Question Question
	Answer   string
}

// AnsweredQuestions returns the current questions that have a non-blank
// answer, in question order.
func (s *Session) AnsweredQuestions() []AnsweredQuestion {
	var out []AnsweredQuestion
	for _, q := range s.Questions {
		if a, ok := s.Answers[q.ID]; ok && strings.TrimSpace(a) != "" {
			out = append(out, AnsweredQuestion{Question: q, Answer: a})
		}
	}
	return out
}
