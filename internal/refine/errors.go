package refine

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a referenced statement or session that does not
// exist. It is propagated to the caller, never retried.
var ErrNotFound = errors.New("not found")

// InvalidTransitionError reports a stage-gating violation. The caller
// must fix its client state; retrying the same call will fail again.
type InvalidTransitionError struct {
	From   Stage
	To     Stage
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid transition from %s to %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// GenerationFailedError reports a failed or malformed generation call.
// No session state was committed, so the caller may safely retry the
// same transition.
type GenerationFailedError struct {
	Stage Stage
	Step  string // which generation step failed: questions, merge, critique, polish, draft
	Cause error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("generation failed at stage %s (%s): %v", e.Stage, e.Step, e.Cause)
}

func (e *GenerationFailedError) Unwrap() error {
	return e.Cause
}
