package state

import (
	"fmt"
)

// ResumeFromState prepares an existing session state for resumption.
//
// It validates that the work dir still exists and that the plan matches the
// recorded fingerprint (unless force is true), then marks the session
// IN_PROGRESS. Completed sessions cannot be resumed.
func ResumeFromState(existing *SessionState, workDir string, force bool) error {
	if existing.Status == StatusComplete {
		return fmt.Errorf("session %s is already complete", existing.SessionID)
	}
	if !force {
		if err := ValidateState(existing, workDir); err != nil {
			return fmt.Errorf("state validation failed: %w", err)
		}
	}

	existing.Status = StatusInProgress
	return nil
}
