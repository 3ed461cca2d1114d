package download

import (
	"errors"
	"fmt"
)

// ErrNoReferences is returned when a batch is started without any input.
var ErrNoReferences = errors.New("no references to download")

// Attempt phases.
const (
	PhasePrepare   = "prepare"
	PhaseDownload  = "download"
	PhaseTranscode = "transcode"
)

// AttemptError is the transient failure of one fetch attempt. The fetcher
// retries it until attempts run out.
type AttemptError struct {
	Phase   string
	Attempt int
	Err     error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s (attempt %d): %v", e.Phase, e.Attempt, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// Reason is the message recorded on a failed outcome.
func (e *AttemptError) Reason() string {
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}
