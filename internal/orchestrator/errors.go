package orchestrator

import "errors"

// ErrTimeout marks a run that hit its overall deadline. Distinct from other
// failures: partially streamed content was discarded unless a version had
// already been durably written.
var ErrTimeout = errors.New("orchestration deadline exceeded")
