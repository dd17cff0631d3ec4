package options

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned by session operations after Close.
var ErrSessionClosed = errors.New("options: session closed")

// ResolutionError reports a failed catalog query for one field. It never
// affects other fields of the form.
type ResolutionError struct {
	Field    string
	Endpoint string
	Err      error
}

func (e *ResolutionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("options: resolve %q from %q: %v", e.Field, e.Endpoint, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether issuing the same query again may succeed. Unknown
// sources are configuration defects and are not retried.
func (e *ResolutionError) Retryable() bool {
	return e != nil && !errors.Is(e.Err, ErrUnknownSource)
}
