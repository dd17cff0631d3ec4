package prompt

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("prompt: aborted")
	// ErrNoOptions is returned when a required option field has nothing to
	// choose from.
	ErrNoOptions = errors.New("prompt: no options to choose from")
)
