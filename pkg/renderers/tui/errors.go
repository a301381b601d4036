package tui

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("tui: aborted")
	// ErrTooManyAttempts is returned when a page still fails validation after
	// the configured number of prompts.
	ErrTooManyAttempts = errors.New("tui: page still invalid after repeated attempts")
)
