package tui

import "slices"

// State tracks what the runner has told the user during one session: the
// messages last shown per field and how often each page was attempted.
type State struct {
	errors   map[string][]string
	attempts map[int]int
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		errors:   make(map[string][]string),
		attempts: make(map[int]int),
	}
}

// Errors returns the messages last shown, keyed by field.
func (s *State) Errors() map[string][]string {
	if s == nil {
		return nil
	}
	return s.errors
}

// ErrorsFor returns the messages last shown for key.
func (s *State) ErrorsFor(key string) []string {
	if s == nil || len(s.errors) == 0 {
		return nil
	}
	return s.errors[key]
}

// SetErrors replaces the messages of key; an empty list clears them.
func (s *State) SetErrors(key string, msgs []string) {
	if s == nil {
		return
	}
	if len(msgs) == 0 {
		delete(s.errors, key)
		return
	}
	s.errors[key] = slices.Clone(msgs)
}

// Attempt records another pass over page and returns the total.
func (s *State) Attempt(page int) int {
	if s == nil {
		return 0
	}
	s.attempts[page]++
	return s.attempts[page]
}

// Attempts returns how often page was attempted.
func (s *State) Attempts(page int) int {
	if s == nil {
		return 0
	}
	return s.attempts[page]
}
