package testfixtures

import (
	"fmt"
	"sync"
)

// IDSequence yields deterministic identifiers: "prefix-1", "prefix-2", and
// so on.
type IDSequence struct {
	mu     sync.Mutex
	prefix string
	n      uint64
}

// NewIDSequence constructs a sequence with the given prefix, defaulting to
// "id" when empty.
func NewIDSequence(prefix string) *IDSequence {
	if prefix == "" {
		prefix = "id"
	}
	return &IDSequence{prefix: prefix}
}

// Next returns the next identifier.
func (s *IDSequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}

// NextFunc exposes Next in the shape services take as a dependency.
func (s *IDSequence) NextFunc() func() string {
	if s == nil {
		return func() string { return "" }
	}
	return s.Next
}
