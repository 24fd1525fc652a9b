package testfixtures

import (
	"fmt"
	"sync"
)

// Sequence produces deterministic identifiers such as "session-0001".
type Sequence struct {
	mu      sync.Mutex
	prefix  string
	counter int
}

// NewSequence constructs a sequence. An empty prefix defaults to "id".
func NewSequence(prefix string) *Sequence {
	if prefix == "" {
		prefix = "id"
	}
	return &Sequence{prefix: prefix}
}

// Next returns the next identifier.
func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	return fmt.Sprintf("%s-%04d", s.prefix, s.counter)
}

// NextFunc exposes Next for injection into application.Options.
func (s *Sequence) NextFunc() func() string {
	if s == nil {
		return func() string { return "" }
	}
	return s.Next
}

// Issued reports how many identifiers have been handed out.
func (s *Sequence) Issued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

// Reset rewinds the counter so the next identifier is prefix-0001 again.
func (s *Sequence) Reset() {
	s.mu.Lock()
	s.counter = 0
	s.mu.Unlock()
}

// HexSuffix returns a generator of fixed-width hex strings for fallback slugs.
func HexSuffix() func() string {
	var (
		mu sync.Mutex
		n  uint32
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%08x", n)
	}
}
