package conversation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock supplies message timestamps
type Clock interface {
	Now() time.Time
}

// IDGenerator supplies message identifiers. Implementations must never
// return the same value twice within a session lifetime.
type IDGenerator interface {
	NewID() string
}

// Generator bundles the two capabilities message constructors need
type Generator struct {
	Clock Clock
	IDs   IDGenerator
}

// DefaultGenerator uses the wall clock and random UUIDs.
func DefaultGenerator() Generator {
	return Generator{Clock: SystemClock{}, IDs: UUIDGenerator{}}
}

func (g Generator) now() time.Time {
	if g.Clock == nil {
		return time.Now().UTC()
	}
	return g.Clock.Now()
}

func (g Generator) newID() string {
	if g.IDs == nil {
		return uuid.NewString()
	}
	return g.IDs.NewID()
}

// SystemClock reads time.Now in UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// UUIDGenerator returns random (v4) UUIDs
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// FixedClock always returns T
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// SequenceIDs hands out Prefix-1, Prefix-2, ...
type SequenceIDs struct {
	Prefix string

	mu sync.Mutex
	n  int
}

func (s *SequenceIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	prefix := s.Prefix
	if prefix == "" {
		prefix = "msg"
	}
	return fmt.Sprintf("%s-%d", prefix, s.n)
}
