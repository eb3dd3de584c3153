package clock

import (
	"sync"
	"time"
)

// Clock is an injectable time source. Production code uses System; tests
// freeze or step time to make expiry logic deterministic.
type Clock func() time.Time

func System() Clock { return time.Now }

func Frozen(t time.Time) Clock { return func() time.Time { return t } }

// Stub is a settable clock for tests that need time to move between calls.
type Stub struct {
	mu  sync.Mutex
	now time.Time
}

func NewStub(start time.Time) *Stub {
	return &Stub{now: start}
}

func (s *Stub) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *Stub) Set(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = t
}

func (s *Stub) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func (s *Stub) Clock() Clock { return s.Now }
