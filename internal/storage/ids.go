package storage

import (
	"sync"
	"time"
)

// IDSequence hands out creation-time millisecond ids, bumped when two
// creates land in the same millisecond so ids stay unique and increasing.
type IDSequence struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDSequence() *IDSequence {
	return &IDSequence{now: time.Now}
}

// Seed makes the sequence continue after an existing id.
func (s *IDSequence) Seed(last int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last > s.last {
		s.last = last
	}
}

func (s *IDSequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.now().UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id
}
