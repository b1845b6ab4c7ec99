package challenge

import (
	"sort"
	"sync"
	"time"
)

// Store holds at most one outstanding challenge per subject.
// All access goes through atomic put / take / sweep so a resolution can only
// ever be claimed once.
type Store struct {
	mu      sync.Mutex
	pending map[int64]Challenge
}

// NewStore creates an empty challenge store
func NewStore() *Store {
	return &Store{
		pending: make(map[int64]Challenge),
	}
}

// Put stores c for subject, replacing any existing challenge.
// The replaced challenge, if any, is returned so its prompt can be retired.
func (s *Store) Put(subject int64, c Challenge) (Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.pending[subject]
	s.pending[subject] = c
	return prev, existed
}

// TakeIfMatches removes and returns the challenge for subject.
// A non-zero prompt must equal the stored challenge's prompt, so answers
// clicked on a superseded message do not resolve the newer challenge.
func (s *Store) TakeIfMatches(subject int64, prompt PromptHandle) (Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.pending[subject]
	if !ok {
		return Challenge{}, false
	}
	if !prompt.IsZero() && c.Prompt != prompt {
		return Challenge{}, false
	}

	delete(s.pending, subject)
	return c, true
}

// Sweep removes and returns every challenge whose deadline is at or before
// now, oldest deadline first.
func (s *Store) Sweep(now time.Time) []Challenge {
	s.mu.Lock()
	var expired []Challenge
	for subject, c := range s.pending {
		if c.Expired(now) {
			expired = append(expired, c)
			delete(s.pending, subject)
		}
	}
	s.mu.Unlock()

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].Deadline.Before(expired[j].Deadline)
	})
	return expired
}

// Len returns the number of outstanding challenges
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
