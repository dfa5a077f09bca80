package store

import (
	"context"
	"sort"
	"sync"
)

// memoryStore keeps members in a score-ordered slice. Each (payload, score)
// pair is stored once and equal scores order by payload, so the same payload
// recorded at two different times is two members.
type memoryStore struct {
	members []Member
	// mux guards members against concurrent requests.
	mux *sync.RWMutex
}

func NewMemoryStore() *memoryStore {
	return &memoryStore{
		members: []Member{},
		mux:     &sync.RWMutex{},
	}
}

func (s *memoryStore) Add(_ context.Context, member string, score float64) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	i := s.search(score, member)
	if i < len(s.members) && s.members[i].Score == score && s.members[i].Payload == member {
		return nil
	}

	s.members = append(s.members, Member{})
	copy(s.members[i+1:], s.members[i:])
	s.members[i] = Member{Payload: member, Score: score}

	return nil
}

func (s *memoryStore) RangeByScore(_ context.Context, min, max float64) ([]Member, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	lo, hi := s.bounds(min, max)
	out := make([]Member, hi-lo)
	copy(out, s.members[lo:hi])
	return out, nil
}

func (s *memoryStore) RemoveRangeByScore(_ context.Context, min, max float64) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	lo, hi := s.bounds(min, max)
	s.members = append(s.members[:lo], s.members[hi:]...)
	return nil
}

// Len reports the number of stored members.
func (s *memoryStore) Len() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return len(s.members)
}

// search finds the insertion point for (score, member). Callers hold mux.
func (s *memoryStore) search(score float64, member string) int {
	return sort.Search(len(s.members), func(i int) bool {
		m := s.members[i]
		return m.Score > score || (m.Score == score && m.Payload >= member)
	})
}

// bounds returns the half-open slice range covering min <= score <= max.
// Callers hold mux.
func (s *memoryStore) bounds(min, max float64) (int, int) {
	if min > max {
		return 0, 0
	}
	lo := sort.Search(len(s.members), func(i int) bool { return s.members[i].Score >= min })
	hi := sort.Search(len(s.members), func(i int) bool { return s.members[i].Score > max })
	return lo, hi
}
