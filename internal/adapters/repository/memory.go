package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/okian/vibo/internal/domain/model"
	"github.com/okian/vibo/internal/domain/rating"
)

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	players  map[string]model.Player
	matches  map[string]model.Match
	byPlayer map[string][]string // player id -> match ids
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players:  make(map[string]model.Player),
		matches:  make(map[string]model.Match),
		byPlayer: make(map[string][]string),
	}
}

func (s *MemoryStore) CreatePlayer(_ context.Context, p model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[p.ID]; ok {
		return fmt.Errorf("player %s: %w", p.ID, ErrDuplicate)
	}
	s.players[p.ID] = p
	return nil
}

func (s *MemoryStore) Player(_ context.Context, id string) (model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return model.Player{}, fmt.Errorf("player %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (s *MemoryStore) Players(_ context.Context) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b model.Player) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) Match(_ context.Context, id string) (model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[id]
	if !ok {
		return model.Match{}, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	return cloneMatch(m), nil
}

func (s *MemoryStore) Matches(_ context.Context) ([]model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Match, 0, len(s.matches))
	for _, m := range s.matches {
		out = append(out, cloneMatch(m))
	}
	return rating.SortMatches(out), nil
}

func (s *MemoryStore) PlayerMatches(_ context.Context, id string) ([]model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.players[id]; !ok {
		return nil, fmt.Errorf("player %s: %w", id, ErrNotFound)
	}
	ids := s.byPlayer[id]
	out := make([]model.Match, 0, len(ids))
	for _, mid := range ids {
		out = append(out, cloneMatch(s.matches[mid]))
	}
	sorted := rating.SortMatches(out)
	slices.Reverse(sorted)
	return sorted, nil
}

func (s *MemoryStore) RecordMatch(_ context.Context, m model.Match, players [4]model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.matches[m.ID]; ok {
		return fmt.Errorf("match %s: %w", m.ID, ErrDuplicate)
	}
	for _, p := range players {
		if _, ok := s.players[p.ID]; !ok {
			return fmt.Errorf("player %s: %w", p.ID, ErrNotFound)
		}
	}

	s.matches[m.ID] = cloneMatch(m)
	for _, p := range players {
		s.players[p.ID] = p
		s.byPlayer[p.ID] = append(s.byPlayer[p.ID], m.ID)
	}
	return nil
}

func (s *MemoryStore) ApplyReplay(_ context.Context, w ReplayWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// validate first so a bad write leaves nothing behind
	for _, p := range w.Players {
		if _, ok := s.players[p.ID]; !ok {
			return fmt.Errorf("player %s: %w", p.ID, ErrNotFound)
		}
	}
	for id := range w.Changes {
		if _, ok := s.matches[id]; !ok {
			return fmt.Errorf("match %s: %w", id, ErrNotFound)
		}
	}

	for _, p := range w.Players {
		cur := s.players[p.ID]
		cur.Rating, cur.MatchesPlayed, cur.MatchesWon = p.Rating, p.MatchesPlayed, p.MatchesWon
		s.players[p.ID] = cur
	}
	for id, ch := range w.Changes {
		m := s.matches[id]
		m.Changes = &ch
		s.matches[id] = m
	}
	for _, id := range w.Cleared {
		if m, ok := s.matches[id]; ok {
			m.Changes = nil
			s.matches[id] = m
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneMatch(m model.Match) model.Match {
	m.Sets = slices.Clone(m.Sets)
	if m.Changes != nil {
		ch := *m.Changes
		m.Changes = &ch
	}
	return m
}
