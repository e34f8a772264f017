package memory

import (
	"context"
	"sync"

	"speaking-assessment-service/internal/domain"
)

type studentKey struct {
	sessionID string
	student   string
}

// SessionStore is an in-memory implementation of app.SessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	progress map[studentKey]domain.GameProgress
	results  map[string][]domain.StudentResult
	ranks    map[studentKey]domain.RankingSnapshot
	gates    map[string]bool
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		progress: make(map[studentKey]domain.GameProgress),
		results:  make(map[string][]domain.StudentResult),
		ranks:    make(map[studentKey]domain.RankingSnapshot),
		gates:    make(map[string]bool),
	}
}

func (s *SessionStore) SaveProgress(_ context.Context, sessionID string, progress domain.GameProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[studentKey{sessionID, progress.StudentName}] = progress
	return nil
}

func (s *SessionStore) LoadProgress(_ context.Context, sessionID, studentName string) (domain.GameProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	progress, ok := s.progress[studentKey{sessionID, studentName}]
	if !ok {
		return domain.GameProgress{}, domain.ErrProgressNotFound
	}
	return progress, nil
}

// AppendOrReplaceResult replaces a student's result in place so the list keeps
// first-submission order. A final result is kept over a later intermediate one.
func (s *SessionStore) AppendOrReplaceResult(_ context.Context, sessionID string, result domain.StudentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.results[sessionID]
	for i := range list {
		if list[i].StudentName == result.StudentName {
			if result.Supersedes(list[i]) {
				list[i] = result
			}
			return nil
		}
	}
	s.results[sessionID] = append(list, result)
	return nil
}

func (s *SessionStore) LoadResults(_ context.Context, sessionID string) ([]domain.StudentResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.StudentResult, len(s.results[sessionID]))
	copy(out, s.results[sessionID])
	return out, nil
}

// CacheRank keeps the first snapshot written for a student.
func (s *SessionStore) CacheRank(_ context.Context, sessionID, studentName string, snapshot domain.RankingSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := studentKey{sessionID, studentName}
	if _, ok := s.ranks[key]; !ok {
		s.ranks[key] = snapshot
	}
	return nil
}

func (s *SessionStore) LoadRank(_ context.Context, sessionID, studentName string) (domain.RankingSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.ranks[studentKey{sessionID, studentName}]
	return snap, ok, nil
}

func (s *SessionStore) OpenRankingGate(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gates[sessionID] = true
	return nil
}

func (s *SessionStore) RankingGateOpen(_ context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gates[sessionID], nil
}
