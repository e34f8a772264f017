package memory

import (
	"sync"

	"speaking-assessment-service/internal/app"
)

// TrackerRegistry is an in-memory implementation of app.TrackerRegistry.
type TrackerRegistry struct {
	mu       sync.RWMutex
	trackers map[studentKey]*app.ProgressTracker
}

func NewTrackerRegistry() *TrackerRegistry {
	return &TrackerRegistry{
		trackers: make(map[studentKey]*app.ProgressTracker),
	}
}

func (r *TrackerRegistry) GetOrCreate(sessionID, studentName string, create func() (*app.ProgressTracker, error)) (*app.ProgressTracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := studentKey{sessionID, studentName}
	if tracker, ok := r.trackers[key]; ok {
		return tracker, nil
	}
	tracker, err := create()
	if err != nil {
		return nil, err
	}
	r.trackers[key] = tracker
	return tracker, nil
}

func (r *TrackerRegistry) Get(sessionID, studentName string) (*app.ProgressTracker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tracker, ok := r.trackers[studentKey{sessionID, studentName}]
	return tracker, ok
}

func (r *TrackerRegistry) Delete(sessionID, studentName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trackers, studentKey{sessionID, studentName})
}

func (r *TrackerRegistry) All() []*app.ProgressTracker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*app.ProgressTracker, 0, len(r.trackers))
	for _, tracker := range r.trackers {
		out = append(out, tracker)
	}
	return out
}
