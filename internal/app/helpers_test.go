package app_test

import (
	"context"
	"sync"
	"time"

	"speaking-assessment-service/internal/app"
	"speaking-assessment-service/internal/domain"
	"speaking-assessment-service/internal/infra/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	mu   sync.Mutex
	got  []domain.ResultSubmission
	err  error
	sent chan struct{}
}

func newRecordingSink(err error) *recordingSink {
	return &recordingSink{err: err, sent: make(chan struct{}, 64)}
}

func (s *recordingSink) Submit(_ context.Context, sub domain.ResultSubmission) error {
	s.mu.Lock()
	s.got = append(s.got, sub)
	s.mu.Unlock()
	s.sent <- struct{}{}
	return s.err
}

func (s *recordingSink) submissions() []domain.ResultSubmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ResultSubmission(nil), s.got...)
}

func mixedQuestions() []domain.Question {
	return []domain.Question{
		domain.MultipleChoice{
			QuestionBase: domain.QuestionBase{ID: "q1", Prompt: "Pick kitten", Explanation: "A kitten is a young cat."},
			Options:      []string{"puppy", "kitten"},
			CorrectIndex: 1,
		},
		domain.Dictation{QuestionBase: domain.QuestionBase{ID: "q2"}, Answer: "cat"},
		domain.Recording{QuestionBase: domain.QuestionBase{ID: "q3"}, Answer: "apple"},
		domain.SentenceRecording{
			QuestionBase: domain.QuestionBase{ID: "q4"},
			Sentence:     "The dog has a big red ball",
			Word:         "big",
			Options:      []string{"small", "large"},
			CorrectIndex: 1,
		},
	}
}

func choiceQuestions(n int) []domain.Question {
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = domain.MultipleChoice{
			QuestionBase: domain.QuestionBase{ID: "mc"},
			Options:      []string{"a", "b"},
			CorrectIndex: 0,
		}
	}
	return qs
}

type harness struct {
	clock    *fakeClock
	store    *memory.SessionStore
	sink     *recordingSink
	reporter *app.ResultsReporter
	service  *app.SessionService
}

func newHarness(questions []domain.Question) *harness {
	clock := newFakeClock()
	store := memory.NewSessionStore()
	sink := newRecordingSink(nil)
	reporter := app.NewResultsReporter(sink, store, time.Second, nil)
	loader := memory.NewStaticQuestionLoader(map[string]map[string][]domain.Question{
		"unit-1": {"beginner": questions},
	})
	service := app.NewSessionService(store, memory.NewQuestionRepository(loader, time.Minute), memory.NewTrackerRegistry(), reporter, app.Options{
		Budget: 2 * time.Hour,
		Tick:   time.Hour,
		Now:    clock.Now,
	})
	return &harness{clock: clock, store: store, sink: sink, reporter: reporter, service: service}
}

func (h *harness) tracker(questions []domain.Question, progress domain.GameProgress) *app.ProgressTracker {
	return app.NewProgressTracker(app.TrackerDeps{
		Policy:   app.DefaultScoringPolicy(),
		Reporter: h.reporter,
		Store:    h.store,
		Budget:   2 * time.Hour,
		Tick:     time.Hour,
		Now:      h.clock.Now,
	}, questions, progress)
}

func (h *harness) freshProgress(student string, total int) domain.GameProgress {
	now := h.clock.Now()
	return domain.GameProgress{
		SessionID:        "s1",
		Unit:             "unit-1",
		Level:            "beginner",
		StudentName:      student,
		TotalQuestions:   total,
		StartTime:        now,
		LastActivityTime: now,
	}
}
