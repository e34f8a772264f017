package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"speaking-assessment-service/internal/domain"
)

// Outcome is returned to the UI after an answer is scored.
type Outcome struct {
	Verdict     domain.Verdict      `json:"verdict"`
	Points      int                 `json:"points"`
	Explanation string              `json:"explanation,omitempty"`
	Progress    domain.GameProgress `json:"progress"`
}

// Step is the result of advancing the question cursor.
type Step struct {
	Question domain.Question
	Done     bool
	Result   *domain.StudentResult
}

// TrackerDeps are the collaborators a ProgressTracker drives.
type TrackerDeps struct {
	Validator *Validator
	Policy    ScoringPolicy
	Reporter  *ResultsReporter
	Store     SessionStore
	Budget    time.Duration
	Tick      time.Duration
	Now       func() time.Time
	Logger    *zap.Logger
}

// ProgressTracker owns the GameProgress of one student and serializes every
// mutation of it, whether triggered by the student or by the timer.
type ProgressTracker struct {
	deps      TrackerDeps
	questions []domain.Question
	timer     *SessionTimer
	log       *zap.Logger

	mu       sync.Mutex
	progress domain.GameProgress
	final    *domain.StudentResult
}

// NewProgressTracker wraps progress (fresh or resumed). Call Begin to start the timer.
func NewProgressTracker(deps TrackerDeps, questions []domain.Question, progress domain.GameProgress) *ProgressTracker {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = NewValidator()
	}
	if deps.Budget <= 0 {
		deps.Budget = DefaultSessionBudget
	}

	t := &ProgressTracker{
		deps:      deps,
		questions: questions,
		progress:  progress,
		log: deps.Logger.With(
			zap.String("session_id", progress.SessionID),
			zap.String("student", progress.StudentName),
		),
	}
	t.timer = NewSessionTimer(progress.StartTime, deps.Budget, deps.Tick, deps.Now)
	if progress.Finished {
		result := domain.ResultFromProgress(progress, progress.FinishedAt)
		t.final = &result
		t.timer.Stop()
		return t
	}
	t.timer.Subscribe(t.expire)
	return t
}

// Begin starts the countdown unless the session is already finalized.
func (t *ProgressTracker) Begin() {
	if t.Finished() {
		return
	}
	t.timer.Start()
}

// Current returns the question under the cursor.
func (t *ProgressTracker) Current() (domain.Question, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentLocked()
}

func (t *ProgressTracker) currentLocked() (domain.Question, bool) {
	idx := t.progress.CurrentQuestion
	if t.progress.Finished || idx < 0 || idx >= len(t.questions) {
		return nil, false
	}
	return t.questions[idx], true
}

// Progress returns a copy of the current state.
func (t *ProgressTracker) Progress() domain.GameProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// Finished reports whether the session was finalized.
func (t *ProgressTracker) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress.Finished
}

// Result returns the final result once finalized.
func (t *ProgressTracker) Result() (domain.StudentResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.final == nil {
		return domain.StudentResult{}, false
	}
	return *t.final, true
}

// Timer exposes the countdown for remaining-time display.
func (t *ProgressTracker) Timer() *SessionTimer {
	return t.timer
}

// SubmitAnswer validates and scores answer for the current question.
func (t *ProgressTracker) SubmitAnswer(ctx context.Context, answer domain.Answer) (Outcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.progress.Finished {
		return Outcome{}, domain.ErrSessionFinalized
	}
	if t.progress.QuestionsAnswered > t.progress.CurrentQuestion {
		return Outcome{}, domain.ErrAlreadyAnswered
	}
	q, ok := t.currentLocked()
	if !ok {
		return Outcome{}, domain.ErrSessionFinalized
	}

	verdict, err := t.deps.Validator.Validate(q, answer)
	if err != nil {
		return Outcome{}, err
	}

	now := t.deps.Now()
	points := t.deps.Policy.PointsForAnswer(verdict.Correct, now.Sub(t.progress.LastActivityTime))

	t.progress.QuestionsAnswered++
	if verdict.Correct {
		t.progress.CorrectAnswers++
	}
	t.progress.Score += points
	t.progress.LastActivityTime = now

	t.log.Debug("answer scored",
		zap.String("question_id", q.Base().ID),
		zap.Bool("correct", verdict.Correct),
		zap.Int("points", points),
		zap.Int("score", t.progress.Score),
	)

	t.reportLocked(ctx, now)
	t.persistLocked(ctx)

	return Outcome{
		Verdict:     verdict,
		Points:      points,
		Explanation: q.Base().Explanation,
		Progress:    t.progress,
	}, nil
}

// Advance moves past an answered question. Moving past the last question
// finalizes the session.
func (t *ProgressTracker) Advance(ctx context.Context) (Step, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.progress.Finished {
		return Step{}, domain.ErrSessionFinalized
	}
	if t.progress.QuestionsAnswered <= t.progress.CurrentQuestion {
		return Step{}, domain.ErrNotAnswered
	}

	t.progress.CurrentQuestion++
	if next, ok := t.currentLocked(); ok {
		t.persistLocked(ctx)
		return Step{Question: next}, nil
	}

	result := t.finalizeLocked(ctx)
	return Step{Done: true, Result: &result}, nil
}

// Finalize freezes the progress and emits the final result. Repeated calls
// return the same result.
func (t *ProgressTracker) Finalize(ctx context.Context) domain.StudentResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.final != nil {
		return *t.final
	}
	return t.finalizeLocked(ctx)
}

func (t *ProgressTracker) finalizeLocked(ctx context.Context) domain.StudentResult {
	now := t.deps.Now()
	t.progress.Bonus = t.deps.Policy.EndOfSessionBonus(now.Sub(t.progress.StartTime))
	t.progress.Finished = true
	t.progress.FinishedAt = now

	result := domain.ResultFromProgress(t.progress, now)
	t.final = &result
	t.timer.Stop()

	t.log.Info("session finalized",
		zap.Int("score", result.Score),
		zap.Int("bonus", t.progress.Bonus),
		zap.Int("answered", result.QuestionsAnswered),
		zap.Int("correct", result.CorrectAnswers),
		zap.Duration("elapsed", result.Elapsed()),
	)

	t.reportLocked(ctx, now)
	t.persistLocked(ctx)
	return result
}

// Exit persists the current progress and tears the timer down.
func (t *ProgressTracker) Exit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timer.Stop()
	return t.deps.Store.SaveProgress(ctx, t.progress.SessionID, t.progress)
}

// expire runs on the timer goroutine when the budget is used up.
func (t *ProgressTracker) expire() {
	ctx := context.Background()
	if err := t.deps.Store.OpenRankingGate(ctx, t.progress.SessionID); err != nil {
		t.log.Warn("open ranking gate", zap.Error(err))
	}
	t.log.Info("session time expired")
	t.Finalize(ctx)
}

func (t *ProgressTracker) reportLocked(ctx context.Context, now time.Time) {
	if t.deps.Reporter == nil {
		return
	}
	t.deps.Reporter.Report(ctx, t.progress.SessionID, domain.ResultFromProgress(t.progress, now))
}

func (t *ProgressTracker) persistLocked(ctx context.Context) {
	if err := t.deps.Store.SaveProgress(ctx, t.progress.SessionID, t.progress); err != nil {
		t.log.Warn("save progress", zap.Error(err))
	}
}
