package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"speaking-assessment-service/internal/domain"
)

// SessionStore persists progress, result lists and rank snapshots. All writes
// are best-effort and last writer for a key wins, except that a final result
// is never replaced by an intermediate one.
type SessionStore interface {
	SaveProgress(ctx context.Context, sessionID string, progress domain.GameProgress) error
	LoadProgress(ctx context.Context, sessionID, studentName string) (domain.GameProgress, error)
	AppendOrReplaceResult(ctx context.Context, sessionID string, result domain.StudentResult) error
	LoadResults(ctx context.Context, sessionID string) ([]domain.StudentResult, error)
	CacheRank(ctx context.Context, sessionID, studentName string, snapshot domain.RankingSnapshot) error
	LoadRank(ctx context.Context, sessionID, studentName string) (domain.RankingSnapshot, bool, error)
	OpenRankingGate(ctx context.Context, sessionID string) error
	RankingGateOpen(ctx context.Context, sessionID string) (bool, error)
}

// QuestionBank loads the read-only question list for a unit and level.
type QuestionBank interface {
	Questions(ctx context.Context, unit, level string) (domain.QuestionSet, error)
}

// TrackerRegistry holds the trackers of currently connected students.
type TrackerRegistry interface {
	Get(sessionID, studentName string) (*ProgressTracker, bool)
	GetOrCreate(sessionID, studentName string, create func() (*ProgressTracker, error)) (*ProgressTracker, error)
	Delete(sessionID, studentName string)
	All() []*ProgressTracker
}

// Options tune the session engine.
type Options struct {
	Budget time.Duration
	Tick   time.Duration
	Policy ScoringPolicy
	Now    func() time.Time
	Logger *zap.Logger
}

// SessionService contains the assessment use cases.
type SessionService struct {
	store    SessionStore
	bank     QuestionBank
	trackers TrackerRegistry
	reporter *ResultsReporter
	resolver *RankingResolver
	deps     TrackerDeps
	log      *zap.Logger
}

func NewSessionService(store SessionStore, bank QuestionBank, trackers TrackerRegistry, reporter *ResultsReporter, opts Options) *SessionService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Budget <= 0 {
		opts.Budget = DefaultSessionBudget
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.Policy.BasePoints == 0 {
		opts.Policy = DefaultScoringPolicy()
	}
	if reporter == nil {
		reporter = NewResultsReporter(nil, store, 0, opts.Logger)
	}
	return &SessionService{
		store:    store,
		bank:     bank,
		trackers: trackers,
		reporter: reporter,
		resolver: NewRankingResolver(store, opts.Now, opts.Logger),
		deps: TrackerDeps{
			Validator: NewValidator(),
			Policy:    opts.Policy,
			Reporter:  reporter,
			Store:     store,
			Budget:    opts.Budget,
			Tick:      opts.Tick,
			Now:       opts.Now,
			Logger:    opts.Logger,
		},
		log: opts.Logger,
	}
}

// Start returns the student's tracker, resuming persisted progress for the
// same unit and level and starting fresh otherwise.
func (s *SessionService) Start(ctx context.Context, sel domain.Selection, studentName string) (*ProgressTracker, error) {
	tracker, err := s.trackers.GetOrCreate(sel.SessionID, studentName, func() (*ProgressTracker, error) {
		set, err := s.bank.Questions(ctx, sel.Unit, sel.Level)
		if err != nil {
			return nil, err
		}
		if len(set.Questions) == 0 {
			return nil, domain.ErrQuestionSetNotFound
		}

		progress, err := s.store.LoadProgress(ctx, sel.SessionID, studentName)
		switch {
		case err == nil && progress.Unit == sel.Unit && progress.Level == sel.Level &&
			progress.TotalQuestions == len(set.Questions) && progress.Validate() == nil:
			s.log.Info("resuming session",
				zap.String("session_id", sel.SessionID),
				zap.String("student", studentName),
				zap.Int("current_question", progress.CurrentQuestion),
			)
		case err != nil && !errors.Is(err, domain.ErrProgressNotFound):
			s.log.Warn("load progress, starting fresh", zap.String("session_id", sel.SessionID), zap.Error(err))
			fallthrough
		default:
			now := s.deps.Now()
			progress = domain.GameProgress{
				SessionID:        sel.SessionID,
				Unit:             sel.Unit,
				Level:            sel.Level,
				StudentName:      studentName,
				TotalQuestions:   len(set.Questions),
				StartTime:        now,
				LastActivityTime: now,
			}
			if err := s.store.SaveProgress(ctx, sel.SessionID, progress); err != nil {
				s.log.Warn("save progress", zap.String("session_id", sel.SessionID), zap.Error(err))
			}
		}
		return NewProgressTracker(s.deps, set.Questions, progress), nil
	})
	if err != nil {
		return nil, err
	}
	tracker.Begin()
	return tracker, nil
}

// Tracker returns the active tracker for a student.
func (s *SessionService) Tracker(sessionID, studentName string) (*ProgressTracker, error) {
	tracker, ok := s.trackers.Get(sessionID, studentName)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return tracker, nil
}

// Submit scores an answer for the student's current question.
func (s *SessionService) Submit(ctx context.Context, sessionID, studentName string, answer domain.Answer) (Outcome, error) {
	tracker, err := s.Tracker(sessionID, studentName)
	if err != nil {
		return Outcome{}, err
	}
	return tracker.SubmitAnswer(ctx, answer)
}

// Advance moves the student to the next question or finalizes the session.
func (s *SessionService) Advance(ctx context.Context, sessionID, studentName string) (Step, error) {
	tracker, err := s.Tracker(sessionID, studentName)
	if err != nil {
		return Step{}, err
	}
	return tracker.Advance(ctx)
}

// Exit persists progress and releases the student's tracker.
func (s *SessionService) Exit(ctx context.Context, sessionID, studentName string) error {
	tracker, ok := s.trackers.Get(sessionID, studentName)
	if !ok {
		return nil
	}
	defer s.trackers.Delete(sessionID, studentName)
	return tracker.Exit(ctx)
}

// Ranking resolves the student's rank. The deadline is evaluated from the
// student's own start timestamp, so a student who finished early and left
// still opens the gate once the cohort budget has elapsed. Students who left
// mid-session are finalized before the ranking is computed.
func (s *SessionService) Ranking(ctx context.Context, sessionID, studentName string) (domain.RankingSnapshot, error) {
	var start time.Time
	if tracker, ok := s.trackers.Get(sessionID, studentName); ok {
		start = tracker.Progress().StartTime
	} else if progress, err := s.store.LoadProgress(ctx, sessionID, studentName); err == nil {
		start = progress.StartTime
	}
	if !start.IsZero() {
		deadline := NewSessionTimer(start, s.deps.Budget, s.deps.Tick, s.deps.Now)
		if deadline.Tick() == TimerExpired {
			if err := s.store.OpenRankingGate(ctx, sessionID); err != nil {
				s.log.Warn("open ranking gate", zap.String("session_id", sessionID), zap.Error(err))
			}
		}
	}
	if open, err := s.store.RankingGateOpen(ctx, sessionID); err == nil && open {
		s.finalizeDeparted(ctx, sessionID)
	}
	return s.resolver.Resolve(ctx, sessionID, studentName)
}

// finalizeDeparted finalizes students whose budget ran out while no tracker
// was running for them. The result is stamped at their own deadline.
func (s *SessionService) finalizeDeparted(ctx context.Context, sessionID string) {
	results, err := s.store.LoadResults(ctx, sessionID)
	if err != nil {
		s.log.Warn("load results", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	for _, res := range results {
		if res.Final {
			continue
		}
		if _, active := s.trackers.Get(sessionID, res.StudentName); active {
			continue
		}
		progress, err := s.store.LoadProgress(ctx, sessionID, res.StudentName)
		if err != nil || progress.Finished {
			continue
		}
		if NewSessionTimer(progress.StartTime, s.deps.Budget, s.deps.Tick, s.deps.Now).Remaining() > 0 {
			continue
		}

		deps := s.deps
		deadline := progress.StartTime.Add(deps.Budget)
		deps.Now = func() time.Time { return deadline }
		NewProgressTracker(deps, nil, progress).Finalize(ctx)
	}
}

// Results lists the session's reported results in insertion order.
func (s *SessionService) Results(ctx context.Context, sessionID string) ([]domain.StudentResult, error) {
	return s.store.LoadResults(ctx, sessionID)
}

// RecordResult is the aggregator side of result submission.
func (s *SessionService) RecordResult(ctx context.Context, submission domain.ResultSubmission) error {
	if submission.SessionID == "" || submission.Result.StudentName == "" {
		return domain.ErrInvalidSubmission
	}
	return s.store.AppendOrReplaceResult(ctx, submission.SessionID, submission.Result)
}

// Shutdown persists every active tracker and drains pending reports.
func (s *SessionService) Shutdown(ctx context.Context) {
	for _, tracker := range s.trackers.All() {
		p := tracker.Progress()
		if err := tracker.Exit(ctx); err != nil {
			s.log.Warn("persist on shutdown", zap.String("session_id", p.SessionID), zap.Error(err))
		}
		s.trackers.Delete(p.SessionID, p.StudentName)
	}
	s.reporter.Wait()
}
