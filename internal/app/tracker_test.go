package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"speaking-assessment-service/internal/app"
	"speaking-assessment-service/internal/domain"
)

func TestTrackerSubmitAndAdvance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(mixedQuestions())
	tracker := h.tracker(mixedQuestions(), h.freshProgress("Alice", 4))

	_, err := tracker.Advance(ctx)
	require.ErrorIs(t, err, domain.ErrNotAnswered)

	out, err := tracker.SubmitAnswer(ctx, domain.ChoiceAnswer{Index: 1})
	require.NoError(t, err)
	assert.True(t, out.Verdict.Correct)
	assert.Equal(t, 5, out.Points)
	assert.Equal(t, "A kitten is a young cat.", out.Explanation)
	assert.Equal(t, 1, out.Progress.QuestionsAnswered)

	_, err = tracker.SubmitAnswer(ctx, domain.ChoiceAnswer{Index: 1})
	require.ErrorIs(t, err, domain.ErrAlreadyAnswered)

	step, err := tracker.Advance(ctx)
	require.NoError(t, err)
	assert.False(t, step.Done)
	assert.Equal(t, "q2", step.Question.Base().ID)

	h.clock.Advance(time.Minute)
	out, err = tracker.SubmitAnswer(ctx, domain.TextAnswer{Text: "dog"})
	require.NoError(t, err)
	assert.False(t, out.Verdict.Correct)
	assert.Equal(t, 0, out.Points)

	p := tracker.Progress()
	assert.Equal(t, 5, p.Score)
	assert.Equal(t, 2, p.QuestionsAnswered)
	assert.Equal(t, 1, p.CorrectAnswers)
	require.NoError(t, p.Validate())

	saved, err := h.store.LoadProgress(ctx, "s1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, p.Score, saved.Score)
	assert.Equal(t, 1, saved.CurrentQuestion)
}

func TestTrackerEmptyTranscriptLeavesProgress(t *testing.T) {
	ctx := context.Background()
	h := newHarness(mixedQuestions())
	questions := mixedQuestions()[2:]
	tracker := h.tracker(questions, h.freshProgress("Alice", len(questions)))

	_, err := tracker.SubmitAnswer(ctx, domain.SpokenAnswer{Transcript: "  "})
	require.ErrorIs(t, err, domain.ErrEmptyTranscript)
	assert.Equal(t, 0, tracker.Progress().QuestionsAnswered)

	out, err := tracker.SubmitAnswer(ctx, domain.SpokenAnswer{Transcript: "Apple."})
	require.NoError(t, err)
	assert.True(t, out.Verdict.Correct)
}

func TestTrackerFinalizeAddsBonus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(mixedQuestions())
	tracker := h.tracker(mixedQuestions(), h.freshProgress("Alice", 4))

	answers := []domain.Answer{
		domain.ChoiceAnswer{Index: 1},
		domain.TextAnswer{Text: "Cat"},
		domain.SpokenAnswer{Transcript: "apple"},
		domain.SentenceAnswer{Transcript: "dog", Index: 1},
	}
	var step struct {
		done   bool
		result *domain.StudentResult
	}
	for _, a := range answers {
		h.clock.Advance(time.Minute)
		_, err := tracker.SubmitAnswer(ctx, a)
		require.NoError(t, err)
		s, err := tracker.Advance(ctx)
		require.NoError(t, err)
		step.done, step.result = s.Done, s.Result
	}

	require.True(t, step.done)
	require.NotNil(t, step.result)
	// 4 correct slow answers plus the 30 minute tier
	assert.Equal(t, 4*3+15, step.result.Score)
	assert.True(t, step.result.Final)
	assert.Equal(t, 100.0, step.result.Completion)
	assert.True(t, tracker.Finished())

	again := tracker.Finalize(ctx)
	assert.Equal(t, *step.result, again)

	_, err := tracker.SubmitAnswer(ctx, domain.ChoiceAnswer{Index: 0})
	require.ErrorIs(t, err, domain.ErrSessionFinalized)

	h.reporter.Wait()
	results, err := h.store.LoadResults(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Final)
	assert.Equal(t, 27, results[0].Score)

	subs := h.sink.submissions()
	require.Len(t, subs, 5)
	finals := 0
	for _, sub := range subs {
		if sub.Result.Final {
			finals++
		}
	}
	assert.Equal(t, 1, finals)
}

func TestTrackerExpiryFinalizesAndOpensGate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(choiceQuestions(3))
	tracker := h.tracker(choiceQuestions(3), h.freshProgress("Alice", 3))
	tracker.Begin()

	_, err := tracker.SubmitAnswer(ctx, domain.ChoiceAnswer{Index: 0})
	require.NoError(t, err)

	h.clock.Advance(2 * time.Hour)
	tracker.Timer().Tick()

	result, ok := tracker.Result()
	require.True(t, ok)
	assert.True(t, result.Final)
	assert.Equal(t, 5, result.Score, "no tier bonus past 60 minutes")
	assert.InDelta(t, 33.33, result.Completion, 0.001)

	open, err := h.store.RankingGateOpen(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, open)
}

func TestTrackerRestoresFinishedProgress(t *testing.T) {
	h := newHarness(choiceQuestions(1))
	p := h.freshProgress("Alice", 1)
	p.QuestionsAnswered, p.CorrectAnswers, p.Score, p.Bonus = 1, 1, 5, 15
	p.Finished, p.FinishedAt = true, p.StartTime.Add(time.Minute)

	tracker := h.tracker(choiceQuestions(1), p)
	tracker.Begin()

	result, ok := tracker.Result()
	require.True(t, ok)
	assert.Equal(t, 20, result.Score)
	_, ok = tracker.Current()
	assert.False(t, ok)

	ticks, cancel := tracker.Timer().SubscribeTicks()
	defer cancel()
	select {
	case _, open := <-ticks:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("tick channel of a finished session stayed open")
	}
}

func TestTrackerLogsElapsedOnFinalize(t *testing.T) {
	ctx := context.Background()
	h := newHarness(choiceQuestions(1))
	core, logs := observer.New(zapcore.InfoLevel)
	tracker := app.NewProgressTracker(app.TrackerDeps{
		Policy: app.DefaultScoringPolicy(),
		Store:  h.store,
		Budget: 2 * time.Hour,
		Now:    h.clock.Now,
		Logger: zap.New(core),
	}, choiceQuestions(1), h.freshProgress("Alice", 1))

	h.clock.Advance(90 * time.Second)
	tracker.Finalize(ctx)

	entries := logs.FilterMessage("session finalized").All()
	require.Len(t, entries, 1)
	assert.Equal(t, 90*time.Second, entries[0].ContextMap()["elapsed"])
}
