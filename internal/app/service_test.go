package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speaking-assessment-service/internal/domain"
)

var selection = domain.Selection{SessionID: "s1", Unit: "unit-1", Level: "beginner"}

func TestServiceResumesAfterExit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(choiceQuestions(3))

	tracker, err := h.service.Start(ctx, selection, "Alice")
	require.NoError(t, err)
	start := tracker.Progress().StartTime

	_, err = h.service.Submit(ctx, "s1", "Alice", domain.ChoiceAnswer{Index: 0})
	require.NoError(t, err)
	_, err = h.service.Advance(ctx, "s1", "Alice")
	require.NoError(t, err)
	require.NoError(t, h.service.Exit(ctx, "s1", "Alice"))

	_, err = h.service.Submit(ctx, "s1", "Alice", domain.ChoiceAnswer{Index: 0})
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	h.clock.Advance(20 * time.Minute)
	resumed, err := h.service.Start(ctx, selection, "Alice")
	require.NoError(t, err)
	p := resumed.Progress()
	assert.Equal(t, 1, p.CurrentQuestion)
	assert.Equal(t, 5, p.Score)
	assert.Equal(t, start, p.StartTime)
	assert.Equal(t, 100*time.Minute, resumed.Timer().Remaining())
	h.service.Shutdown(ctx)
}

func TestServiceStartsFreshForOtherLevel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(choiceQuestions(2))

	stale := h.freshProgress("Alice", 2)
	stale.Level, stale.Score = "advanced", 30
	require.NoError(t, h.store.SaveProgress(ctx, "s1", stale))

	tracker, err := h.service.Start(ctx, selection, "Alice")
	require.NoError(t, err)
	assert.Equal(t, 0, tracker.Progress().Score)
	assert.Equal(t, "beginner", tracker.Progress().Level)
	h.service.Shutdown(ctx)
}

func TestServiceUnknownQuestionSet(t *testing.T) {
	h := newHarness(choiceQuestions(2))
	_, err := h.service.Start(context.Background(), domain.Selection{SessionID: "s1", Unit: "nope", Level: "x"}, "Alice")
	require.ErrorIs(t, err, domain.ErrQuestionSetNotFound)
}

func TestServiceRankingOpensAtDeadline(t *testing.T) {
	ctx := context.Background()
	h := newHarness(choiceQuestions(1))

	for _, name := range []string{"Alice", "Bob"} {
		_, err := h.service.Start(ctx, selection, name)
		require.NoError(t, err)
		_, err = h.service.Submit(ctx, "s1", name, domain.ChoiceAnswer{Index: 0})
		require.NoError(t, err)
		step, err := h.service.Advance(ctx, "s1", name)
		require.NoError(t, err)
		require.True(t, step.Done)
		require.NoError(t, h.service.Exit(ctx, "s1", name))
	}

	_, err := h.service.Ranking(ctx, "s1", "Bob")
	require.ErrorIs(t, err, domain.ErrRankingGateClosed)

	h.clock.Advance(2 * time.Hour)
	snap, err := h.service.Ranking(ctx, "s1", "Bob")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Rank, "tie keeps Alice first")
	assert.Equal(t, 2, snap.Total)
}

func TestServiceRankingFinalizesDepartedStudents(t *testing.T) {
	ctx := context.Background()
	h := newHarness(choiceQuestions(2))

	_, err := h.service.Start(ctx, selection, "Alice")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = h.service.Submit(ctx, "s1", "Alice", domain.ChoiceAnswer{Index: 0})
		require.NoError(t, err)
		_, err = h.service.Advance(ctx, "s1", "Alice")
		require.NoError(t, err)
	}
	require.NoError(t, h.service.Exit(ctx, "s1", "Alice"))

	_, err = h.service.Start(ctx, selection, "Carol")
	require.NoError(t, err)
	_, err = h.service.Submit(ctx, "s1", "Carol", domain.ChoiceAnswer{Index: 0})
	require.NoError(t, err)
	require.NoError(t, h.service.Exit(ctx, "s1", "Carol"))

	h.clock.Advance(2 * time.Hour)
	snap, err := h.service.Ranking(ctx, "s1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Rank)
	require.Len(t, snap.Results, 2)

	carol := snap.Results[1]
	assert.Equal(t, "Carol", carol.StudentName)
	assert.True(t, carol.Final)
	assert.Equal(t, 5, carol.Score)
	assert.Equal(t, 2*time.Hour, carol.Elapsed())

	saved, err := h.store.LoadProgress(ctx, "s1", "Carol")
	require.NoError(t, err)
	assert.True(t, saved.Finished)
}

func TestServiceRecordResult(t *testing.T) {
	ctx := context.Background()
	h := newHarness(choiceQuestions(1))

	err := h.service.RecordResult(ctx, domain.ResultSubmission{SessionID: "s1"})
	require.ErrorIs(t, err, domain.ErrInvalidSubmission)

	require.NoError(t, h.service.RecordResult(ctx, domain.ResultSubmission{
		SessionID: "s1",
		Result:    domain.StudentResult{StudentName: "Remote", Score: 12},
	}))
	results, err := h.service.Results(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Remote", results[0].StudentName)
}
