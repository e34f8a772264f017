package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"speaking-assessment-service/internal/app"
	"speaking-assessment-service/internal/domain"
	"speaking-assessment-service/internal/infra/memory"
)

func TestReporterDegradesToLocalMirror(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	sink := newRecordingSink(errors.New("aggregator down"))
	core, logs := observer.New(zapcore.WarnLevel)

	reporter := app.NewResultsReporter(sink, store, time.Second, zap.New(core))
	reporter.Report(ctx, "s1", domain.StudentResult{StudentName: "A", Score: 3})
	reporter.Report(ctx, "s1", domain.StudentResult{StudentName: "B", Score: 5})
	reporter.Report(ctx, "s1", domain.StudentResult{StudentName: "A", Score: 8, Final: true})
	reporter.Wait()

	results, err := store.LoadResults(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].StudentName)
	assert.Equal(t, 8, results[0].Score)
	assert.True(t, results[0].Final)

	assert.Len(t, sink.submissions(), 3)
	assert.Equal(t, 3, logs.FilterMessage("remote result submission failed").Len())
}

func TestReporterLocalOnly(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()

	reporter := app.NewResultsReporter(nil, store, 0, nil)
	reporter.Report(ctx, "s1", domain.StudentResult{StudentName: "A", Score: 3})
	reporter.Wait()

	results, err := store.LoadResults(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

// latestSink keeps the last submission per student and stalls intermediate
// snapshots, like a slow aggregator that overwrites blindly.
type latestSink struct {
	mu     sync.Mutex
	latest map[string]domain.StudentResult
	stall  time.Duration
}

func (s *latestSink) Submit(_ context.Context, sub domain.ResultSubmission) error {
	if !sub.Result.Final {
		time.Sleep(s.stall)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[sub.Result.StudentName] = sub.Result
	return nil
}

func TestReporterKeepsSubmissionOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	sink := &latestSink{latest: map[string]domain.StudentResult{}, stall: 50 * time.Millisecond}

	reporter := app.NewResultsReporter(sink, store, time.Second, nil)
	reporter.Report(ctx, "s1", domain.StudentResult{StudentName: "A", Score: 5})
	reporter.Report(ctx, "s1", domain.StudentResult{StudentName: "A", Score: 20, Final: true})
	reporter.Wait()

	got := sink.latest["A"]
	assert.True(t, got.Final)
	assert.Equal(t, 20, got.Score)
}

func TestReporterFinalSurvivesTrackerFinalize(t *testing.T) {
	h := newHarness(choiceQuestions(1))
	sink := &latestSink{latest: map[string]domain.StudentResult{}, stall: 50 * time.Millisecond}
	h.reporter = app.NewResultsReporter(sink, h.store, time.Second, nil)
	ctx := context.Background()

	tracker := h.tracker(choiceQuestions(1), h.freshProgress("A", 1))
	h.clock.Advance(time.Second)
	_, err := tracker.SubmitAnswer(ctx, domain.ChoiceAnswer{Index: 0})
	require.NoError(t, err)
	step, err := tracker.Advance(ctx)
	require.NoError(t, err)
	require.True(t, step.Done)
	h.reporter.Wait()

	got := sink.latest["A"]
	require.True(t, got.Final)
	assert.Equal(t, 20, got.Score)

	results, err := h.store.LoadResults(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Final)
}
