package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"speaking-assessment-service/internal/domain"
)

// ResultSink is the remote results aggregator.
type ResultSink interface {
	Submit(ctx context.Context, submission domain.ResultSubmission) error
}

// ResultsReporter pushes result snapshots to the remote sink without waiting
// and always mirrors them into the local store. Remote submissions are sent
// one at a time in report order, so a late intermediate snapshot cannot land
// after the final one.
type ResultsReporter struct {
	sink    ResultSink
	store   SessionStore
	timeout time.Duration
	log     *zap.Logger

	mu       sync.Mutex
	queue    []domain.ResultSubmission
	draining bool
	inflight sync.WaitGroup
}

// NewResultsReporter builds a reporter. sink may be nil for local-only mode.
func NewResultsReporter(sink ResultSink, store SessionStore, timeout time.Duration, log *zap.Logger) *ResultsReporter {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ResultsReporter{sink: sink, store: store, timeout: timeout, log: log}
}

// Report never blocks on the network and never returns an error; failures
// degrade to the local mirror.
func (r *ResultsReporter) Report(ctx context.Context, sessionID string, result domain.StudentResult) {
	if r.sink != nil {
		r.enqueue(domain.ResultSubmission{SessionID: sessionID, Result: result})
	}

	if err := r.store.AppendOrReplaceResult(ctx, sessionID, result); err != nil {
		r.log.Warn("local result mirror failed",
			zap.String("session_id", sessionID),
			zap.String("student", result.StudentName),
			zap.Error(err),
		)
	}
}

func (r *ResultsReporter) enqueue(sub domain.ResultSubmission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, sub)
	if r.draining {
		return
	}
	r.draining = true
	r.inflight.Add(1)
	go r.drain()
}

func (r *ResultsReporter) drain() {
	defer r.inflight.Done()
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.draining = false
			r.mu.Unlock()
			return
		}
		sub := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		r.send(sub)
	}
}

func (r *ResultsReporter) send(sub domain.ResultSubmission) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.sink.Submit(ctx, sub); err != nil {
		r.log.Warn("remote result submission failed",
			zap.String("session_id", sub.SessionID),
			zap.String("student", sub.Result.StudentName),
			zap.Error(err),
		)
	}
}

// Wait blocks until queued remote submissions are sent.
func (r *ResultsReporter) Wait() {
	r.inflight.Wait()
}
