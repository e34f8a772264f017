package app

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"speaking-assessment-service/internal/domain"
)

// RankingResolver computes a student's rank once the cohort gate is open.
type RankingResolver struct {
	store SessionStore
	now   func() time.Time
	log   *zap.Logger
}

func NewRankingResolver(store SessionStore, now func() time.Time, log *zap.Logger) *RankingResolver {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RankingResolver{store: store, now: now, log: log}
}

// Resolve returns the cached snapshot for the student or computes and caches
// it. It fails with domain.ErrRankingGateClosed before the session deadline.
func (r *RankingResolver) Resolve(ctx context.Context, sessionID, studentName string) (domain.RankingSnapshot, error) {
	open, err := r.store.RankingGateOpen(ctx, sessionID)
	if err != nil {
		return domain.RankingSnapshot{}, err
	}
	if !open {
		return domain.RankingSnapshot{}, domain.ErrRankingGateClosed
	}

	if cached, ok, err := r.store.LoadRank(ctx, sessionID, studentName); err == nil && ok {
		return cached, nil
	}

	results, err := r.store.LoadResults(ctx, sessionID)
	if err != nil {
		return domain.RankingSnapshot{}, err
	}
	SortResults(results)

	rank := 0
	for i, res := range results {
		if res.StudentName == studentName {
			rank = i + 1
			break
		}
	}
	if rank == 0 {
		return domain.RankingSnapshot{}, domain.ErrStudentNotRanked
	}

	snap := domain.RankingSnapshot{
		Rank:       rank,
		Total:      len(results),
		Results:    results,
		ComputedAt: r.now(),
	}
	if err := r.store.CacheRank(ctx, sessionID, studentName, snap); err != nil {
		r.log.Warn("cache rank",
			zap.String("session_id", sessionID),
			zap.String("student", studentName),
			zap.Error(err),
		)
	}
	return snap, nil
}

// SortResults orders by score descending; equal scores keep insertion order.
func SortResults(results []domain.StudentResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
