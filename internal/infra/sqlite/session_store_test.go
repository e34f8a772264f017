package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"speaking-assessment-service/internal/domain"
)

func TestSessionStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "assessment.db")

	store, err := NewSessionStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.LoadProgress(ctx, "s1", "Alice"); !errors.Is(err, domain.ErrProgressNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.SaveProgress(ctx, "s1", domain.GameProgress{StudentName: "Alice", CurrentQuestion: 4}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.OpenRankingGate(ctx, "s1"); err != nil {
		t.Fatalf("open gate: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store, err = NewSessionStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	got, err := store.LoadProgress(ctx, "s1", "Alice")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.CurrentQuestion != 4 {
		t.Fatalf("expected resumed cursor 4, got %d", got.CurrentQuestion)
	}
	if open, _ := store.RankingGateOpen(ctx, "s1"); !open {
		t.Fatalf("expected gate to stay open")
	}
}

func TestSessionStoreResultsAndRanks(t *testing.T) {
	ctx := context.Background()
	store, err := NewSessionStore(filepath.Join(t.TempDir(), "assessment.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	for _, r := range []domain.StudentResult{
		{StudentName: "A", Score: 1},
		{StudentName: "B", Score: 2},
		{StudentName: "A", Score: 6},
	} {
		if err := store.AppendOrReplaceResult(ctx, "s1", r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	_ = store.AppendOrReplaceResult(ctx, "s2", domain.StudentResult{StudentName: "X"})

	results, err := store.LoadResults(ctx, "s1")
	if err != nil {
		t.Fatalf("load results: %v", err)
	}
	if len(results) != 2 || results[0].StudentName != "A" || results[0].Score != 6 {
		t.Fatalf("unexpected results %+v", results)
	}

	_ = store.CacheRank(ctx, "s1", "B", domain.RankingSnapshot{Rank: 2})
	_ = store.CacheRank(ctx, "s1", "B", domain.RankingSnapshot{Rank: 1})
	snap, ok, err := store.LoadRank(ctx, "s1", "B")
	if err != nil || !ok || snap.Rank != 2 {
		t.Fatalf("expected first rank kept, got %+v ok=%v err=%v", snap, ok, err)
	}
}

func TestSessionStoreKeepsFinalResult(t *testing.T) {
	ctx := context.Background()
	store, err := NewSessionStore(filepath.Join(t.TempDir(), "assessment.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	for _, r := range []domain.StudentResult{
		{StudentName: "A", Score: 5},
		{StudentName: "A", Score: 20, Final: true},
		{StudentName: "A", Score: 8},
	} {
		if err := store.AppendOrReplaceResult(ctx, "s1", r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	results, err := store.LoadResults(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(results) != 1 || !results[0].Final || results[0].Score != 20 {
		t.Fatalf("expected final result kept, got %+v", results)
	}
}
