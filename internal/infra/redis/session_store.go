package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"speaking-assessment-service/internal/domain"
)

const maxTxRetries = 5

// SessionStore keeps assessment state in Redis so every server instance shares
// the same results list and ranking gate.
//
// Layout per session:
//
//	assessment:{id}:progress:{student}  JSON GameProgress
//	assessment:{id}:results             HASH student -> JSON StudentResult
//	assessment:{id}:results:order       LIST of students in first-submission order
//	assessment:{id}:rank:{student}      JSON RankingSnapshot (write-once)
//	assessment:{id}:gate                "1" once the deadline elapsed
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) SaveProgress(ctx context.Context, sessionID string, progress domain.GameProgress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	return s.client.Set(ctx, s.progressKey(sessionID, progress.StudentName), data, s.ttl).Err()
}

func (s *SessionStore) LoadProgress(ctx context.Context, sessionID, studentName string) (domain.GameProgress, error) {
	data, err := s.client.Get(ctx, s.progressKey(sessionID, studentName)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.GameProgress{}, domain.ErrProgressNotFound
	}
	if err != nil {
		return domain.GameProgress{}, fmt.Errorf("load progress: %w", err)
	}
	var progress domain.GameProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		return domain.GameProgress{}, fmt.Errorf("unmarshal progress: %w", err)
	}
	return progress, nil
}

func (s *SessionStore) AppendOrReplaceResult(ctx context.Context, sessionID string, result domain.StudentResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	resultsKey, orderKey := s.resultsKey(sessionID), s.orderKey(sessionID)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, resultsKey, result.StudentName).Bytes()
		created := errors.Is(err, redis.Nil)
		if err != nil && !created {
			return err
		}
		if !created {
			var prev domain.StudentResult
			if err := json.Unmarshal(raw, &prev); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
			if !result.Supersedes(prev) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, resultsKey, result.StudentName, data)
			if created {
				pipe.RPush(ctx, orderKey, result.StudentName)
			}
			if s.ttl > 0 {
				pipe.Expire(ctx, resultsKey, s.ttl)
				pipe.Expire(ctx, orderKey, s.ttl)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = s.client.Watch(ctx, txf, resultsKey)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

func (s *SessionStore) LoadResults(ctx context.Context, sessionID string) ([]domain.StudentResult, error) {
	order, err := s.client.LRange(ctx, s.orderKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load result order: %w", err)
	}
	raw, err := s.client.HGetAll(ctx, s.resultsKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}

	results := make([]domain.StudentResult, 0, len(order))
	for _, student := range order {
		data, ok := raw[student]
		if !ok {
			continue
		}
		var result domain.StudentResult
		if err := json.Unmarshal([]byte(data), &result); err != nil {
			return nil, fmt.Errorf("unmarshal result for %s: %w", student, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *SessionStore) CacheRank(ctx context.Context, sessionID, studentName string, snapshot domain.RankingSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal rank: %w", err)
	}
	return s.client.SetNX(ctx, s.rankKey(sessionID, studentName), data, s.ttl).Err()
}

func (s *SessionStore) LoadRank(ctx context.Context, sessionID, studentName string) (domain.RankingSnapshot, bool, error) {
	data, err := s.client.Get(ctx, s.rankKey(sessionID, studentName)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.RankingSnapshot{}, false, nil
	}
	if err != nil {
		return domain.RankingSnapshot{}, false, fmt.Errorf("load rank: %w", err)
	}
	var snap domain.RankingSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.RankingSnapshot{}, false, fmt.Errorf("unmarshal rank: %w", err)
	}
	return snap, true, nil
}

func (s *SessionStore) OpenRankingGate(ctx context.Context, sessionID string) error {
	return s.client.Set(ctx, s.gateKey(sessionID), "1", s.ttl).Err()
}

func (s *SessionStore) RankingGateOpen(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.gateKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("check ranking gate: %w", err)
	}
	return n > 0, nil
}

func (s *SessionStore) progressKey(sessionID, student string) string {
	return "assessment:" + sessionID + ":progress:" + student
}

func (s *SessionStore) resultsKey(sessionID string) string {
	return "assessment:" + sessionID + ":results"
}

func (s *SessionStore) orderKey(sessionID string) string {
	return "assessment:" + sessionID + ":results:order"
}

func (s *SessionStore) rankKey(sessionID, student string) string {
	return "assessment:" + sessionID + ":rank:" + student
}

func (s *SessionStore) gateKey(sessionID string) string {
	return "assessment:" + sessionID + ":gate"
}
