package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"speaking-assessment-service/internal/domain"
)

// QuestionLoader loads question-set JSONB from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, unit, level string) (domain.QuestionSet, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM question_sets WHERE unit=$1 AND level=$2`, unit, level).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuestionSet{}, domain.ErrQuestionSetNotFound
	}
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("load question set: %w", err)
	}
	var set domain.QuestionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return domain.QuestionSet{}, fmt.Errorf("unmarshal question set: %w", err)
	}
	set.Unit, set.Level = unit, level
	return set, nil
}

// SaveQuestions upserts a whole question set.
func (l *QuestionLoader) SaveQuestions(ctx context.Context, set domain.QuestionSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal question set: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO question_sets (unit, level, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (unit, level) DO UPDATE SET data = EXCLUDED.data`,
		set.Unit, set.Level, string(data))
	if err != nil {
		return fmt.Errorf("save question set %s/%s: %w", set.Unit, set.Level, err)
	}
	return nil
}
