package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"speaking-assessment-service/internal/domain"
)

// QuestionLoader fetches a question set from a backing store (file, Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, unit, level string) (domain.QuestionSet, error)
}

// QuestionRepository caches question sets with TTL to avoid repeated loads.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	set       domain.QuestionSet
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

// Questions implements app.QuestionBank.
func (r *QuestionRepository) Questions(ctx context.Context, unit, level string) (domain.QuestionSet, error) {
	key := SetKey(unit, level)
	if set, ok := r.cached(key); ok {
		return set, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		if set, ok := r.cached(key); ok {
			return set, nil
		}

		set, err := r.loader.LoadQuestions(ctx, unit, level)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		r.mu.Lock()
		r.cache[key] = cachedSet{set: set, expiresAt: r.clock().Add(r.ttlWithJitter())}
		r.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

func (r *QuestionRepository) cached(key string) (domain.QuestionSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.QuestionSet{}, false
	}
	return entry.set, true
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// SetKey joins unit and level into a cache key.
func SetKey(unit, level string) string {
	return unit + "/" + level
}

// StaticQuestionLoader serves question sets from a unit -> level map (tests, demos).
type StaticQuestionLoader struct {
	bank map[string]map[string][]domain.Question
}

func NewStaticQuestionLoader(bank map[string]map[string][]domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{bank: bank}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, unit, level string) (domain.QuestionSet, error) {
	questions, ok := l.bank[unit][level]
	if !ok || len(questions) == 0 {
		return domain.QuestionSet{}, domain.ErrQuestionSetNotFound
	}
	return domain.QuestionSet{Unit: unit, Level: level, Questions: questions}, nil
}
