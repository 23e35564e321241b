package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"subquestion-challenge-service/internal/app"
	"subquestion-challenge-service/internal/domain"
)

// QuestionCache keeps question sets in process with a TTL to avoid repeated store hits.
type QuestionCache struct {
	loader app.QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu      sync.RWMutex
	rnd     *rand.Rand
	entries map[int64]cachedQuestions
	// gen is bumped per challenge on Invalidate so an in-flight load cannot store a stale set.
	gen map[int64]uint64
}

type cachedQuestions struct {
	questions []domain.SubQuestion
	expiresAt time.Time
}

var _ app.QuestionCache = (*QuestionCache)(nil)

func NewQuestionCache(loader app.QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader:  loader,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		entries: make(map[int64]cachedQuestions),
		gen:     make(map[int64]uint64),
	}
}

func (c *QuestionCache) Questions(ctx context.Context, challengeID int64) ([]domain.SubQuestion, error) {
	if qs, ok := c.lookup(challengeID); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(sfKey(challengeID), func() (interface{}, error) {
		if qs, ok := c.lookup(challengeID); ok {
			return qs, nil
		}
		c.mu.RLock()
		gen := c.gen[challengeID]
		c.mu.RUnlock()

		qs, err := c.loader.LoadQuestions(ctx, challengeID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gen[challengeID] == gen && c.ttl > 0 {
			c.entries[challengeID] = cachedQuestions{
				questions: qs,
				expiresAt: c.clock().Add(c.ttlWithJitter()),
			}
		}
		c.mu.Unlock()
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneQuestions(result.([]domain.SubQuestion)), nil
}

// Invalidate drops the cached set; the next read goes to the loader.
func (c *QuestionCache) Invalidate(_ context.Context, challengeID int64) {
	c.mu.Lock()
	delete(c.entries, challengeID)
	c.gen[challengeID]++
	c.mu.Unlock()
}

func (c *QuestionCache) lookup(challengeID int64) ([]domain.SubQuestion, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[challengeID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return cloneQuestions(entry.questions), true
}

// ttlWithJitter adds up to 10% to spread expirations. Callers hold mu.
func (c *QuestionCache) ttlWithJitter() time.Duration {
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func cloneQuestions(qs []domain.SubQuestion) []domain.SubQuestion {
	out := make([]domain.SubQuestion, len(qs))
	copy(out, qs)
	return out
}

func sfKey(id int64) string {
	return "questions:" + strconv.FormatInt(id, 10)
}
