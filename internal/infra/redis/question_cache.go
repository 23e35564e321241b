package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"subquestion-challenge-service/internal/app"
	"subquestion-challenge-service/internal/domain"
)

// QuestionCache caches question sets in Redis and falls back to a loader on miss.
// Each set is stored as JSON under subquestion:challenge:{id}:questions. A generation
// counter next to it is bumped by Invalidate; a load only writes back when the
// generation it started from is still current.
type QuestionCache struct {
	client *redis.Client
	loader app.QuestionLoader
	ttl    time.Duration
	log    *zap.Logger
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

var _ app.QuestionCache = (*QuestionCache)(nil)

func NewQuestionCache(client *redis.Client, loader app.QuestionLoader, ttl time.Duration, log *zap.Logger) *QuestionCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    log,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Questions(ctx context.Context, challengeID int64) ([]domain.SubQuestion, error) {
	key := questionsKey(challengeID)
	if qs, ok := c.get(ctx, key); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if qs, ok := c.get(ctx, key); ok {
			return qs, nil
		}
		gen, err := c.generation(ctx, challengeID)
		if err != nil {
			c.log.Warn("read question set generation", zap.Int64("challenge_id", challengeID), zap.Error(err))
		}
		qs, err := c.loader.LoadQuestions(ctx, challengeID)
		if err != nil {
			return nil, err
		}
		if c.ttl > 0 && gen >= 0 {
			if err := c.store(ctx, challengeID, gen, qs); err != nil {
				c.log.Warn("cache question set", zap.Int64("challenge_id", challengeID), zap.Error(err))
			}
		}
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	qs := result.([]domain.SubQuestion)
	out := make([]domain.SubQuestion, len(qs))
	copy(out, qs)
	return out, nil
}

// Invalidate bumps the generation and deletes the cached set. Failures are logged; the entry
// then lives until its TTL.
func (c *QuestionCache) Invalidate(ctx context.Context, challengeID int64) {
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, generationKey(challengeID))
		p.Del(ctx, questionsKey(challengeID))
		return nil
	})
	if err != nil {
		c.log.Warn("invalidate question set", zap.Int64("challenge_id", challengeID), zap.Error(err))
	}
}

// generation returns the current generation of a challenge's set, or -1 when it cannot be read.
func (c *QuestionCache) generation(ctx context.Context, challengeID int64) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(challengeID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return -1, err
	}
	return gen, nil
}

// store writes qs unless an invalidation happened since gen was read.
func (c *QuestionCache) store(ctx context.Context, challengeID, gen int64, qs []domain.SubQuestion) error {
	payload, err := json.Marshal(qs)
	if err != nil {
		return err
	}
	genKey := generationKey(challengeID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, questionsKey(challengeID), payload, c.ttlWithJitter())
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *QuestionCache) get(ctx context.Context, key string) ([]domain.SubQuestion, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("read cached question set", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var qs []domain.SubQuestion
	if err := json.Unmarshal(raw, &qs); err != nil {
		c.log.Warn("decode cached question set", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return qs, true
}

func questionsKey(challengeID int64) string {
	return "subquestion:challenge:" + strconv.FormatInt(challengeID, 10) + ":questions"
}

func generationKey(challengeID int64) string {
	return questionsKey(challengeID) + ":gen"
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
