package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"exam-prep-service/internal/app"
	"exam-prep-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CacheObserver is told about every cache lookup.
type CacheObserver interface {
	CacheLookup(hit bool)
}

// PaperRepository caches papers in Redis (one hash per paper) and falls back
// to a loader on cache miss:
//
//	HSET paper:{id} kind {kind} data {paper json}
type PaperRepository struct {
	client   *redis.Client
	loader   app.PaperLoader
	ttl      time.Duration
	sf       singleflight.Group
	observer CacheObserver

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewPaperRepository(client *redis.Client, loader app.PaperLoader, ttl time.Duration) *PaperRepository {
	return &PaperRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithObserver attaches a cache hit/miss observer.
func (r *PaperRepository) WithObserver(o CacheObserver) *PaperRepository {
	r.observer = o
	return r
}

func (r *PaperRepository) GetPaper(ctx context.Context, id domain.ID) (domain.Paper, error) {
	if paper, ok := r.cached(ctx, id); ok {
		r.observe(true)
		return paper, nil
	}
	r.observe(false)

	result, err, _ := r.sf.Do(id.Hex(), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if paper, ok := r.cached(ctx, id); ok {
			return paper, nil
		}

		paper, err := r.loader.LoadPaper(ctx, id)
		if err != nil {
			return domain.Paper{}, err
		}

		data, err := json.Marshal(paper)
		if err != nil {
			return domain.Paper{}, fmt.Errorf("encode paper: %w", err)
		}
		key := r.key(id)
		pipe := r.client.Pipeline()
		pipe.HSet(ctx, key, "kind", string(paper.Kind), "data", data)
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		// a failed cache write only costs a reload
		_, _ = pipe.Exec(ctx)

		return paper, nil
	})
	if err != nil {
		return domain.Paper{}, err
	}
	return result.(domain.Paper), nil
}

// Invalidate drops a cached paper.
func (r *PaperRepository) Invalidate(ctx context.Context, id domain.ID) error {
	return r.client.Del(ctx, r.key(id)).Err()
}

func (r *PaperRepository) cached(ctx context.Context, id domain.ID) (domain.Paper, bool) {
	raw, err := r.client.HGet(ctx, r.key(id), "data").Bytes()
	if err != nil || len(raw) == 0 {
		return domain.Paper{}, false
	}
	var paper domain.Paper
	if err := json.Unmarshal(raw, &paper); err != nil {
		return domain.Paper{}, false
	}
	return paper, true
}

func (r *PaperRepository) observe(hit bool) {
	if r.observer != nil {
		r.observer.CacheLookup(hit)
	}
}

func (r *PaperRepository) key(id domain.ID) string {
	return "paper:" + id.Hex()
}

func (r *PaperRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
