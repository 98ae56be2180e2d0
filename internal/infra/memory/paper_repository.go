package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"exam-prep-service/internal/app"
	"exam-prep-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// CacheObserver is told about every cache lookup.
type CacheObserver interface {
	CacheLookup(hit bool)
}

// PaperRepository caches papers with TTL to avoid repeated DB hits.
type PaperRepository struct {
	loader   app.PaperLoader
	ttl      time.Duration
	clock    func() time.Time
	sf       singleflight.Group
	observer CacheObserver

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[domain.ID]cachedPaper
}

type cachedPaper struct {
	paper     domain.Paper
	expiresAt time.Time
}

func NewPaperRepository(loader app.PaperLoader, ttl time.Duration) *PaperRepository {
	return &PaperRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[domain.ID]cachedPaper),
	}
}

// WithObserver attaches a cache hit/miss observer.
func (r *PaperRepository) WithObserver(o CacheObserver) *PaperRepository {
	r.observer = o
	return r
}

func (r *PaperRepository) GetPaper(ctx context.Context, id domain.ID) (domain.Paper, error) {
	if paper, ok := r.lookup(id, r.clock()); ok {
		r.observe(true)
		return paper, nil
	}
	r.observe(false)

	result, err, _ := r.sf.Do(id.Hex(), func() (interface{}, error) {
		now := r.clock()
		if paper, ok := r.lookup(id, now); ok {
			return paper, nil
		}

		paper, err := r.loader.LoadPaper(ctx, id)
		if err != nil {
			return domain.Paper{}, err
		}

		r.mu.Lock()
		r.cache[id] = cachedPaper{
			paper:     paper,
			expiresAt: now.Add(r.ttlWithJitterLocked()),
		}
		r.mu.Unlock()
		return paper, nil
	})
	if err != nil {
		return domain.Paper{}, err
	}
	return result.(domain.Paper), nil
}

// Invalidate drops a cached paper.
func (r *PaperRepository) Invalidate(id domain.ID) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}

func (r *PaperRepository) lookup(id domain.ID, now time.Time) (domain.Paper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[id]
	if !ok || !entry.expiresAt.After(now) {
		return domain.Paper{}, false
	}
	return entry.paper, true
}

func (r *PaperRepository) observe(hit bool) {
	if r.observer != nil {
		r.observer.CacheLookup(hit)
	}
}

func (r *PaperRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
