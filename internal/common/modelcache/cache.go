// Package modelcache keeps loaded hazard models in memory. Each model is
// loaded at most once per process and then shared by all requests.
package modelcache

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"hazard-service/internal/common/logger"
	"hazard-service/internal/common/metrics"
	"hazard-service/internal/hazard"
	"hazard-service/internal/models"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var (
	ErrModelNotInstalled = errors.New("model not installed")
	ErrModelLoad         = errors.New("model load failed")
)

// Loader reads a model from its backing store.
type Loader interface {
	Load(ctx context.Context, id models.ModelID) (*hazard.Model, error)
}

type Option func(*Cache)

// WithLoadTimeout bounds a single load. Zero means no bound.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Cache) { c.loadTimeout = d }
}

type Cache struct {
	loader      Loader
	installed   []models.ModelID
	isInstalled map[models.ModelID]bool
	loadTimeout time.Duration
	log         logger.Logger

	mu    sync.RWMutex
	ready map[models.ModelID]*hazard.Model

	group singleflight.Group
}

// New creates a cache serving the installed models. Ids outside installed are
// rejected without consulting the loader.
func New(loader Loader, installed []models.ModelID, log logger.Logger, opts ...Option) *Cache {
	c := &Cache{
		loader:      loader,
		isInstalled: make(map[models.ModelID]bool, len(installed)),
		log:         log,
		ready:       make(map[models.ModelID]*hazard.Model),
	}
	for _, id := range installed {
		if c.isInstalled[id] {
			continue
		}
		c.isInstalled[id] = true
		c.installed = append(c.installed, id)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the model for id, loading it on first use. Concurrent callers
// for the same id share one load. A failed load is not remembered; the next
// call tries again. Cancelling ctx abandons the wait, not the load.
func (c *Cache) Get(ctx context.Context, id models.ModelID) (*hazard.Model, error) {
	if !c.isInstalled[id] {
		metrics.CacheEvents.WithLabelValues(metrics.CacheNotInstalled).Inc()
		return nil, fmt.Errorf("%w: %s", ErrModelNotInstalled, id)
	}

	if m, ok := c.lookup(id); ok {
		metrics.CacheEvents.WithLabelValues(metrics.CacheHit).Inc()
		return m, nil
	}
	metrics.CacheEvents.WithLabelValues(metrics.CacheMiss).Inc()

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(id.String(), func() (interface{}, error) {
		return c.load(loadCtx, id)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*hazard.Model), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) lookup(id models.ModelID) (*hazard.Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.ready[id]
	return m, ok
}

func (c *Cache) load(ctx context.Context, id models.ModelID) (m *hazard.Model, err error) {
	// a load that finished after the caller's lookup but before DoChan
	if m, ok := c.lookup(id); ok {
		return m, nil
	}

	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("%w: %s: panic: %v", ErrModelLoad, id, r)
		}
		if err != nil {
			metrics.CacheEvents.WithLabelValues(metrics.CacheLoadFailure).Inc()
			c.log.Error("model load failed", map[string]interface{}{
				"model": id.String(),
				"error": err.Error(),
			})
		}
	}()

	if c.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.loadTimeout)
		defer cancel()
	}

	start := time.Now()
	m, err = c.loader.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrModelLoad, id, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: %s: loader returned no model", ErrModelLoad, id)
	}

	c.mu.Lock()
	c.ready[id] = m
	c.mu.Unlock()

	elapsed := time.Since(start)
	metrics.CacheEvents.WithLabelValues(metrics.CacheLoad).Inc()
	metrics.CacheLoadDuration.WithLabelValues(id.String()).Observe(elapsed.Seconds())
	c.log.Info("model cached", map[string]interface{}{
		"model":       id.String(),
		"duration_ms": elapsed.Milliseconds(),
	})
	return m, nil
}

// Preload loads ids concurrently and returns the first failure. Ids that are
// not installed are skipped with a warning.
func (c *Cache) Preload(ctx context.Context, ids []models.ModelID) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for _, id := range ids {
		if !c.isInstalled[id] {
			c.log.Warn("skipping preload of model that is not installed", map[string]interface{}{"model": id.String()})
			continue
		}
		id := id
		g.Go(func() error {
			_, err := c.Get(gctx, id)
			return err
		})
	}
	return g.Wait()
}

// Installed returns the ids this cache serves, in registration order.
func (c *Cache) Installed() []models.ModelID {
	return append([]models.ModelID(nil), c.installed...)
}

func (c *Cache) IsInstalled(id models.ModelID) bool {
	return c.isInstalled[id]
}

// Loaded returns the ids currently held in memory, in registration order.
func (c *Cache) Loaded() []models.ModelID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.ModelID
	for _, id := range c.installed {
		if _, ok := c.ready[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
