package modelcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hazard-service/internal/common/logger"
	"hazard-service/internal/common/metrics"
	"hazard-service/internal/hazard"
	"hazard-service/internal/hazard/hazardtest"
	"hazard-service/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cous2014 = models.NewModelID(models.COUS, models.E2014)
	wus2014  = models.NewModelID(models.WUS, models.E2014)
	ceus2014 = models.NewModelID(models.CEUS, models.E2014)
	ak2008   = models.NewModelID(models.AK, models.E2008)
)

type loaderFunc func(ctx context.Context, id models.ModelID) (*hazard.Model, error)

func (f loaderFunc) Load(ctx context.Context, id models.ModelID) (*hazard.Model, error) {
	return f(ctx, id)
}

func TestGet_LoadsOnceUnderConcurrency(t *testing.T) {
	loader := &hazardtest.Loader{T: t, Delay: 50 * time.Millisecond}
	cache := New(loader, []models.ModelID{cous2014, wus2014}, logger.NewTestLogger(t))

	const callers = 64
	results := make([]*hazard.Model, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = cache.Get(context.Background(), cous2014)
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, 1, loader.CallsFor(cous2014))

	// later calls are hits
	again, err := cache.Get(context.Background(), cous2014)
	require.NoError(t, err)
	assert.Same(t, results[0], again)
	assert.Equal(t, 1, loader.Calls())
}

func TestGet_DistinctIDsLoadIndependently(t *testing.T) {
	loader := &hazardtest.Loader{T: t}
	cache := New(loader, []models.ModelID{cous2014, wus2014}, logger.NewTestLogger(t))

	a, err := cache.Get(context.Background(), cous2014)
	require.NoError(t, err)
	b, err := cache.Get(context.Background(), wus2014)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, wus2014, b.ID())
	assert.Equal(t, []models.ModelID{cous2014, wus2014}, cache.Loaded())
}

func TestGet_NotInstalled(t *testing.T) {
	loader := &hazardtest.Loader{T: t}
	cache := New(loader, []models.ModelID{cous2014}, logger.NewTestLogger(t))

	before := testutil.ToFloat64(metrics.CacheEvents.WithLabelValues(metrics.CacheNotInstalled))

	_, err := cache.Get(context.Background(), ak2008)
	assert.ErrorIs(t, err, ErrModelNotInstalled)
	assert.Equal(t, 0, loader.Calls())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CacheEvents.WithLabelValues(metrics.CacheNotInstalled)))
}

func TestGet_FailedLoadIsRetried(t *testing.T) {
	loader := &hazardtest.Loader{T: t, Err: errors.New("disk unavailable")}
	cache := New(loader, []models.ModelID{cous2014}, logger.NewTestLogger(t))

	_, err := cache.Get(context.Background(), cous2014)
	assert.ErrorIs(t, err, ErrModelLoad)
	assert.Contains(t, err.Error(), "disk unavailable")
	assert.Empty(t, cache.Loaded())

	loader.Err = nil
	m, err := cache.Get(context.Background(), cous2014)
	require.NoError(t, err)
	assert.Equal(t, cous2014, m.ID())
	assert.Equal(t, 2, loader.Calls())
}

func TestGet_LoaderPanicIsAnError(t *testing.T) {
	cache := New(loaderFunc(func(ctx context.Context, id models.ModelID) (*hazard.Model, error) {
		panic("corrupt index")
	}), []models.ModelID{cous2014}, logger.NewTestLogger(t))

	_, err := cache.Get(context.Background(), cous2014)
	assert.ErrorIs(t, err, ErrModelLoad)
	assert.Contains(t, err.Error(), "corrupt index")
}

func TestGet_NilModelIsAnError(t *testing.T) {
	cache := New(loaderFunc(func(ctx context.Context, id models.ModelID) (*hazard.Model, error) {
		return nil, nil
	}), []models.ModelID{cous2014}, logger.NewTestLogger(t))

	_, err := cache.Get(context.Background(), cous2014)
	assert.ErrorIs(t, err, ErrModelLoad)
}

func TestGet_CallerCancellationDoesNotAbortLoad(t *testing.T) {
	loader := &hazardtest.Loader{T: t, Delay: 100 * time.Millisecond}
	cache := New(loader, []models.ModelID{cous2014}, logger.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := cache.Get(ctx, cous2014)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	m, err := cache.Get(context.Background(), cous2014)
	require.NoError(t, err)
	assert.Equal(t, cous2014, m.ID())
	assert.Equal(t, 1, loader.Calls())
}

func TestGet_LoadTimeout(t *testing.T) {
	loader := &hazardtest.Loader{T: t, Delay: time.Second}
	cache := New(loader, []models.ModelID{cous2014}, logger.NewTestLogger(t), WithLoadTimeout(20*time.Millisecond))

	_, err := cache.Get(context.Background(), cous2014)
	assert.ErrorIs(t, err, ErrModelLoad)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPreload(t *testing.T) {
	loader := &hazardtest.Loader{T: t, Delay: 10 * time.Millisecond}
	cache := New(loader, []models.ModelID{cous2014, wus2014, ceus2014}, logger.NewTestLogger(t))

	require.NoError(t, cache.Preload(context.Background(), []models.ModelID{ceus2014, cous2014, ak2008}))
	assert.Equal(t, []models.ModelID{cous2014, ceus2014}, cache.Loaded())
	assert.Equal(t, []models.ModelID{cous2014, wus2014, ceus2014}, cache.Installed())
	assert.True(t, cache.IsInstalled(wus2014))
	assert.False(t, cache.IsInstalled(ak2008))

	failing := New(&hazardtest.Loader{T: t, Err: errors.New("boom")}, []models.ModelID{cous2014}, logger.NewTestLogger(t))
	assert.ErrorIs(t, failing.Preload(context.Background(), []models.ModelID{cous2014}), ErrModelLoad)
}

func TestNew_DeduplicatesInstalled(t *testing.T) {
	cache := New(&hazardtest.Loader{T: t}, []models.ModelID{cous2014, cous2014, wus2014}, logger.NewTestLogger(t))
	assert.Equal(t, []models.ModelID{cous2014, wus2014}, cache.Installed())
}
