package access

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"hazard-service/internal/common/logger"
	"hazard-service/internal/common/metrics"
	"hazard-service/internal/common/workerpool"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inlineLane runs background work on the calling goroutine.
type inlineLane struct{ reject bool }

func (l inlineLane) Go(fn func(ctx context.Context)) bool {
	if l.reject {
		return false
	}
	fn(context.Background())
	return true
}

type fakeStore struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *fakeStore) Name() string { return "fake" }

func (s *fakeStore) Increment(ctx context.Context, ip string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, ip)
	return int64(len(s.calls)), s.err
}

func TestCounter_ConcurrentIncrements(t *testing.T) {
	c := NewCounter()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ip := fmt.Sprintf("10.0.0.%d", i%2)
			for j := 0; j < 100; j++ {
				c.Increment(ip)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(2500), c.Count("10.0.0.0"))
	assert.Equal(t, int64(2500), c.Count("10.0.0.1"))
	assert.Equal(t, int64(0), c.Count("10.0.0.2"))
}

func TestCounter_Snapshot(t *testing.T) {
	c := NewCounter()
	c.Increment("b")
	c.Increment("a")
	c.Increment("c")
	c.Increment("c")

	assert.Equal(t, []Entry{{"c", 2}, {"a", 1}, {"b", 1}}, c.Snapshot())
}

func TestGuard_Allow(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		ip      string
		want    bool
	}{
		{"listed address", true, "98.26.65.16", false},
		{"address under listed prefix", true, "98.26.65.162", false},
		{"other address", true, "192.168.1.4", true},
		{"listed address with enforcement off", false, "98.26.65.16", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := NewCounter()
			g := NewGuard(counter, GuardOptions{
				Enabled:   tt.enabled,
				Blocklist: []string{"98.26.65.16", " "},
				Log:       logger.NewTestLogger(t),
			})

			assert.Equal(t, tt.want, g.Allow(context.Background(), tt.ip))
			assert.Equal(t, tt.want, g.Allow(context.Background(), tt.ip))
			assert.Equal(t, int64(2), counter.Count(tt.ip))
			assert.Same(t, counter, g.Counter())
		})
	}
}

func TestGuard_DecisionMetrics(t *testing.T) {
	g := NewGuard(NewCounter(), GuardOptions{Enabled: true, Blocklist: []string{"1.2.3."}})

	blocked := testutil.ToFloat64(metrics.AccessDecisions.WithLabelValues(DecisionBlocked))
	allowed := testutil.ToFloat64(metrics.AccessDecisions.WithLabelValues(DecisionAllowed))

	g.Allow(context.Background(), "1.2.3.4")
	g.Allow(context.Background(), "4.3.2.1")

	assert.Equal(t, blocked+1, testutil.ToFloat64(metrics.AccessDecisions.WithLabelValues(DecisionBlocked)))
	assert.Equal(t, allowed+1, testutil.ToFloat64(metrics.AccessDecisions.WithLabelValues(DecisionAllowed)))
}

func TestGuard_Mirror(t *testing.T) {
	t.Run("writes through the lane", func(t *testing.T) {
		store := &fakeStore{}
		g := NewGuard(NewCounter(), GuardOptions{Store: store, Lane: inlineLane{}, Log: logger.NewTestLogger(t)})

		g.Allow(context.Background(), "10.1.1.1")
		g.Allow(context.Background(), "10.1.1.2")
		assert.Equal(t, []string{"10.1.1.1", "10.1.1.2"}, store.calls)
	})

	t.Run("store failure does not change the decision", func(t *testing.T) {
		store := &fakeStore{err: errors.New("connection refused")}
		g := NewGuard(NewCounter(), GuardOptions{Store: store, Lane: inlineLane{}, Log: logger.NewTestLogger(t)})

		before := testutil.ToFloat64(metrics.AccessMirrorFailures.WithLabelValues("fake"))
		assert.True(t, g.Allow(context.Background(), "10.1.1.1"))
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.AccessMirrorFailures.WithLabelValues("fake")))
	})

	t.Run("saturated lane drops the write", func(t *testing.T) {
		store := &fakeStore{}
		counter := NewCounter()
		g := NewGuard(counter, GuardOptions{Store: store, Lane: inlineLane{reject: true}, Log: logger.NewTestLogger(t)})

		assert.True(t, g.Allow(context.Background(), "10.1.1.1"))
		assert.Empty(t, store.calls)
		assert.Equal(t, int64(1), counter.Count("10.1.1.1"))
	})

	t.Run("store without lane is ignored", func(t *testing.T) {
		store := &fakeStore{}
		g := NewGuard(NewCounter(), GuardOptions{Store: store})
		assert.True(t, g.Allow(context.Background(), "10.1.1.1"))
		assert.Empty(t, store.calls)
	})
}

func TestGuard_MirrorsToRedisThroughPool(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lane := workerpool.New("access-lane", 1, 16, logger.NewTestLogger(t))
	store := NewRedisStore(client, "hazard:ip:", 0)
	g := NewGuard(NewCounter(), GuardOptions{Store: store, Lane: lane, Log: logger.NewTestLogger(t)})

	for i := 0; i < 3; i++ {
		g.Allow(context.Background(), "172.16.0.9")
	}
	require.NoError(t, lane.Shutdown(context.Background()))

	n, err := store.Count(context.Background(), "172.16.0.9")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRedisStore_Increment(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "hazard:ip:", 0)

	mock.ExpectIncr("hazard:ip:1.2.3.4").SetVal(3)
	n, err := store.Increment(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	mock.ExpectIncr("hazard:ip:1.2.3.4").SetErr(errors.New("connection reset"))
	_, err = store.Increment(context.Background(), "1.2.3.4")
	assert.ErrorContains(t, err, "connection reset")

	mock.ExpectGet("hazard:ip:5.6.7.8").RedisNil()
	n, err = store.Count(context.Background(), "5.6.7.8")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, "redis", store.Name())
}

func TestRedisStore_IncrementWithTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, "hazard:ip:", time.Hour)

	for want := int64(1); want <= 2; want++ {
		n, err := store.Increment(context.Background(), "1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	assert.Equal(t, time.Hour, mr.TTL("hazard:ip:1.2.3.4"))

	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists("hazard:ip:1.2.3.4"))
}

func TestPostgresStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(createCountsTableSQL)).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.EnsureSchema(ctx))

	mock.ExpectQuery(regexp.QuoteMeta(upsertCountSQL)).
		WithArgs("1.2.3.4").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	n, err := store.Increment(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	mock.ExpectQuery(regexp.QuoteMeta(upsertCountSQL)).
		WithArgs("1.2.3.4").
		WillReturnError(errors.New("deadlock detected"))
	_, err = store.Increment(ctx, "1.2.3.4")
	assert.ErrorContains(t, err, "deadlock detected")

	mock.ExpectQuery(regexp.QuoteMeta(selectCountSQL)).
		WithArgs("9.9.9.9").
		WillReturnRows(sqlmock.NewRows([]string{"count"}))
	n, err = store.Count(ctx, "9.9.9.9")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, "postgres", store.Name())
}
