package access

import (
	"context"
	"strings"
	"time"

	"hazard-service/internal/common/logger"
	"hazard-service/internal/common/metrics"
)

// Access decisions reported to AccessDecisions.
const (
	DecisionAllowed = "allowed"
	DecisionBlocked = "blocked"
)

const defaultMirrorTimeout = 2 * time.Second

// Store persists request tallies outside the process.
type Store interface {
	Name() string
	Increment(ctx context.Context, ip string) (int64, error)
}

// Lane runs background work; a *workerpool.Pool satisfies it.
type Lane interface {
	Go(fn func(ctx context.Context)) bool
}

type GuardOptions struct {
	// Enabled turns blocklist enforcement on. Requests are counted either way.
	Enabled   bool
	Blocklist []string

	// Store and Lane are both required for mirroring.
	Store         Store
	Lane          Lane
	MirrorTimeout time.Duration

	Log logger.Logger
}

type Guard struct {
	counter   *Counter
	enabled   bool
	blocklist []string
	store     Store
	lane      Lane
	timeout   time.Duration
	log       logger.Logger
}

func NewGuard(counter *Counter, opts GuardOptions) *Guard {
	g := &Guard{
		counter: counter,
		enabled: opts.Enabled,
		store:   opts.Store,
		lane:    opts.Lane,
		timeout: opts.MirrorTimeout,
		log:     opts.Log,
	}
	if g.timeout <= 0 {
		g.timeout = defaultMirrorTimeout
	}
	if g.log == nil {
		g.log = logger.NewNoOpLogger()
	}
	for _, prefix := range opts.Blocklist {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			g.blocklist = append(g.blocklist, prefix)
		}
	}
	return g
}

// Allow counts the request from ip and reports whether it may proceed.
func (g *Guard) Allow(ctx context.Context, ip string) bool {
	count := g.counter.Increment(ip)
	g.mirror(ip)

	if g.enabled && g.Blocked(ip) {
		metrics.AccessDecisions.WithLabelValues(DecisionBlocked).Inc()
		g.log.Warn("request refused", map[string]interface{}{
			"client_ip": ip,
			"count":     count,
		})
		return false
	}

	metrics.AccessDecisions.WithLabelValues(DecisionAllowed).Inc()
	return true
}

// Blocked reports whether ip starts with a blocklisted prefix, regardless of
// whether enforcement is enabled.
func (g *Guard) Blocked(ip string) bool {
	for _, prefix := range g.blocklist {
		if strings.HasPrefix(ip, prefix) {
			return true
		}
	}
	return false
}

func (g *Guard) Counter() *Counter { return g.counter }

func (g *Guard) mirror(ip string) {
	if g.store == nil || g.lane == nil {
		return
	}

	accepted := g.lane.Go(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		if _, err := g.store.Increment(ctx, ip); err != nil {
			metrics.AccessMirrorFailures.WithLabelValues(g.store.Name()).Inc()
			g.log.Warn("failed to mirror request count", map[string]interface{}{
				"store":     g.store.Name(),
				"client_ip": ip,
				"error":     err.Error(),
			})
		}
	})
	if !accepted {
		metrics.AccessMirrorFailures.WithLabelValues(g.store.Name()).Inc()
	}
}
