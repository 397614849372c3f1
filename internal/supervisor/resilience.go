package supervisor

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// RetryConfig configures the exponential backoff applied between worker
// respawns after abnormal exits.
type RetryConfig struct {
	InitialInterval     time.Duration // first respawn delay (default 100ms)
	MaxInterval         time.Duration // ceiling for the respawn delay (default 10s)
	Multiplier          float64       // backoff multiplier (default 2.0)
	RandomizationFactor float64       // jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default respawn backoff configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// newBackOff builds the backoff state machine for one supervisor. MaxElapsedTime
// is disabled: the supervisor keeps trying for as long as it lives, the
// circuit breaker is what stops a hopeless binary.
func (c RetryConfig) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.InitialInterval
	bo.MaxInterval = c.MaxInterval
	bo.Multiplier = c.Multiplier
	bo.RandomizationFactor = c.RandomizationFactor
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// newSpawnBreaker builds the circuit breaker guarding worker spawns. A
// worker binary that keeps dying right after start trips the breaker, so
// queued tasks fail fast instead of feeding a crash loop.
func newSpawnBreaker(name string, log *zap.SugaredLogger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,                // one probe spawn in half-open state
		Interval:    0,                // never clear counts automatically
		Timeout:     30 * time.Second, // stay open for 30s before probing
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Infow("spawn breaker state change",
				"worker", name, "from", from.String(), "to", to.String())
		},
	})
}
