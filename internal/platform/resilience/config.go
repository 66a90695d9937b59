package resilience

import "time"

// CircuitBreakerConfig mirrors the FOOTBALL_API_CIRCUIT_* settings.
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenMaxReq   int
	// OnStateChange runs after a transition, outside the breaker lock.
	OnStateChange func(from, to CircuitState)
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 5,
		OpenTimeout:      15 * time.Second,
		HalfOpenMaxReq:   2,
	}
}

func (cfg CircuitBreakerConfig) normalized() CircuitBreakerConfig {
	defaults := DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = max(cfg.FailureThreshold, 1)
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaults.OpenTimeout
	}
	cfg.HalfOpenMaxReq = max(cfg.HalfOpenMaxReq, 1)
	return cfg
}

type BackoffGrowth int

const (
	// BackoffLinear waits Base, 2*Base, 3*Base...
	BackoffLinear BackoffGrowth = iota
	// BackoffExponential waits Base, 2*Base, 4*Base...
	BackoffExponential
)

// RetryPolicy bounds how often and how patiently a call is repeated.
// Retries counts extra attempts, so Retries=3 means at most four calls.
type RetryPolicy struct {
	Retries  int
	Base     time.Duration
	Growth   BackoffGrowth
	MaxDelay time.Duration
}

// Delay returns the wait before retry n (1-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 || p.Base <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Growth {
	case BackoffExponential:
		d = p.Base << min(n-1, 30)
	default:
		d = p.Base * time.Duration(n)
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
