package resilience

import "time"

// RetryPolicy bounds how often and how patiently a failed call is repeated.
// MaxAttempts counts the first call.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// BreakerPolicy configures the per-operation circuit breaker. The breaker is
// on unless Disabled is set.
type BreakerPolicy struct {
	Disabled         bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
}

// LookupPolicy covers short idempotent calls made while answering a chat
// turn: embeddings, vector search and the vector cache.
func LookupPolicy() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     400 * time.Millisecond,
			Multiplier:     2.0,
		},
		Breaker: BreakerPolicy{
			MinRequests:      10,
			FailureRatio:     0.5,
			OpenTimeout:      30 * time.Second,
			HalfOpenMaxCalls: 2,
		},
	}
}

// GenerationPolicy never repeats a generation: a second attempt would hold a
// generation slot twice and the user is already waiting. The breaker trips
// sooner so a wedged model fails fast.
func GenerationPolicy() Config {
	cfg := LookupPolicy()
	cfg.Retry.MaxAttempts = 1
	cfg.Breaker.MinRequests = 6
	cfg.Breaker.OpenTimeout = 15 * time.Second
	return cfg
}

// BroadcastPolicy is for reload notifications. Nobody waits on them
// interactively, so they back off longer before giving up.
func BroadcastPolicy() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    5,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2.0,
		},
		Breaker: BreakerPolicy{
			MinRequests:      4,
			FailureRatio:     0.75,
			OpenTimeout:      10 * time.Second,
			HalfOpenMaxCalls: 1,
		},
	}
}

func (p RetryPolicy) normalize(def RetryPolicy) RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = def.Multiplier
	}
	return p
}

// delay is the wait before attempt n+1 after attempt n (n starts at 1).
func (p RetryPolicy) delay(n int) time.Duration {
	d := float64(p.InitialBackoff)
	for i := 1; i < n; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}
	return time.Duration(d)
}

func (p BreakerPolicy) normalize(def BreakerPolicy) BreakerPolicy {
	if p.MinRequests == 0 {
		p.MinRequests = def.MinRequests
	}
	if p.FailureRatio <= 0 || p.FailureRatio > 1 {
		p.FailureRatio = def.FailureRatio
	}
	if p.OpenTimeout <= 0 {
		p.OpenTimeout = def.OpenTimeout
	}
	if p.HalfOpenMaxCalls == 0 {
		p.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	return p
}

func (c Config) normalize() Config {
	def := LookupPolicy()
	return Config{
		Retry:   c.Retry.normalize(def.Retry),
		Breaker: c.Breaker.normalize(def.Breaker),
	}
}
