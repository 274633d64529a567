package index

import (
	"log/slog"

	"github.com/randalmurphal/flowstream/pkg/flowstream/event"
	"github.com/randalmurphal/flowstream/pkg/flowstream/observability"
)

type config struct {
	shards         int
	expireInterval int64
	onExpired      func(event.Event)
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
}

func defaultConfig() config {
	return config{
		shards:         DefaultShards,
		expireInterval: DefaultExpireInterval,
		logger:         slog.Default(),
		metrics:        observability.NoopMetrics{},
	}
}

// Option configures an Index.
type Option func(*config)

// WithShards sets the number of shards.
// Default: 16
func WithShards(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.shards = n
		}
	}
}

// WithExpireInterval sets how often, in seconds, the periodic sweep runs.
// Zero disables the periodic sweep; Expire can still be called directly.
// Default: 10
func WithExpireInterval(sec int64) Option {
	return func(c *config) {
		if sec >= 0 {
			c.expireInterval = sec
		}
	}
}

// WithExpiredHandler sets a function that receives every event removed by
// a sweep, with its state set to "expired". It is typically used to push
// expirations back into the stream graph.
func WithExpiredHandler(fn func(event.Event)) Option {
	return func(c *config) {
		c.onExpired = fn
	}
}

// WithLogger sets the logger for sweep reports.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the recorder for sweep metrics.
// Default: observability.NoopMetrics{}
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *config) {
		if m != nil {
			c.metrics = m
		}
	}
}
