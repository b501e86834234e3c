package presentation

import (
	"context"
	"crypto/cipher"

	clock "github.com/jonboulle/clockwork"

	"github.com/zkcred/zkcred/common/log"
	"github.com/zkcred/zkcred/crypto/field"
	"github.com/zkcred/zkcred/internal/metrics"
)

type config struct {
	log         log.Logger
	clock       clock.Clock
	cache       *Cache
	rand        cipher.Stream
	metrics     *metrics.Recorder
	noUnsigned  bool
	serverNonce *field.Element
}

// Option configures the protocol operations.
type Option func(*config)

// WithLogger sets the logger, the context logger is used otherwise.
func WithLogger(l log.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithClock sets the clock operations are timed with.
func WithClock(clk clock.Clock) Option {
	return func(c *config) { c.clock = clk }
}

// WithCache memoizes precompiled specs in a caller owned cache.
func WithCache(cache *Cache) Option {
	return func(c *config) { c.cache = cache }
}

// WithRandom sets the source of nonces, crypto/rand is used otherwise.
func WithRandom(stream cipher.Stream) Option {
	return func(c *config) { c.rand = stream }
}

// WithMetrics records operations, metrics.Default is used otherwise.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(c *config) { c.metrics = rec }
}

// WithoutUnsigned rejects specs with unsigned credential inputs.
func WithoutUnsigned() Option {
	return func(c *config) { c.noUnsigned = true }
}

// WithServerNonce fixes the server nonce of a new request, for verifiers that
// bound staleness with nonce epochs instead of storing random nonces.
func WithServerNonce(nonce field.Element) Option {
	return func(c *config) { c.serverNonce = &nonce }
}

func newConfig(ctx context.Context, opts []Option) *config {
	c := &config{clock: clock.NewRealClock()}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = log.FromContextOrDefault(ctx).Named("presentation")
	}
	if c.metrics == nil {
		c.metrics = metrics.Default()
	}
	return c
}
