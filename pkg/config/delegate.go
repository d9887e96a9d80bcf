package config

import (
	"context"

	"github.com/marmos91/fsdelegate/pkg/delegate"
)

// DelegateConfig returns the connection settings of delegate sessions.
func (c *Config) DelegateConfig() delegate.Config {
	return delegate.Config{
		Security:   c.Security,
		AuthParams: c.AuthParams,
		FileSystem: c.FileSystem,
	}
}

// RetryPolicy returns the configured retry bounds with the default
// transient block-length predicate.
func (c *Config) RetryPolicy() delegate.RetryPolicy {
	p := delegate.DefaultRetryPolicy()
	if c.Retry.MaxAttempts > 0 {
		p.MaxAttempts = c.Retry.MaxAttempts
	}
	p.Backoff = c.Retry.Backoff
	return p
}

// OpenSession opens a delegate session acting as username with the retry
// policy of the configuration. m may be nil.
func (c *Config) OpenSession(ctx context.Context, username string, m delegate.Metrics) (*delegate.Session, error) {
	opts := []delegate.Option{delegate.WithRetryPolicy(c.RetryPolicy())}
	if m != nil {
		opts = append(opts, delegate.WithMetrics(m))
	}
	return delegate.New(ctx, c.DelegateConfig(), username, opts...)
}
