package delegate

import (
	"context"
	"strings"
	"time"

	"github.com/marmos91/fsdelegate/pkg/fs"
)

// BlockLengthMarker identifies the transient failure raised when a file is
// read while another client still holds it open for writing.
const BlockLengthMarker = "Cannot obtain block length for"

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = time.Second
)

// RetryPredicate decides whether a failed attempt may be repeated.
type RetryPredicate func(err error) bool

// MessageContains matches I/O errors whose message contains marker.
// Errors of any other category never match.
func MessageContains(marker string) RetryPredicate {
	return func(err error) bool {
		return err != nil && fs.IsIOError(err) && strings.Contains(err.Error(), marker)
	}
}

// TransientBlockLength is the default retry predicate.
var TransientBlockLength = MessageContains(BlockLengthMarker)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryPolicy bounds how often an action is attempted.
type RetryPolicy struct {
	// MaxAttempts counts the first invocation. Values below 1 mean 1.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts" json:"max_attempts" validate:"gte=1"`

	// Backoff is the fixed delay between attempts.
	Backoff time.Duration `mapstructure:"backoff" yaml:"backoff" json:"backoff" validate:"gte=0"`

	// Retryable selects the errors worth another attempt. Nil selects
	// TransientBlockLength.
	Retryable RetryPredicate `mapstructure:"-" yaml:"-" json:"-"`

	// Sleep waits out the backoff. Nil selects a context-aware timer.
	Sleep SleepFunc `mapstructure:"-" yaml:"-" json:"-"`
}

// DefaultRetryPolicy returns three attempts one second apart, retrying only
// the transient block-length error.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     DefaultBackoff,
		Retryable:   TransientBlockLength,
		Sleep:       sleepContext,
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable == nil {
		return TransientBlockLength(err)
	}
	return p.Retryable(err)
}

func (p RetryPolicy) sleep(ctx context.Context) error {
	if p.Sleep == nil {
		return sleepContext(ctx, p.Backoff)
	}
	return p.Sleep(ctx, p.Backoff)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
