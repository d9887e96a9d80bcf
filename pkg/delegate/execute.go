package delegate

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/internal/telemetry"
	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/ugi"
)

// Action is a unit of filesystem work. It receives a context carrying the
// impersonated user and the session's filesystem handle.
type Action[T any] func(ctx context.Context, fsys fs.FileSystem) (T, error)

const (
	opExecute  = "execute"
	eventRetry = "retry"
)

// Execute runs action as the session's proxy user under the session's retry
// policy. Errors the policy does not retry are returned after a single
// invocation; otherwise the error of the last attempt is returned.
func Execute[T any](ctx context.Context, s *Session, action Action[T]) (T, error) {
	return execute(ctx, s, opExecute, action)
}

func execute[T any](ctx context.Context, s *Session, op string, action Action[T], attrs ...attribute.KeyValue) (T, error) {
	ctx, span := telemetry.StartOperationSpan(ctx, op, s.user.ShortUserName(),
		append(attrs, telemetry.SessionID(s.id))...)
	defer span.End()

	lc := s.logContext.WithOperation(op).WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	start := time.Now()
	result, attempts, err := runWithRetry(ctx, s, op, action)

	telemetry.SetAttributes(ctx, telemetry.Attempts(attempts))
	if err == nil {
		telemetry.SetStatus(ctx, codes.Ok, "")
	} else {
		telemetry.SetAttributes(ctx, telemetry.Retryable(s.policy.retryable(err)))
		telemetry.RecordError(ctx, err)
		logger.DebugCtx(ctx, "Operation failed",
			logger.KeyAttempt, attempts,
			logger.KeyDurationMs, lc.DurationMs(),
			logger.KeyError, err)
	}
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, attempts, time.Since(start), err)
	}
	return result, err
}

func runWithRetry[T any](ctx context.Context, s *Session, op string, action Action[T]) (T, int, error) {
	var zero T
	maxAttempts := s.policy.attempts()

	for attempt := 1; ; attempt++ {
		result, err := ugi.DoAs(ctx, s.user, func(ctx context.Context) (T, error) {
			return action(ctx, s.fs)
		})
		if err == nil {
			return result, attempt, nil
		}
		if attempt >= maxAttempts || !s.policy.retryable(err) {
			return zero, attempt, err
		}

		logger.InfoCtx(ctx, "Transient filesystem error, retrying",
			logger.KeyAttempt, attempt+1,
			logger.KeyMaxAttempts, maxAttempts,
			logger.KeyBackoff, s.policy.Backoff,
			logger.KeyError, err)
		telemetry.AddEvent(ctx, eventRetry, telemetry.Attempts(attempt), telemetry.Retryable(true))
		if s.metrics != nil {
			s.metrics.RecordRetry(op)
		}

		if serr := s.policy.sleep(ctx); serr != nil {
			return zero, attempt, err
		}
	}
}
