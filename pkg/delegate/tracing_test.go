package delegate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/marmos91/fsdelegate/internal/telemetry"
	"github.com/marmos91/fsdelegate/pkg/delegate"
	"github.com/marmos91/fsdelegate/pkg/fs"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	telemetry.UseTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)), "test")
	t.Cleanup(func() { telemetry.UseTracerProvider(noop.NewTracerProvider(), "fsdelegate") })
	return recorder
}

// endedSpans returns the ended spans named name, oldest first.
func endedSpans(recorder *tracetest.SpanRecorder, name string) []sdktrace.ReadOnlySpan {
	var out []sdktrace.ReadOnlySpan
	for _, span := range recorder.Ended() {
		if span.Name() == name {
			out = append(out, span)
		}
	}
	return out
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestConnectSpanNamesIdentities(t *testing.T) {
	recorder := recordSpans(t)
	newSession(t, "alice", config{})

	spans := endedSpans(recorder, telemetry.SpanDelegatePrefix+"connect")
	require.Len(t, spans, 1)
	attrs := spans[0].Attributes()

	for key, want := range map[string]string{
		telemetry.AttrUsername: "alice",
		telemetry.AttrRealUser: "hue",
		telemetry.AttrAuth:     "SIMPLE",
		telemetry.AttrFSType:   "memory",
	} {
		v, ok := attrValue(attrs, key)
		require.True(t, ok, key)
		assert.Equal(t, want, v.AsString(), key)
	}

	volume, ok := attrValue(attrs, telemetry.AttrVolume)
	require.True(t, ok)
	assert.Contains(t, volume.AsString(), "memory://")
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
}

func TestRetriesAreSpanEvents(t *testing.T) {
	clock := &fakeClock{}
	s := newSession(t, "alice", config{opts: []delegate.Option{withClock(clock)}})
	recorder := recordSpans(t)

	calls := 0
	_, err := delegate.Execute(context.Background(), s, func(context.Context, fs.FileSystem) (int, error) {
		calls++
		if calls < 3 {
			return 0, blockLengthError()
		}
		return calls, nil
	})
	require.NoError(t, err)

	spans := endedSpans(recorder, telemetry.SpanDelegatePrefix+"execute")
	require.Len(t, spans, 1)
	span := spans[0]

	var retries []int64
	for _, ev := range span.Events() {
		if ev.Name != "retry" {
			continue
		}
		n, ok := attrValue(ev.Attributes, telemetry.AttrAttempts)
		require.True(t, ok)
		retries = append(retries, n.AsInt64())
		retryable, ok := attrValue(ev.Attributes, telemetry.AttrRetryable)
		require.True(t, ok)
		assert.True(t, retryable.AsBool())
	}
	assert.Equal(t, []int64{1, 2}, retries)

	attempts, ok := attrValue(span.Attributes(), telemetry.AttrAttempts)
	require.True(t, ok)
	assert.Equal(t, int64(3), attempts.AsInt64())
	assert.Equal(t, codes.Ok, span.Status().Code)
}

func TestFailedOperationSpan(t *testing.T) {
	s := newSession(t, "alice", config{})
	recorder := recordSpans(t)

	_, err := s.ListDir(context.Background(), "/user/alice/missing")
	require.Error(t, err)

	spans := endedSpans(recorder, telemetry.SpanDelegatePrefix+delegate.OpList)
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	retryable, ok := attrValue(spans[0].Attributes(), telemetry.AttrRetryable)
	require.True(t, ok)
	assert.False(t, retryable.AsBool(), "a missing path is not worth retrying")
}

func TestListDirCountsEntries(t *testing.T) {
	s := newSession(t, "alice", config{})
	writeFile(t, s, "/user/alice/a.txt", "a")
	writeFile(t, s, "/user/alice/b.txt", "b")
	recorder := recordSpans(t)

	entries, err := s.ListDir(context.Background(), "/user/alice")
	require.NoError(t, err)

	spans := endedSpans(recorder, telemetry.SpanDelegatePrefix+delegate.OpList)
	require.Len(t, spans, 1)
	n, ok := attrValue(spans[0].Attributes(), telemetry.AttrEntries)
	require.True(t, ok)
	assert.Equal(t, int64(len(entries)), n.AsInt64())
}
