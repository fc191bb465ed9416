package telemetry

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", false)

	logger.Info().Msg("quiet")
	logger.Warn().Msg("loud")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, `"message":"loud"`)
	assert.Contains(t, out, `"time"`)
}

func TestNewLoggerUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "chatty", false)

	logger.Debug().Msg("debug")
	logger.Info().Msg("info")

	assert.NotContains(t, buf.String(), `"message":"debug"`)
	assert.Contains(t, buf.String(), `"message":"info"`)
}

func TestNewSentryReporterWithoutDSN(t *testing.T) {
	r := NewSentryReporter(SentryConfig{}, zerolog.Nop())
	_, ok := r.(NopReporter)
	assert.True(t, ok)
	assert.True(t, r.Flush(time.Millisecond))
}

func TestSentryReporterTagsEvent(t *testing.T) {
	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			events = append(events, event)
			mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)

	r := newSentryReporter(client)
	r.Report("login", errors.New("redis: connection refused"), map[string]string{
		"request_id": "req-1",
		"empty":      "",
	})
	r.Report("login", nil, nil)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, "login", events[0].Tags["operation"])
	assert.Equal(t, "req-1", events[0].Tags["request_id"])
	assert.NotContains(t, events[0].Tags, "empty")
	assert.Equal(t, sentry.LevelError, events[0].Level)
}
