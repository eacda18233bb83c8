package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(zap.NewNop(), Job{
		Name: "broken",
		Spec: "every now and then",
		Run:  func(context.Context) (int, error) { return 0, nil },
	})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestRunJobAppliesTimeoutAndLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewScheduler(zap.New(core))

	var deadline time.Time
	s.runJob(Job{
		Name:    "no_show_sweep",
		Timeout: time.Minute,
		Run: func(ctx context.Context) (int, error) {
			deadline, _ = ctx.Deadline()
			return 2, nil
		},
	})
	assert.False(t, deadline.IsZero())

	s.runJob(Job{
		Name: "outbox",
		Run:  func(context.Context) (int, error) { return 1, errors.New("notifier down") },
	})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Background job completed", entries[0].Message)
	assert.Equal(t, "Background job failed", entries[1].Message)
	assert.Equal(t, "outbox", entries[1].ContextMap()["job"])
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(zap.NewNop(), Job{
		Name: "reminders",
		Spec: "@every 1h",
		Run:  func(context.Context) (int, error) { return 0, nil },
	})

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}
