package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/collabtask/internal/api"
)

func next(t *testing.T, p *Poller) SyncResultMsg {
	t.Helper()
	select {
	case msg := <-p.Results():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
		return SyncResultMsg{}
	}
}

func TestPoller_RunsImmediatelyAndOnDemand(t *testing.T) {
	var runs atomic.Int32
	p := New()
	p.Register(Job{Name: "notifications", Interval: time.Hour, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})

	cmd := p.Start()
	require.NotNil(t, cmd)
	defer p.Stop()

	msg, ok := cmd().(SyncResultMsg)
	require.True(t, ok)
	assert.Equal(t, "notifications", msg.Job)
	assert.NoError(t, msg.Error)

	p.Refresh("notifications")
	next(t, p)
	p.RefreshAll()
	next(t, p)

	assert.Equal(t, int32(3), runs.Load())
	assert.Nil(t, p.Start(), "a second Start is a no-op")

	statuses := p.GetStatuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, SyncIdle, statuses[0].State)
	assert.False(t, statuses[0].LastSync.IsZero())
}

func TestPoller_TicksOnInterval(t *testing.T) {
	var runs atomic.Int32
	p := New()
	p.Register(Job{Name: "board", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})
	p.Start()
	defer p.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, time.Millisecond)
}

func TestPoller_ErrorsAreReported(t *testing.T) {
	p := New()
	p.Register(Job{Name: "board", Interval: time.Hour, Run: func(context.Context) error {
		return errors.New("backend down")
	}})
	p.Register(Job{Name: "activity", Interval: time.Hour, Run: func(context.Context) error {
		return nil
	}})
	p.Start()
	defer p.Stop()

	got := map[string]error{}
	for i := 0; i < 2; i++ {
		msg := next(t, p)
		got[msg.Job] = msg.Error
	}
	assert.EqualError(t, got["board"], "backend down")
	assert.NoError(t, got["activity"])

	statuses := p.GetStatuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "activity", statuses[0].Job)
	assert.Equal(t, SyncError, statuses[1].State)
}

func TestPoller_SessionExpiryPausesUntilResume(t *testing.T) {
	var runs atomic.Int32
	expired := &api.SessionExpiredError{Cause: errors.New("refresh rejected")}
	p := New()
	p.Register(Job{Name: "notifications", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		runs.Add(1)
		return fmt.Errorf("fetching notifications: %w", expired)
	}})
	p.Start()
	defer p.Stop()

	msg := next(t, p)
	assert.True(t, msg.SessionExpired)
	assert.Equal(t, SyncPaused, p.GetStatuses()[0].State)

	// Ticks are skipped while paused.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	p.Resume()
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, time.Millisecond)
}

func TestPoller_StopCancelsRunningJobs(t *testing.T) {
	started := make(chan struct{})
	p := New(WithTimeout(time.Minute))
	p.Register(Job{Name: "slow", Interval: time.Hour, Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}})
	p.Start()
	<-started

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, SyncIdle, p.GetStatuses()[0].State)
}
