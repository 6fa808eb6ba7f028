package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/driveingest/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_ReportsAndNotifiesChanges(t *testing.T) {
	p := NewMonitor(time.Hour, time.Second, logging.Nop())
	assert.ErrorIs(t, p.Check(context.Background()), ErrNotChecked)

	var redisErr error
	p.Register("postgres", func(context.Context) error { return nil })
	p.Register("redis", func(context.Context) error { return redisErr })

	var seen []error
	p.OnChange(func(err error) { seen = append(seen, err) })

	require.NoError(t, p.RunOnce(context.Background()))
	assert.NoError(t, p.Check(context.Background()))

	redisErr = errors.New("connection refused")
	err := p.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: connection refused")
	assert.ErrorIs(t, p.Check(context.Background()), redisErr)

	// Same outcome, no notification.
	_ = p.RunOnce(context.Background())

	require.Len(t, seen, 2)
	assert.NoError(t, seen[0])
	assert.Error(t, seen[1])
}

func TestMonitor_CheckTimeout(t *testing.T) {
	p := NewMonitor(time.Hour, 10*time.Millisecond, logging.Nop())
	p.Register("s3", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, p.RunOnce(context.Background()), context.DeadlineExceeded)
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	p := NewMonitor(5*time.Millisecond, time.Second, logging.Nop())
	calls := make(chan struct{}, 16)
	p.Register("x", func(context.Context) error {
		select {
		case calls <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	<-calls
	<-calls
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
