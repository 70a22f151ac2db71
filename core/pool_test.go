package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWorkerPool_limitsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := NewWorkerPool(2)
	var running, maxRunning int32

	jobs := make([]*Job, 0, 6)
	for i := 0; i < 6; i++ {
		jobs = append(jobs, pool.Go(context.Background(), func(ctx context.Context) error {
			n := atomic.AddInt32(&running, 1)
			for {
				m := atomic.LoadInt32(&maxRunning)
				if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		}))
	}
	for _, j := range jobs {
		require.NoError(t, j.Wait())
	}
	pool.Close()

	assert.LessOrEqual(t, maxRunning, int32(2))
}

func TestWorkerPool_Go(t *testing.T) {
	defer goleak.VerifyNone(t)

	errBoom := errors.New("boom")
	pool := NewWorkerPool(1)

	tests := []struct {
		name    string
		fn      func(ctx context.Context) error
		wantErr string
	}{
		{name: "ok", fn: func(context.Context) error { return nil }},
		{name: "error", fn: func(context.Context) error { return errBoom }, wantErr: "boom"},
		{name: "panic", fn: func(context.Context) error { panic("lol") }, wantErr: "worker panic: lol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pool.Go(context.Background(), tt.fn).Wait()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantErr)
			}
		})
	}

	pool.Close()
	assert.Equal(t, ErrPoolClosed, pool.Go(context.Background(), noop).Wait())
}

func noop(context.Context) error { return nil }

func TestWorkerPool_cancelledWhileWaiting(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := NewWorkerPool(1)
	release := make(chan struct{})
	busy := pool.Go(context.Background(), func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pool.Go(ctx, noop).Wait()
	assert.Error(t, err)

	close(release)
	assert.NoError(t, busy.Wait())
	pool.Close()
}

func TestWorkerPool_Group(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := NewWorkerPool(4)
	defer pool.Close()

	var a, b int32
	err := pool.Group(context.Background(),
		func(context.Context) error { atomic.StoreInt32(&a, 1); return nil },
		func(context.Context) error { atomic.StoreInt32(&b, 2); return nil },
	)
	require.NoError(t, err)
	assert.Equal(t, int32(1), a)
	assert.Equal(t, int32(2), b)

	err = pool.Group(context.Background(),
		func(context.Context) error { return errors.New("first") },
		func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() },
	)
	assert.Error(t, err)
}
