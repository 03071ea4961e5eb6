package workpool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRun_CollectsByIndex(t *testing.T) {
	for _, workers := range []int{0, 1, 4} {
		out := make([]int, 10)
		errs := Run(context.Background(), workers, len(out), func(_ context.Context, i int) error {
			out[i] = i * i
			if i == 3 {
				return errors.New("three")
			}
			return nil
		}, quiet())

		require.Len(t, errs, 10)
		for i, err := range errs {
			if i == 3 {
				assert.EqualError(t, err, "three")
				continue
			}
			assert.NoError(t, err)
			assert.Equal(t, i*i, out[i])
		}
	}
}

func TestRun_BoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{}, 8)

	done := make(chan []error)
	go func() {
		done <- Run(context.Background(), 2, 8, func(_ context.Context, _ int) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			started <- struct{}{}
			<-release
			running.Add(-1)
			return nil
		}, quiet())
	}()

	<-started
	<-started
	close(release)
	errs := <-done

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRun_RecoversPanics(t *testing.T) {
	errs := Run(context.Background(), 2, 3, func(_ context.Context, i int) error {
		if i == 1 {
			panic("boom")
		}
		return nil
	}, quiet())

	assert.NoError(t, errs[0])
	require.Error(t, errs[1])
	assert.Contains(t, errs[1].Error(), "boom")
	assert.NoError(t, errs[2])
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	errs := Run(ctx, 4, 5, func(context.Context, int) error {
		calls.Add(1)
		return nil
	}, quiet())

	assert.Equal(t, int32(0), calls.Load())
	for _, err := range errs {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
