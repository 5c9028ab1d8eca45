package offload

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ReturnsValueAndError(t *testing.T) {
	p := New(2)
	defer p.Close()

	got, err := Run(context.Background(), p, func() (string, error) {
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", got)

	boom := errors.New("boom")
	_, err = Run(context.Background(), p, func() (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	var ee *ExecError
	assert.False(t, errors.As(err, &ee), "fn errors must not be reported as ExecError")
}

func TestRun_PanicBecomesExecError(t *testing.T) {
	p := New(1)
	defer p.Close()

	_, err := Run(context.Background(), p, func() (int, error) {
		panic("picker exploded")
	})
	require.Error(t, err)

	var ee *ExecError
	require.True(t, errors.As(err, &ee))
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "picker exploded", pe.Value)
	assert.NotEmpty(t, pe.Stack)

	// The slot must be released after a panic.
	got, err := Run(context.Background(), p, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestSubmit_BoundsConcurrency(t *testing.T) {
	p := New(2)
	defer p.Close()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Run(context.Background(), p, func() (struct{}, error) {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return struct{}{}, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestSubmit_ContextDoneBeforeSlot(t *testing.T) {
	p := New(1)
	defer p.Close()

	block := make(chan struct{})
	first, err := p.Submit(context.Background(), func() error {
		<-block
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var ran atomic.Bool
	_, err = Run(ctx, p, func() (int, error) {
		ran.Store(true)
		return 1, nil
	})
	require.Error(t, err)
	var ee *ExecError
	assert.True(t, errors.As(err, &ee))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran.Load(), "unscheduled work must not run")

	close(block)
	require.NoError(t, first.Wait())
}

func TestTask_RunsToCompletionAfterCallerContextEnds(t *testing.T) {
	p := New(1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var finished atomic.Bool
	task, err := p.Submit(ctx, func() error {
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
		return nil
	})
	require.NoError(t, err)
	cancel()

	require.NoError(t, task.Wait())
	assert.True(t, finished.Load())
}

func TestClose_RejectsNewWork(t *testing.T) {
	p := New(1)
	p.Close()

	_, err := p.Submit(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}
