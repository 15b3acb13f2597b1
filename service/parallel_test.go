package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOrderedMapPreservesOrder(t *testing.T) {
	inputs := make([]int, 100)
	for i := range inputs {
		inputs[i] = i
	}

	out, err := orderedMap(context.Background(), 7, inputs, func(_ context.Context, v int) (int, error) {
		time.Sleep(time.Duration(v%3) * time.Millisecond)
		return v * v, nil
	})
	require.NoError(t, err)
	for i, v := range out {
		require.Equal(t, i*i, v)
	}
}

func TestOrderedMapRespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	inputs := make([]int, 50)

	_, err := orderedMap(context.Background(), 3, inputs, func(_ context.Context, _ int) (struct{}, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		return struct{}{}, nil
	})
	require.NoError(t, err)
	require.LessOrEqual(t, peak.Load(), int32(3))
}

func TestOrderedMapEmpty(t *testing.T) {
	out, err := orderedMap(context.Background(), 4, []int(nil), func(context.Context, int) (int, error) {
		t.Fatal("fn must not be called")
		return 0, nil
	})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestOrderedMapFirstErrorCancels(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	inputs := make([]int, 1000)
	for i := range inputs {
		inputs[i] = i
	}

	out, err := orderedMap(context.Background(), 2, inputs, func(ctx context.Context, v int) (int, error) {
		calls.Add(1)
		if v == 3 {
			return 0, boom
		}
		return v, ctx.Err()
	})
	require.ErrorIs(t, err, boom)
	require.Nil(t, out)
	require.Less(t, calls.Load(), int32(len(inputs)))
}

func TestOrderedMapParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orderedMap(ctx, 2, []int{1, 2, 3}, func(context.Context, int) (int, error) {
		return 0, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
