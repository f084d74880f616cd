package storage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testObjects(n int) []Object {
	objects := make([]Object, 0, n)
	for i := 0; i < n; i++ {
		objects = append(objects, Object{Name: fmt.Sprintf("mnist/part-%d", i), Size: int64(i)})
	}
	return objects
}

func TestRunTransfers(t *testing.T) {
	var done, inFlight, peak atomic.Int32
	transfer := func(ctx context.Context, obj Object) error {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		done.Add(1)
		return nil
	}

	require.NoError(t, runTransfers(context.Background(), testObjects(20), transfer, 3))
	assert.Equal(t, int32(20), done.Load())
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRunTransfersReportsFailures(t *testing.T) {
	errBoom := errors.New("boom")
	var attempted atomic.Int32
	transfer := func(ctx context.Context, obj Object) error {
		attempted.Add(1)
		if obj.Size%4 == 3 {
			return errBoom
		}
		return nil
	}

	err := runTransfers(context.Background(), testObjects(10), transfer, 5)
	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "2 of 10 transfers failed")
	assert.Equal(t, int32(10), attempted.Load())
}

func TestRunTransfersCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runTransfers(ctx, testObjects(4), func(context.Context, Object) error { return nil }, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunTransfersEmpty(t *testing.T) {
	assert.NoError(t, runTransfers(context.Background(), nil, nil, 4))
}
