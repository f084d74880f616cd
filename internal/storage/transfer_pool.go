package storage

import (
	"context"
	"fmt"
	"sync"
)

const maxTransferWorkers = 8

type transferResult struct {
	key string
	err error
}

// runTransfers applies transfer to every object with at most maxWorkers in
// flight. All transfers are attempted; the returned error names the first
// failure and how many failed in total.
func runTransfers(ctx context.Context, objects []Object, transfer func(context.Context, Object) error, maxWorkers int) error {
	if len(objects) == 0 {
		return nil
	}

	queue := make(chan Object, len(objects))
	for _, obj := range objects {
		queue <- obj
	}
	close(queue)

	completed := make(chan transferResult, len(objects))
	workers := min(len(objects), maxWorkers)

	wg := sync.WaitGroup{}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()

			for obj := range queue {
				if err := ctx.Err(); err != nil {
					completed <- transferResult{key: obj.Name, err: err}
					continue
				}
				completed <- transferResult{key: obj.Name, err: transfer(ctx, obj)}
			}
		}()
	}

	wg.Wait()
	close(completed)

	var firstErr error
	failed := 0
	for res := range completed {
		if res.err != nil {
			failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("transfer of %s failed: %w", res.key, res.err)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d transfers failed: %w", failed, len(objects), firstErr)
	}
	return nil
}
