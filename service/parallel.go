package service

import (
	"context"
	"sync"
)

// orderedMap calls fn for every input with at most limit calls in flight and
// returns the results in input order. The first error cancels the context seen
// by the remaining calls and is returned without partial results.
func orderedMap[T, R any](ctx context.Context, limit int, inputs []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(inputs))
	if len(inputs) == 0 {
		return results, nil
	}
	if limit <= 0 || limit > len(inputs) {
		limit = len(inputs)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	indexCh := make(chan int)
	for w := 0; w < limit; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexCh {
				result, err := fn(runCtx, inputs[i])
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					continue
				}
				results[i] = result
			}
		}()
	}

feed:
	for i := range inputs {
		select {
		case indexCh <- i:
		case <-runCtx.Done():
			break feed
		}
	}
	close(indexCh)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
