package pipeline

import "sync"

// runOrdered fans fn out over items with at most limit workers and returns
// the results in input order. Sources share no mutable state, so sequential
// and concurrent execution produce identical results.
func runOrdered[T any, R any](items []T, limit int, fn func(T) R) []R {
	if len(items) == 0 {
		return nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > len(items) {
		limit = len(items)
	}

	sem := make(chan struct{}, limit)
	results := make([]R, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = fn(item)
		}(i, item)
	}
	wg.Wait()
	return results
}
