// Package utils holds small concurrency helpers used by the long-running
// commands.
package utils //nolint:revive // var-naming: utils is an acceptable package name for shared utilities

import (
	"context"
	"sync"
)

// Go runs fn on its own goroutine and delivers its result, if non-nil, on
// the returned channel, which is closed when fn returns.
func Go(fn func() error) chan error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		if err := fn(); err != nil {
			ch <- err
		}
	}()
	return ch
}

// MergeErrorChans fans every input into one channel that closes once all
// inputs are closed.
func MergeErrorChans(channels ...chan error) chan error {
	out := make(chan error)
	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for err := range ch {
				out <- err
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// FirstError waits for the first error on errs or for ctx to end. It returns
// nil when errs closes without an error.
func FirstError(ctx context.Context, errs chan error) error {
	select {
	case err, ok := <-errs:
		if !ok {
			return nil
		}
		return err
	case <-ctx.Done():
		return nil
	}
}
