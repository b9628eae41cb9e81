package pipeline

import (
	"context"
	"errors"
	"sync"
)

type indexed[T any] struct {
	seq int
	val T
	err error
}

// OrderedParallel applies fn to each value with up to n concurrent
// workers and yields the results in input order. The first failure
// cancels the context passed to the other workers; the iterator returns
// that failure when it reaches it in order, even if an earlier value was
// interrupted by the cancellation.
func OrderedParallel[I, O any](p *Pipeline[I], n int, fn func(context.Context, I) (O, error)) *Pipeline[O] {
	if n <= 0 {
		n = 1
	}
	return &Pipeline[O]{
		create: func(ctx context.Context) Iterator[O] {
			source := p.create(ctx)
			workerCtx, cancel := context.WithCancel(ctx)
			in := make(chan indexed[I], n)
			out := make(chan indexed[O], n)
			it := &orderedIter[O]{
				results: out,
				pending: make(map[int]indexed[O]),
				cancel:  cancel,
				source:  source,
			}

			go func() {
				defer close(in)
				for seq := 0; ; seq++ {
					val, ok, err := source.Next(workerCtx)
					if err != nil {
						it.fail(err)
						select {
						case out <- indexed[O]{seq: seq, err: err}:
						case <-workerCtx.Done():
						}
						return
					}
					if !ok {
						return
					}
					select {
					case in <- indexed[I]{seq: seq, val: val}:
					case <-workerCtx.Done():
						return
					}
				}
			}()

			var wg sync.WaitGroup
			for range n {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for job := range in {
						res := indexed[O]{seq: job.seq}
						if err := workerCtx.Err(); err != nil {
							res.err = err
						} else {
							res.val, res.err = fn(workerCtx, job.val)
						}
						if res.err != nil {
							it.fail(res.err)
						}
						// Close drains out, so this send cannot block forever.
						out <- res
					}
				}()
			}

			go func() {
				wg.Wait()
				close(out)
			}()

			return it
		},
	}
}

type orderedIter[O any] struct {
	results <-chan indexed[O]
	pending map[int]indexed[O]
	next    int
	cancel  context.CancelFunc
	source  interface{ Close() error }

	mu    sync.Mutex
	cause error
}

// fail records the first error and stops the remaining work.
func (it *orderedIter[O]) fail(err error) {
	it.mu.Lock()
	if it.cause == nil {
		it.cause = err
	}
	it.mu.Unlock()
	it.cancel()
}

func (it *orderedIter[O]) firstCause() error {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.cause
}

func (it *orderedIter[O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	for {
		if res, ok := it.pending[it.next]; ok {
			delete(it.pending, it.next)
			it.next++
			if res.err != nil {
				return zero, false, it.resolve(res.err)
			}
			return res.val, true, nil
		}

		select {
		case res, open := <-it.results:
			if !open {
				if cause := it.firstCause(); cause != nil {
					return zero, false, cause
				}
				return zero, false, nil
			}
			it.pending[res.seq] = res
		case <-ctx.Done():
			return zero, false, ctx.Err()
		}
	}
}

// resolve replaces a cancellation caused by another worker's failure with
// that failure.
func (it *orderedIter[O]) resolve(err error) error {
	if !errors.Is(err, context.Canceled) {
		return err
	}
	if cause := it.firstCause(); cause != nil {
		return cause
	}
	return err
}

func (it *orderedIter[O]) Close() error {
	it.cancel()
	// Drain so blocked workers can exit.
	go func() {
		for range it.results {
		}
	}()
	return it.source.Close()
}
