package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"timelapse/models"
	"timelapse/transform"
)

// Pool executes work items concurrently and reports results in completion
// order on a single channel.
type Pool interface {
	// Submit queues one item. It blocks until a worker accepts it, the pool
	// fails, or ctx is done.
	Submit(ctx context.Context, item models.WorkItem) error
	// Completions delivers one result per accepted item.
	Completions() <-chan models.TransformResult
	// Failure returns a non-nil error once the pool itself is broken.
	Failure() error
	// Shutdown stops the workers and waits for them to exit. Results still
	// in flight are discarded.
	Shutdown()
}

// PoolFactory creates a pool with the given number of workers.
type PoolFactory func(size int) Pool

// TransformPool runs a fixed number of workers that apply a Transformer.
type TransformPool struct {
	transformer transform.Transformer
	size        int

	queue   chan models.WorkItem
	results chan models.TransformResult

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	failure error
	once    sync.Once
}

// NewTransformPool starts size workers (at least one) applying t.
func NewTransformPool(t transform.Transformer, size int) *TransformPool {
	if size < 1 {
		size = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &TransformPool{
		transformer: t,
		size:        size,
		queue:       make(chan models.WorkItem),
		results:     make(chan models.TransformResult, size),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < size; i++ {
		g.Go(func() error {
			return p.worker(gctx)
		})
	}

	go func() {
		if err := g.Wait(); err != nil {
			p.setFailure(err)
		}
		close(p.done)
	}()

	return p
}

// Size returns the number of workers.
func (p *TransformPool) Size() int {
	return p.size
}

func (p *TransformPool) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case item := <-p.queue:
			result, err := p.run(item)
			select {
			case p.results <- result:
			case <-ctx.Done():
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}

// run applies the transformer. A panic is converted into a failed result
// and also returned so the pool records it as broken.
func (p *TransformPool) run(item models.WorkItem) (result models.TransformResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic on frame %03d: %v\n%s", item.Index(), r, debug.Stack())
			result = models.NewTransformFailure(item.Index(), fmt.Errorf("worker panic: %v", r))
		}
	}()
	return p.transformer.Transform(item), nil
}

// Submit implements Pool.
func (p *TransformPool) Submit(ctx context.Context, item models.WorkItem) error {
	select {
	case p.queue <- item:
		return nil
	case <-p.done:
		if err := p.Failure(); err != nil {
			return err
		}
		return fmt.Errorf("pool is shut down")
	case <-p.ctx.Done():
		return fmt.Errorf("pool is shut down")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Completions implements Pool.
func (p *TransformPool) Completions() <-chan models.TransformResult {
	return p.results
}

// Failure implements Pool.
func (p *TransformPool) Failure() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failure
}

func (p *TransformPool) setFailure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failure == nil {
		p.failure = err
	}
}

// Shutdown implements Pool. It is safe to call more than once.
func (p *TransformPool) Shutdown() {
	p.once.Do(p.cancel)
	<-p.done
}

var _ Pool = (*TransformPool)(nil)
