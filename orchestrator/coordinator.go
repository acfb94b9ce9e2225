// Package orchestrator runs work items through a worker pool and releases the
// results to a sequential sink in index order.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"timelapse/metrics"
	"timelapse/models"
	"timelapse/sink"
	"timelapse/transform"
)

// Defaults for a Coordinator.
const (
	DefaultPollInterval   = time.Second
	DefaultProgressPeriod = time.Second
	UnboundedLookahead    = -1
)

// Coordinator drives one ordered run: it submits items to a pool, buffers
// results that arrive early, and hands frames to the sink strictly by index.
//
// All run state lives in the goroutine calling Run. Workers only post
// results on the pool's completion channel.
type Coordinator struct {
	poolSize       int
	lookahead      int
	pollInterval   time.Duration
	progress       models.ProgressCallback
	progressPeriod time.Duration
	newPool        PoolFactory

	logger  *zap.Logger
	metrics *metrics.Collector

	state *models.PipelineState
}

// NewCoordinator creates a coordinator that transforms items with t on
// poolSize workers. The lookahead defaults to twice the pool size.
func NewCoordinator(t transform.Transformer, poolSize int) *Coordinator {
	if poolSize < 1 {
		poolSize = 1
	}
	return &Coordinator{
		poolSize:       poolSize,
		lookahead:      2 * poolSize,
		pollInterval:   DefaultPollInterval,
		progressPeriod: DefaultProgressPeriod,
		newPool: func(size int) Pool {
			return NewTransformPool(t, size)
		},
		logger: zap.NewNop(),
	}
}

// SetProgressCallback sets a callback receiving the completion percentage,
// invoked at most once per period. A zero period reports every iteration.
func (c *Coordinator) SetProgressCallback(callback models.ProgressCallback, period time.Duration) *Coordinator {
	c.progress = callback
	if period < 0 {
		period = 0
	}
	c.progressPeriod = period
	return c
}

// SetLookahead limits how many items may be submitted beyond those the
// workers hold. UnboundedLookahead (any negative value) removes the limit.
func (c *Coordinator) SetLookahead(n int) *Coordinator {
	c.lookahead = n
	return c
}

// SetPollInterval sets how long the coordinator waits for a completion
// before checking pool health.
func (c *Coordinator) SetPollInterval(d time.Duration) *Coordinator {
	if d > 0 {
		c.pollInterval = d
	}
	return c
}

// SetPoolFactory replaces the default TransformPool.
func (c *Coordinator) SetPoolFactory(factory PoolFactory) *Coordinator {
	c.newPool = factory
	return c
}

// SetLogger sets the logger
func (c *Coordinator) SetLogger(logger *zap.Logger) *Coordinator {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// SetMetrics sets the metrics collector
func (c *Coordinator) SetMetrics(m *metrics.Collector) *Coordinator {
	c.metrics = m
	return c
}

// State returns the state of the most recent run.
func (c *Coordinator) State() *models.PipelineState {
	return c.state
}

// Run transforms every item and releases the frames to out in index order.
// items[i] must carry index i. On success out.Finalize has been called; on
// failure out.Abort has been called and the error says why.
func (c *Coordinator) Run(ctx context.Context, items []models.WorkItem, out sink.Sink) error {
	n := len(items)
	if n == 0 {
		return models.ErrNoMatchingInputs
	}
	for i, item := range items {
		if item.Index() != i {
			return fmt.Errorf("work item at position %d has index %d", i, item.Index())
		}
	}

	state := models.NewPipelineState(n)
	c.state = state

	workers := min(c.poolSize, n)
	pool := c.newPool(workers)
	defer pool.Shutdown()

	var slots *semaphore.Weighted
	if c.lookahead >= 0 {
		slots = semaphore.NewWeighted(int64(workers + c.lookahead))
	}

	c.logger.Info("Starting run",
		zap.Int("frames", n),
		zap.Int("workers", workers),
		zap.Int("lookahead", c.lookahead))

	runCtx, cancel := context.WithCancel(ctx)
	var submitted atomic.Int64
	var wg sync.WaitGroup
	submitErr := make(chan error, 1)

	wg.Add(1)
	go func(errc chan<- error) {
		defer wg.Done()
		errc <- submitAll(runCtx, pool, items, slots, &submitted)
	}(submitErr)
	defer wg.Wait()
	defer cancel()

	fail := func(err error) error {
		state.Failure = err
		cancel()
		out.Abort()
		c.metrics.RunFinished(metrics.StatusFailed, time.Since(state.StartTime))
		c.logger.Error("Run failed",
			zap.Int("released", state.Cursor),
			zap.Int("completed", state.Completed),
			zap.Error(err))
		return err
	}

	buffer := make(map[int]models.TransformResult)
	completions := pool.Completions()
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("run cancelled: %w", err))
		}

		for {
			res, ok := buffer[state.Cursor]
			if !ok {
				break
			}
			delete(buffer, state.Cursor)
			if err := c.release(out, res, state.Cursor == 0); err != nil {
				return fail(err)
			}
			state.Cursor++
			if slots != nil {
				slots.Release(1)
			}
			c.metrics.FrameReleased()
		}
		state.ObserveBuffered(len(buffer))
		c.metrics.SetBuffered(state.Buffered, state.BufferedPeak)
		c.metrics.SetInFlight(int(submitted.Load()) - state.Completed)

		if state.Done() {
			break
		}

		timer.Reset(c.pollInterval)
		select {
		case res := <-completions:
			state.Completed++
			c.metrics.FrameCompleted()
			if res.Failed() {
				c.metrics.FrameFailed()
				return fail(fmt.Errorf("%w: frame %03d: %w", models.ErrWorkerFailure, res.Index, res.Err))
			}
			if res.Index < state.Cursor || res.Index >= n {
				return fail(fmt.Errorf("%w: result index %d outside [%d, %d)", models.ErrWorkerFailure, res.Index, state.Cursor, n))
			}
			if _, dup := buffer[res.Index]; dup {
				return fail(fmt.Errorf("%w: duplicate result for frame %03d", models.ErrWorkerFailure, res.Index))
			}
			buffer[res.Index] = res

		case err := <-submitErr:
			submitErr = nil
			if err != nil {
				if ctx.Err() != nil {
					return fail(fmt.Errorf("run cancelled: %w", ctx.Err()))
				}
				return fail(fmt.Errorf("%w: submitting work: %w", models.ErrWorkerFailure, err))
			}

		case <-timer.C:
			if err := pool.Failure(); err != nil {
				return fail(fmt.Errorf("%w: pool failure: %w", models.ErrWorkerFailure, err))
			}
			c.logger.Debug("Waiting for frames", zap.String("state", state.FormatSummary()))

		case <-ctx.Done():
			return fail(fmt.Errorf("run cancelled: %w", ctx.Err()))
		}

		c.reportProgress(state)
	}

	if err := out.Finalize(); err != nil {
		state.Failure = err
		c.metrics.RunFinished(metrics.StatusFailed, time.Since(state.StartTime))
		return fmt.Errorf("finalizing output: %w", err)
	}

	c.metrics.RunFinished(metrics.StatusSuccess, time.Since(state.StartTime))
	c.logger.Info("Run completed",
		zap.Int("frames", n),
		zap.Int("buffered_peak", state.BufferedPeak),
		zap.Duration("elapsed", time.Since(state.StartTime)))
	return nil
}

// release hands one frame to the sink, initializing it from the first frame.
func (c *Coordinator) release(out sink.Sink, res models.TransformResult, first bool) error {
	if first {
		w, h := res.Size()
		if err := out.Initialize(w, h); err != nil {
			return fmt.Errorf("initializing sink at %dx%d: %w", w, h, err)
		}
		c.logger.Debug("Sink initialized", zap.Int("width", w), zap.Int("height", h))
	}
	if err := out.Accept(res.Frame); err != nil {
		return fmt.Errorf("frame %03d: %w", res.Index, err)
	}
	return nil
}

func (c *Coordinator) reportProgress(state *models.PipelineState) {
	if c.progress == nil {
		return
	}
	now := time.Now()
	if now.Sub(state.LastProgress) < c.progressPeriod {
		return
	}
	state.LastProgress = now
	state.LastPercent = state.Percent()
	c.progress(state.LastPercent)
}

// submitAll feeds items to the pool in index order, taking one slot per item
// when slots is non-nil.
func submitAll(ctx context.Context, pool Pool, items []models.WorkItem, slots *semaphore.Weighted, submitted *atomic.Int64) error {
	for _, item := range items {
		if slots != nil {
			if err := slots.Acquire(ctx, 1); err != nil {
				return err
			}
		}
		if err := pool.Submit(ctx, item); err != nil {
			return err
		}
		submitted.Add(1)
	}
	return nil
}
