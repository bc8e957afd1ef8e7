// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package chart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/vixwatch/internal/metrics"
)

// ErrPoolClosed is returned by Render after Close.
var ErrPoolClosed = errors.New("chart render pool closed")

// RenderFunc draws one chart. *Renderer.Render satisfies it.
type RenderFunc func(Request) ([]byte, error)

type job struct {
	ctx    context.Context
	req    Request
	result chan result
}

type result struct {
	png []byte
	err error
}

// Pool runs rendering on a fixed number of worker goroutines fed by a bounded
// queue. It is a suture service: workers run only while Serve runs, and a
// Render issued before Serve starts waits in the queue.
type Pool struct {
	render    RenderFunc
	workers   int
	jobs      chan job
	done      chan struct{}
	closeOnce sync.Once
	logger    zerolog.Logger
}

// NewPool creates a Pool.
func NewPool(render RenderFunc, workers, queueSize int, logger zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		render:  render,
		workers: workers,
		jobs:    make(chan job, queueSize),
		done:    make(chan struct{}),
		logger:  logger.With().Str("component", "chart-pool").Logger(),
	}
}

// String implements fmt.Stringer for suture logging.
func (p *Pool) String() string {
	return "chart-render-pool"
}

// Serve implements suture.Service.
func (p *Pool) Serve(ctx context.Context) error {
	p.logger.Info().Int("workers", p.workers).Msg("chart render pool started")

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.work(ctx)
		}()
	}
	wg.Wait()

	select {
	case <-p.done:
		p.logger.Info().Msg("chart render pool closed")
		return suture.ErrDoNotRestart
	default:
	}
	return ctx.Err()
}

func (p *Pool) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case j := <-p.jobs:
			metrics.ChartQueueDepth.Set(float64(len(p.jobs)))
			j.result <- p.run(j)
		}
	}
}

func (p *Pool) run(j job) (res result) {
	if err := j.ctx.Err(); err != nil {
		return result{err: err}
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Msg("chart render panicked")
			res = result{err: fmt.Errorf("render chart: panic: %v", r)}
		}
	}()

	start := time.Now()
	png, err := p.render(j.req)
	metrics.RecordChartRender(time.Since(start))
	return result{png: png, err: err}
}

// Render queues req and waits for a worker to finish it or for ctx to end.
// A result that arrives after ctx ended is discarded.
func (p *Pool) Render(ctx context.Context, req Request) ([]byte, error) {
	select {
	case <-p.done:
		return nil, ErrPoolClosed
	default:
	}

	j := job{ctx: ctx, req: req, result: make(chan result, 1)}
	select {
	case p.jobs <- j:
		metrics.ChartQueueDepth.Set(float64(len(p.jobs)))
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("queue chart render: %w", ctx.Err())
	}

	select {
	case res := <-j.result:
		return res.png, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for chart render: %w", ctx.Err())
	}
}

// Close stops the workers and rejects further renders. Safe to call more
// than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}
