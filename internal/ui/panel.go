package ui

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/i474232898/city-weather/internal/metrics"
	"github.com/i474232898/city-weather/internal/weather"
)

var (
	// ErrClosed is returned by Wait once the panel has been closed.
	ErrClosed = errors.New("panel closed")
	// ErrNotMounted is returned by Wait before the first Mount.
	ErrNotMounted = errors.New("panel not mounted")
)

// Fetcher retrieves a report for one location. *weather.Service implements it.
type Fetcher interface {
	Fetch(ctx context.Context, loc weather.Location) (weather.Report, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, loc weather.Location) (weather.Report, error)

func (f FetcherFunc) Fetch(ctx context.Context, loc weather.Location) (weather.Report, error) {
	return f(ctx, loc)
}

// Panel shows the weather for one location at a time. Every Mount starts a
// new generation; a fetch result is applied only if its generation is still
// current when it arrives.
type Panel struct {
	fetcher Fetcher
	timeout time.Duration

	mu     sync.Mutex
	gen    uint64
	loc    weather.Location
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	closed bool

	inflight sync.WaitGroup
}

// NewPanel creates an unmounted panel. timeout bounds each fetch; zero means no bound.
func NewPanel(fetcher Fetcher, timeout time.Duration) *Panel {
	return &Panel{
		fetcher: fetcher,
		timeout: timeout,
		state:   Loading{},
	}
}

// Mount discards whatever the panel shows, cancels any outstanding fetch and
// issues exactly one fetch for loc. It returns the new generation, or
// ErrClosed without fetching once the panel has been closed.
func (p *Panel) Mount(loc weather.Location) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return p.gen, ErrClosed
	}
	if p.cancel != nil {
		p.cancel()
	}

	p.gen++
	gen := p.gen
	p.loc = loc
	p.state = Loading{}
	metrics.PanelTransitions.WithLabelValues(p.state.Name()).Inc()

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if p.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), p.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	p.inflight.Add(1)
	go p.run(ctx, cancel, gen, loc, done)

	return gen, nil
}

func (p *Panel) run(ctx context.Context, cancel context.CancelFunc, gen uint64, loc weather.Location, done chan struct{}) {
	defer p.inflight.Done()
	defer close(done)
	defer cancel()

	report, err := p.fetcher.Fetch(ctx, loc)

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen {
		metrics.StaleResultsDiscarded.Inc()
		log.Printf("DEBUG: discarding stale result for %s (generation %d, current %d)", loc.Key(), gen, p.gen)
		return
	}

	if err != nil {
		p.state = failedFrom(err)
		log.Printf("INFO: weather fetch for %s failed: %v", loc.Key(), err)
	} else {
		p.state = Loaded{Report: report}
	}
	metrics.PanelTransitions.WithLabelValues(p.state.Name()).Inc()
}

// State returns the mounted location and what the panel currently shows.
func (p *Panel) State() (weather.Location, State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loc, p.state
}

func (p *Panel) snapshot() (weather.Location, State, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loc, p.state, p.gen
}

// Generation returns the current generation token.
func (p *Panel) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

// Wait blocks until the current generation has settled into Loaded or Failed
// and returns that state. A Mount during the wait moves the target to the new
// generation.
func (p *Panel) Wait(ctx context.Context) (State, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrClosed
		}
		if p.done == nil {
			p.mu.Unlock()
			return nil, ErrNotMounted
		}
		gen, done := p.gen, p.done
		p.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		p.mu.Lock()
		if p.gen == gen && !p.closed {
			st := p.state
			p.mu.Unlock()
			return st, nil
		}
		p.mu.Unlock()
	}
}

// Close invalidates the current generation, cancels the outstanding fetch and
// waits for every fetch goroutine to return. The panel ignores later Mounts.
func (p *Panel) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.inflight.Wait()
		return
	}
	p.closed = true
	p.gen++
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	p.inflight.Wait()
}
