package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// Dispatcher implements the auto strategy. It starts the lightest engine
// first and staggers heavier ones by their escalation delay. The first
// result that passes the acceptance check wins and cancels the others.
type Dispatcher struct {
	engines []Engine
	delays  []time.Duration
	memory  *DomainMemory
	accept  AcceptFunc
}

// NewDispatcher creates a Dispatcher. engines[i] starts delays[i] after
// the race begins; missing delays are zero. accept and memory may be nil.
func NewDispatcher(engines []Engine, delays []time.Duration, memory *DomainMemory, accept AcceptFunc) *Dispatcher {
	d := make([]time.Duration, len(engines))
	copy(d, delays)
	return &Dispatcher{engines: engines, delays: d, memory: memory, accept: accept}
}

// Name identifies the dispatcher when it is used as an Engine.
func (d *Dispatcher) Name() string { return "auto" }

// Fetch runs Dispatch so a Dispatcher can stand in for an Engine.
func (d *Dispatcher) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	return d.Dispatch(ctx, req)
}

// Dispatch returns the first accepted result. When no engine produces an
// accepted page but at least one produced markup, the last rejected
// result is returned so the caller can report why it was unusable.
func (d *Dispatcher) Dispatch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	host := hostOf(req.URL)

	if remembered := d.memory.Get(host); remembered != "" {
		for _, eng := range d.engines {
			if eng.Name() != remembered {
				continue
			}
			slog.Debug("domain memory hit", "host", host, "engine", remembered)
			result, err := d.fetchAccepted(ctx, eng, req)
			if err == nil {
				return result, nil
			}
			slog.Info("remembered engine failed, running full race",
				"host", host, "engine", remembered, "error", err)
			d.memory.Forget(host)
			break
		}
	}

	return d.race(ctx, req, host)
}

type raceResult struct {
	result   *FetchResult
	rejected *FetchResult
	err      error
}

func (d *Dispatcher) race(ctx context.Context, req *FetchRequest, host string) (*FetchResult, error) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan raceResult, len(d.engines))
	var wg sync.WaitGroup

	for i, eng := range d.engines {
		wg.Add(1)
		go func(e Engine, delay time.Duration) {
			defer wg.Done()

			if delay > 0 {
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-raceCtx.Done():
					return
				case <-timer.C:
				}
			}
			if raceCtx.Err() != nil {
				return
			}

			slog.Debug("engine starting", "engine", e.Name(), "url", req.URL)
			result, err := e.Fetch(raceCtx, req)
			if err != nil {
				slog.Debug("engine failed", "engine", e.Name(), "url", req.URL, "error", err)
				results <- raceResult{err: err}
				return
			}
			if d.accept != nil {
				if aerr := d.accept(result); aerr != nil {
					slog.Debug("engine result rejected", "engine", e.Name(), "url", req.URL, "error", aerr)
					results <- raceResult{rejected: result, err: fmt.Errorf("%w: %s: %v", ErrRejected, e.Name(), aerr)}
					return
				}
			}
			results <- raceResult{result: result}
		}(eng, d.delays[i])
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var lastErr error
	var fallback *FetchResult
	for rr := range results {
		if rr.err != nil {
			lastErr = rr.err
			if rr.rejected != nil {
				fallback = rr.rejected
			}
			continue
		}
		cancel()
		slog.Info("engine won race", "engine", rr.result.EngineName, "url", req.URL)
		d.memory.Set(host, rr.result.EngineName)
		return rr.result, nil
	}

	if fallback != nil {
		return fallback, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("dispatcher: all engines failed for %s", req.URL)
	}
	return nil, lastErr
}

func (d *Dispatcher) fetchAccepted(ctx context.Context, eng Engine, req *FetchRequest) (*FetchResult, error) {
	result, err := eng.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if d.accept != nil {
		if aerr := d.accept(result); aerr != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrRejected, eng.Name(), aerr)
		}
	}
	return result, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
