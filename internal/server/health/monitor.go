// Package health tracks whether the gateway's dependencies are reachable.
package health

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/driveingest/internal/logging"
)

// ErrNotChecked is reported until the first check round completes.
var ErrNotChecked = errors.New("dependencies not checked yet")

// Check reports an unreachable dependency by returning an error.
type Check func(ctx context.Context) error

// Monitor periodically runs every registered check and remembers the result.
type Monitor struct {
	interval time.Duration
	timeout  time.Duration
	logger   logging.Logger

	mu        sync.RWMutex
	checks    map[string]Check
	listeners []func(error)
	last      error
}

func NewMonitor(interval, timeout time.Duration, logger logging.Logger) *Monitor {
	return &Monitor{
		interval: interval,
		timeout:  timeout,
		logger:   logger.With("module", "health"),
		checks:   map[string]Check{},
		last:     ErrNotChecked,
	}
}

// Register adds a named check. It must be called before Run.
func (p *Monitor) Register(name string, c Check) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks[name] = c
}

// OnChange registers fn to be called with the result of every check round
// whose outcome differs from the previous one.
func (p *Monitor) OnChange(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Check returns the result of the latest check round.
func (p *Monitor) Check(context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Run checks immediately and then every interval until ctx is done.
func (p *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce runs every check once, in name order.
func (p *Monitor) RunOnce(ctx context.Context) error {
	p.mu.RLock()
	checks := make(map[string]Check, len(p.checks))
	names := make([]string, 0, len(p.checks))
	for name, c := range p.checks {
		checks[name] = c
		names = append(names, name)
	}
	p.mu.RUnlock()
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, p.timeout)
		err := checks[name](cctx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	result := errors.Join(errs...)

	p.mu.Lock()
	changed := (result == nil) != (p.last == nil)
	p.last = result
	listeners := append([]func(error){}, p.listeners...)
	p.mu.Unlock()

	if changed {
		if result != nil {
			p.logger.Warn(ctx, "dependencies unhealthy", "error", result)
		} else {
			p.logger.Info(ctx, "dependencies healthy")
		}
		for _, fn := range listeners {
			fn(result)
		}
	}
	return result
}
