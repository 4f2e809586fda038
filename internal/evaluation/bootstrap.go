package evaluation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ashgrovelabs/tutord/internal/directive"
)

// InitFunc builds a ready Service. It runs under the bootstrap lock, so it
// must not call back into the bootstrap.
type InitFunc func(ctx context.Context) (*Service, error)

// Bootstrap memoizes one initialization attempt. The first Service call
// runs init and caches the outcome, success or failure; later calls return
// the cached result without re-running anything. A failed initialization
// stays failed until Restart, so a broken deployment fails fast on every
// request instead of re-reading configs and re-dialing on each one.
type Bootstrap struct {
	mu   sync.Mutex
	init InitFunc
	svc  *Service
	err  error
	done bool
}

// NewBootstrap wraps an initialization function.
func NewBootstrap(init InitFunc) *Bootstrap {
	return &Bootstrap{init: init}
}

// Service returns the memoized service, initializing on first use.
func (b *Bootstrap) Service(ctx context.Context) (*Service, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.done {
		b.svc, b.err = b.init(ctx)
		b.done = true
	}
	return b.svc, b.err
}

// Restart discards the cached outcome and re-runs initialization.
func (b *Bootstrap) Restart(ctx context.Context) (*Service, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.svc, b.err = b.init(ctx)
	b.done = true
	return b.svc, b.err
}

// Ready reports whether a successful initialization is cached.
func (b *Bootstrap) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done && b.err == nil
}

// LoadGradingConfig returns the first grading configuration that loads and
// validates, trying each path in order. Fallback happens only across
// sources: a malformed file is recorded and the next path is tried, and if
// every source fails the joined history is the error.
func LoadGradingConfig(paths []string, contract directive.Contract) (*directive.Config, error) {
	if len(paths) == 0 {
		return nil, errors.New("no grading config paths configured")
	}

	var history []error
	for _, path := range paths {
		cfg, err := directive.LoadConfig(path, contract)
		if err != nil {
			history = append(history, err)
			continue
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("no usable grading config: %w", errors.Join(history...))
}
