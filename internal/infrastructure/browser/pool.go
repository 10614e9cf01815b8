package browser

import (
	"context"
	"fmt"
	"sync"

	"glint/internal/shared/logger"
)

// PageLease is an exclusive claim on a pooled rendering context. A lease is
// held by exactly one in-flight render and returned to the pool afterwards
// so context creation cost is amortized across requests with equal options.
type PageLease struct {
	page        Page
	fingerprint string
	inUse       bool
}

// Page returns the leased rendering context.
func (l *PageLease) Page() Page {
	return l.page
}

// PagePool manages reusable rendering contexts keyed by option fingerprint.
// The pool never shrinks on its own: released leases stay alive for the
// process lifetime, trading memory for render latency. Broken leases are
// discarded explicitly and never handed out again.
type PagePool struct {
	runtime Runtime
	logger  logger.Interface

	mu     sync.Mutex
	leases []*PageLease
}

// NewPagePool creates a pool on top of the given runtime.
func NewPagePool(runtime Runtime, log logger.Interface) *PagePool {
	return &PagePool{
		runtime: runtime,
		logger:  log,
	}
}

// Lease returns an idle lease matching opts, creating a new rendering
// context when none is free.
func (p *PagePool) Lease(ctx context.Context, opts ContextOptions) (*PageLease, error) {
	fingerprint := opts.Fingerprint()

	p.mu.Lock()
	for _, lease := range p.leases {
		if !lease.inUse && lease.fingerprint == fingerprint {
			lease.inUse = true
			p.mu.Unlock()
			return lease, nil
		}
	}
	p.mu.Unlock()

	// Context creation happens outside the pool lock: it is slow and may
	// block on browser I/O.
	page, err := p.runtime.NewPage(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create rendering context: %w", err)
	}

	lease := &PageLease{
		page:        page,
		fingerprint: fingerprint,
		inUse:       true,
	}

	p.mu.Lock()
	p.leases = append(p.leases, lease)
	total := len(p.leases)
	p.mu.Unlock()

	p.logger.Debugw("rendering context created", "fingerprint", fingerprint, "pool_size", total)
	return lease, nil
}

// Release returns a healthy lease to the pool.
func (p *PagePool) Release(lease *PageLease) {
	if lease == nil {
		return
	}
	p.mu.Lock()
	lease.inUse = false
	p.mu.Unlock()
}

// Discard removes a broken lease from the pool and closes its context. The
// next Lease call for the same options creates a fresh one.
func (p *PagePool) Discard(lease *PageLease) {
	if lease == nil {
		return
	}

	p.mu.Lock()
	for i, l := range p.leases {
		if l == lease {
			p.leases = append(p.leases[:i], p.leases[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	if err := lease.page.Close(); err != nil {
		p.logger.Warnw("failed to close discarded rendering context", "error", err)
	}
}

// Size returns the number of pooled leases.
func (p *PagePool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.leases)
}

// IdleCount returns the number of leases not currently held.
func (p *PagePool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	idle := 0
	for _, lease := range p.leases {
		if !lease.inUse {
			idle++
		}
	}
	return idle
}

// Stop closes every pooled context.
func (p *PagePool) Stop() {
	p.mu.Lock()
	leases := p.leases
	p.leases = nil
	p.mu.Unlock()

	for _, lease := range leases {
		if err := lease.page.Close(); err != nil {
			p.logger.Warnw("failed to close rendering context", "error", err)
		}
	}
}
