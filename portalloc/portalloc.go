// Package portalloc hands out RPC ports from a bounded cyclic range,
// grounded on the itertools.cycle(range(*rpc_port_range)) generator in
// the original monerowalletpool implementation.
package portalloc

import (
	"sync"

	"github.com/opd-ai/moneroger/errors"
)

// Allocator is a non-blocking, total, wrapping cyclic iterator over the
// half-open range [lo, hi). It is single-consumer by design — the Pool's
// supervisor goroutine is the only caller — but the internal mutex makes
// it safe to share if a future caller needs that.
type Allocator struct {
	mu   sync.Mutex
	lo   int
	hi   int
	next int
}

// New constructs an Allocator over [lo, hi). It returns a KindConfig error
// when hi is not greater than lo.
func New(lo, hi int) (*Allocator, error) {
	if hi <= lo {
		return nil, errors.E(
			errors.Op("portalloc.New"),
			errors.ComponentPortAlloc,
			errors.KindConfig,
			errRangeOrder(lo, hi),
		)
	}
	return &Allocator{lo: lo, hi: hi, next: lo}, nil
}

func errRangeOrder(lo, hi int) error {
	return &rangeError{lo: lo, hi: hi}
}

type rangeError struct{ lo, hi int }

func (e *rangeError) Error() string {
	return "invalid port range: hi must be greater than lo"
}

// Next returns the next port in the cyclic range, wrapping back to lo
// after hi-1.
func (a *Allocator) Next() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := a.next
	a.next++
	if a.next >= a.hi {
		a.next = a.lo
	}
	return p
}

// Size reports how many distinct ports the range covers.
func (a *Allocator) Size() int {
	return a.hi - a.lo
}

// Range reports the half-open bounds this allocator was constructed with.
func (a *Allocator) Range() (lo, hi int) {
	return a.lo, a.hi
}
