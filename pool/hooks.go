package pool

import (
	"sync"

	"github.com/opd-ai/moneroger/address"
	"github.com/opd-ai/moneroger/controller"
	"github.com/opd-ai/moneroger/registry"
)

// Hooks is the Pool's extension surface. All methods are invoked serially
// from the Pool's own supervisor goroutine (never concurrently with each
// other), so implementations need no internal locking on the Pool's
// account. NextAddress and KeysFor must not block.
type Hooks interface {
	// NextAddress returns the next candidate address to admit, and false
	// when nothing is currently available. May cycle.
	NextAddress() (address.Address, bool)
	// KeysFor returns optional key material for an uninitialised wallet.
	// Both may be nil.
	KeysFor(addr address.Address) (viewKey, spendKey *string)
	// OnStarted fires once, immediately after ctrl's task is launched.
	OnStarted(ctrl *controller.Controller)
	// OnSynced fires on every main-loop tick while ctrl is SYNCED. A
	// typical implementation inspects the wallet and then calls
	// ctrl.RequestShutdown().
	OnSynced(ctrl *controller.Controller)
	// OnClosed and OnFailed fire exactly once per Controller, immediately
	// before it is removed from the live set.
	OnClosed(ctrl *controller.Controller)
	OnFailed(ctrl *controller.Controller)
}

// NoopHooks is an embeddable Hooks implementation where every method is a
// no-op / returns the empty default. Embed it and override only the
// hooks a caller cares about.
type NoopHooks struct{}

func (NoopHooks) NextAddress() (address.Address, bool)       { return address.Address{}, false }
func (NoopHooks) KeysFor(address.Address) (*string, *string) { return nil, nil }
func (NoopHooks) OnStarted(*controller.Controller)           {}
func (NoopHooks) OnSynced(*controller.Controller)            {}
func (NoopHooks) OnClosed(*controller.Controller)            {}
func (NoopHooks) OnFailed(*controller.Controller)            {}

// CyclicFeed is a resettable external-iterator NextAddress source over a
// fixed slice of records, wrapping registry.ListWallets's output per
// spec §4.6's cyclic feed contract. Tests can Reset() it to rewind.
type CyclicFeed struct {
	mu   sync.Mutex
	recs []registry.WalletRecord
	pos  int
}

// NewCyclicFeed builds a feed that cycles through recs in order.
func NewCyclicFeed(recs []registry.WalletRecord) *CyclicFeed {
	cp := make([]registry.WalletRecord, len(recs))
	copy(cp, recs)
	return &CyclicFeed{recs: cp}
}

// NewCyclicFeedFromDirectory builds a feed directly from
// registry.ListWallets(directory, net).
func NewCyclicFeedFromDirectory(directory string, net address.Network) (*CyclicFeed, error) {
	recs, err := registry.ListWallets(directory, net)
	if err != nil {
		return nil, err
	}
	return NewCyclicFeed(recs), nil
}

// Next returns the next address in the cycle, or false if the feed is
// empty. Non-blocking, as the Hooks contract requires.
func (f *CyclicFeed) Next() (address.Address, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.recs) == 0 {
		return address.Address{}, false
	}
	rec := f.recs[f.pos]
	f.pos = (f.pos + 1) % len(f.recs)
	return rec.Address, true
}

// Reset rewinds the feed to its first entry.
func (f *CyclicFeed) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = 0
}

// Len reports how many distinct addresses the feed cycles through.
func (f *CyclicFeed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recs)
}
