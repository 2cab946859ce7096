// Package pool implements the wallet pool supervisor: a bounded-
// concurrency main loop that admits addresses from a Hooks feed, drives
// each through its own controller.Controller, reaps terminal controllers,
// and dispatches the Hooks callbacks around each transition.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/opd-ai/moneroger/address"
	moneroconst "github.com/opd-ai/moneroger/const"
	"github.com/opd-ai/moneroger/controller"
	"github.com/opd-ai/moneroger/errors"
	"github.com/opd-ai/moneroger/portalloc"
	"github.com/opd-ai/moneroger/walletfactory"
	"github.com/opd-ai/moneroger/walletlauncher"
)

// DuplicateAdmissionPolicy resolves spec §9's Open Question on how the
// admission phase reacts to a cyclic feed re-offering an address that is
// already live.
type DuplicateAdmissionPolicy uint8

const (
	// BreakOnDuplicate stops the admission phase for this tick as soon as
	// a duplicate is seen, per spec §4.5 step 1(b) — the normalized
	// default, since a cyclic feed re-offers its whole cycle and
	// continuing would just spin through already-live entries.
	BreakOnDuplicate DuplicateAdmissionPolicy = iota
	// ContinueOnDuplicate skips a duplicate and keeps trying further
	// feed entries in the same tick, for callers whose feed interleaves
	// genuinely new addresses with already-live ones.
	ContinueOnDuplicate
)

// Config configures a Pool.
type Config struct {
	MaxConcurrent int
	RPCPortLo     int
	RPCPortHi     int
	MainLoopSleep time.Duration

	WalletDir  string
	DaemonHost string
	DaemonPort int
	Net        address.Network

	Hooks Hooks

	// DuplicateAdmission selects step 1(b)'s behaviour. Defaults to
	// BreakOnDuplicate.
	DuplicateAdmission DuplicateAdmissionPolicy

	// InitRetries, InitSleep, HeightTolerance, SyncPollInterval,
	// ShutdownPollInterval, ShutdownTimeout are forwarded to every
	// Controller this Pool constructs; zero values fall back to
	// controller.Config's own defaults.
	InitRetries          int
	InitSleep            time.Duration
	HeightTolerance      uint64
	SyncPollInterval     time.Duration
	ShutdownPollInterval time.Duration
	ShutdownTimeout      time.Duration

	// NewLauncher/NewFactory/NewWalletClient/NewDaemonClient build the
	// collaborators for each Controller this Pool admits. Default to the
	// real walletlauncher/walletfactory/walletrpcclient wiring; tests
	// substitute fakes here instead of spawning real processes or RPC
	// servers.
	NewLauncher     func() controller.ChildLauncher
	NewFactory      func() controller.WalletCreator
	NewWalletClient func(port int) controller.WalletRPC
	NewDaemonClient func(host string, port int) controller.DaemonRPC
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxConcurrent <= 0 {
		out.MaxConcurrent = moneroconst.DefaultMaxConcurrent
	}
	if out.RPCPortLo <= 0 {
		out.RPCPortLo = moneroconst.DefaultRPCPortLo
	}
	if out.RPCPortHi <= 0 {
		out.RPCPortHi = moneroconst.DefaultRPCPortHi
	}
	if out.MainLoopSleep <= 0 {
		out.MainLoopSleep = moneroconst.DefaultMainLoopSleep
	}
	if out.Hooks == nil {
		out.Hooks = NoopHooks{}
	}
	if out.NewLauncher == nil {
		out.NewLauncher = func() controller.ChildLauncher {
			return controller.NewLauncherAdapter(&walletlauncher.Launcher{
				DaemonHost: out.DaemonHost,
				DaemonPort: out.DaemonPort,
				Net:        out.Net,
			})
		}
	}
	if out.NewFactory == nil {
		out.NewFactory = func() controller.WalletCreator {
			return &walletfactory.Factory{
				Directory:  out.WalletDir,
				DaemonHost: out.DaemonHost,
				DaemonPort: out.DaemonPort,
				Net:        out.Net,
			}
		}
	}
	return out
}

// liveEntry is one admitted Controller plus its goroutine's completion
// signal, used by the reaper to know when Run has actually returned
// (so the child process is guaranteed gone) before removing it.
type liveEntry struct {
	ctrl *controller.Controller
	done chan struct{}
}

// Pool is the wallet pool supervisor. Construct with New and drive it
// with Run; it is not safe to call Run more than once.
type Pool struct {
	cfg   Config
	ports *portalloc.Allocator

	// mu guards live; mutated only by the supervisor goroutine running
	// Run, but Snapshot may be called concurrently from elsewhere (e.g.
	// a future status endpoint), hence the mutex rather than a bare map.
	mu   sync.Mutex
	live map[string]*liveEntry

	wg conc.WaitGroup
}

// New constructs a Pool. Returns an error only on a malformed port range.
func New(cfg Config) (*Pool, error) {
	full := cfg.withDefaults()
	ports, err := portalloc.New(full.RPCPortLo, full.RPCPortHi)
	if err != nil {
		return nil, errors.E(errors.Op("pool.New"), errors.ComponentPool, errors.KindConfig, err)
	}
	return &Pool{
		cfg:   full,
		ports: ports,
		live:  make(map[string]*liveEntry),
	}, nil
}

// LiveCount returns the number of controllers in the live set, including
// any that have reached a terminal state but have not been reaped yet.
func (p *Pool) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// Snapshot returns the currently live controllers. Safe to call
// concurrently with Run.
func (p *Pool) Snapshot() []*controller.Controller {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*controller.Controller, 0, len(p.live))
	for _, e := range p.live {
		out = append(out, e.ctrl)
	}
	return out
}

// Run executes the cooperative main loop until ctx is cancelled, at
// which point it requests shutdown on every live Controller and blocks
// until all have joined before returning.
func (p *Pool) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.drain()
			return
		}

		p.admit(ctx)
		p.reap()

		select {
		case <-ctx.Done():
			p.drain()
			return
		case <-time.After(p.cfg.MainLoopSleep):
		}
	}
}

// admit performs one admission phase: steps 1(a)-1(c) of spec §4.5,
// repeated while under the concurrency cap.
func (p *Pool) admit(ctx context.Context) {
	for p.LiveCount() < p.cfg.MaxConcurrent {
		addr, ok := p.cfg.Hooks.NextAddress()
		if !ok {
			return
		}

		key := addr.String()
		p.mu.Lock()
		_, duplicate := p.live[key]
		p.mu.Unlock()
		if duplicate {
			if p.cfg.DuplicateAdmission == ContinueOnDuplicate {
				continue
			}
			return
		}

		p.admitOne(ctx, addr)
	}
}

func (p *Pool) admitOne(ctx context.Context, addr address.Address) {
	viewKey, spendKey := p.cfg.Hooks.KeysFor(addr)
	port := p.ports.Next()

	ctrl := controller.New(controller.Config{
		Address:              addr,
		Initialised:          viewKey == nil && spendKey == nil,
		Keys:                 controller.Keys{ViewKey: viewKey, SpendKey: spendKey},
		WalletDir:            p.cfg.WalletDir,
		DaemonHost:           p.cfg.DaemonHost,
		DaemonPort:           p.cfg.DaemonPort,
		RPCPort:              port,
		Launcher:             p.cfg.NewLauncher(),
		Factory:              p.cfg.NewFactory(),
		NewWalletClient:      p.cfg.NewWalletClient,
		NewDaemonClient:      p.cfg.NewDaemonClient,
		InitRetries:          p.cfg.InitRetries,
		InitSleep:            p.cfg.InitSleep,
		HeightTolerance:      p.cfg.HeightTolerance,
		SyncPollInterval:     p.cfg.SyncPollInterval,
		ShutdownPollInterval: p.cfg.ShutdownPollInterval,
		ShutdownTimeout:      p.cfg.ShutdownTimeout,
	})

	entry := &liveEntry{ctrl: ctrl, done: make(chan struct{})}
	p.mu.Lock()
	p.live[addr.String()] = entry
	p.mu.Unlock()

	p.wg.Go(func() {
		defer close(entry.done)
		ctrl.Run(ctx)
	})

	p.cfg.Hooks.OnStarted(ctrl)
}

// reap iterates a snapshot of the live set, firing onSynced/onClosed/
// onFailed per spec §4.5 step 2, and removing terminal entries once
// their goroutine has actually joined.
func (p *Pool) reap() {
	p.mu.Lock()
	entries := make([]*liveEntry, 0, len(p.live))
	for _, e := range p.live {
		entries = append(entries, e)
	}
	p.mu.Unlock()

	for _, e := range entries {
		switch e.ctrl.State() {
		case controller.StateSynced:
			p.cfg.Hooks.OnSynced(e.ctrl)
		case controller.StateClosed:
			p.cfg.Hooks.OnClosed(e.ctrl)
			p.remove(e)
		case controller.StateFailed:
			p.cfg.Hooks.OnFailed(e.ctrl)
			p.remove(e)
		}
	}
}

// remove waits for e's goroutine to join (guaranteeing its child process
// is gone per invariant 5) and deletes it from the live set.
func (p *Pool) remove(e *liveEntry) {
	<-e.done
	p.mu.Lock()
	delete(p.live, e.ctrl.Address().String())
	p.mu.Unlock()
}

// drain implements spec §4.5's Termination: request shutdown on every
// live Controller, then wait for all to join.
func (p *Pool) drain() {
	for _, e := range p.snapshotEntries() {
		e.ctrl.RequestShutdown()
	}
	p.wg.Wait()
	p.finishDrain()
}

func (p *Pool) snapshotEntries() []*liveEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*liveEntry, 0, len(p.live))
	for _, e := range p.live {
		out = append(out, e)
	}
	return out
}

// Shutdown requests every live Controller to close and blocks until all
// have joined, firing the terminal hooks and clearing the live set same
// as Run's own drain path. It is for callers whose Run ctx is not itself
// cancelled on shutdown; cmd/moneroger instead cancels Run's ctx through
// Moneroger.Shutdown.
func (p *Pool) Shutdown(ctx context.Context) error {
	for _, e := range p.snapshotEntries() {
		e.ctrl.RequestShutdown()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.finishDrain()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pool: shutdown deadline exceeded while draining: %w", ctx.Err())
	}
}

// finishDrain fires the terminal hook for every remaining live entry and
// clears the live set. Callers must have already waited for every
// Controller's goroutine to join.
func (p *Pool) finishDrain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, e := range p.live {
		switch e.ctrl.State() {
		case controller.StateClosed:
			p.cfg.Hooks.OnClosed(e.ctrl)
		case controller.StateFailed:
			p.cfg.Hooks.OnFailed(e.ctrl)
		}
		delete(p.live, k)
	}
}
