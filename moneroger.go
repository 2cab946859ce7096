// Package moneroger wires an AddressRegistry, a Pool, and a Hooks
// implementation into a single long-running supervisor. It is the
// top-level convenience API cmd/moneroger builds on; nothing in it
// cannot be assembled by hand from the registry/pool/controller
// packages directly, but most callers just want a directory and a
// daemon address to watch.
package moneroger

import (
	"context"
	"log"
	"sync"

	"github.com/opd-ai/moneroger/address"
	"github.com/opd-ai/moneroger/controller"
	"github.com/opd-ai/moneroger/errors"
	"github.com/opd-ai/moneroger/pool"
	"github.com/opd-ai/moneroger/registry"
	"github.com/opd-ai/moneroger/util"
)

const opNew = errors.Op("New")

// Moneroger supervises a directory of wallet files: it feeds every
// address registry.ListWallets finds to a pool.Pool, logging each
// controller's transitions, and closes the pool on Shutdown.
type Moneroger struct {
	pool *pool.Pool
	hooks *loggingHooks

	mu      sync.Mutex
	runDone chan struct{}
	cancel  context.CancelFunc
}

// New builds a Moneroger from config, wiring a directory-backed
// CyclicFeed into the pool's Hooks. Returns an error if config.WalletDir
// cannot be enumerated or the configured port range is malformed.
func New(config util.Config) (*Moneroger, error) {
	net, err := address.ParseNetwork(config.Network)
	if err != nil {
		return nil, errors.E(opNew, errors.ComponentPool, errors.KindConfig, err)
	}

	walletDir := config.WalletDir
	if walletDir == "" {
		walletDir = config.DataDir
	}

	records, err := registry.ListWallets(walletDir, net)
	if err != nil {
		return nil, errors.E(opNew, errors.ComponentPool, errors.KindSystem, err)
	}

	hooks := newLoggingHooks(records)

	p, err := pool.New(pool.Config{
		MaxConcurrent: config.MaxConcurrent,
		RPCPortLo:     config.RPCPortLo,
		RPCPortHi:     config.RPCPortHi,
		WalletDir:     walletDir,
		DaemonHost:    config.DaemonHost,
		DaemonPort:    config.MoneroPort,
		Net:           net,
		Hooks:         hooks,
	})
	if err != nil {
		return nil, err
	}

	return &Moneroger{pool: p, hooks: hooks}, nil
}

// Start launches the pool's main loop in the background. It returns
// immediately; the loop runs until ctx is cancelled or Shutdown is
// called.
func (m *Moneroger) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.runDone = make(chan struct{})
	done := m.runDone
	m.mu.Unlock()

	go func() {
		defer close(done)
		m.pool.Run(runCtx)
	}()
	return nil
}

// Shutdown requests every live controller to close and blocks until the
// pool's main loop has returned or ctx expires first.
func (m *Moneroger) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	done := m.runDone
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LiveCount reports how many wallet controllers are currently admitted.
func (m *Moneroger) LiveCount() int { return m.pool.LiveCount() }

// loggingHooks is the default Hooks implementation cmd/moneroger runs
// with: it feeds registry.WalletRecord entries in a cycle, supplies no
// key material, and logs every transition with log.Printf. Because
// pool.Pool marks an address as initialised exactly when KeysFor returns
// no keys, a key-only wallet from this feed is launched like an
// initialised one: it does not take the controller's keyless
// STARTING→FAILED edge, and its controller ends FAILED only when the
// wallet-RPC child exits or the init retries run out.
type loggingHooks struct {
	pool.NoopHooks
	feed *pool.CyclicFeed

	mu     sync.Mutex
	synced map[string]bool
}

func newLoggingHooks(records []registry.WalletRecord) *loggingHooks {
	return &loggingHooks{feed: pool.NewCyclicFeed(records), synced: make(map[string]bool)}
}

func (h *loggingHooks) NextAddress() (address.Address, bool) { return h.feed.Next() }

func (h *loggingHooks) OnStarted(ctrl *controller.Controller) {
	log.Printf("moneroger: started controller for %s", ctrl.Address())
}

// OnSynced fires on every main-loop tick while ctrl stays SYNCED; log
// only the first occurrence per controller so a long-held wallet
// doesn't spam one line per tick.
func (h *loggingHooks) OnSynced(ctrl *controller.Controller) {
	key := ctrl.Address().String()
	h.mu.Lock()
	already := h.synced[key]
	h.synced[key] = true
	h.mu.Unlock()
	if !already {
		log.Printf("moneroger: %s synced, holding open", ctrl.Address())
	}
}

func (h *loggingHooks) OnClosed(ctrl *controller.Controller) {
	log.Printf("moneroger: %s closed after %s", ctrl.Address(), ctrl.RunningDuration())
}

func (h *loggingHooks) OnFailed(ctrl *controller.Controller) {
	f := ctrl.Failure()
	if f == nil {
		log.Printf("moneroger: %s failed", ctrl.Address())
		return
	}
	log.Printf("moneroger: %s failed: %v (exit=%d)", ctrl.Address(), f.Err, f.ExitCode)
}
