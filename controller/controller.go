// Package controller implements the per-wallet supervisor state machine:
// spawn the wallet-RPC child, wait for it to connect and hand-shake its
// address, poll until synced, hold until told to shut down, then close
// cleanly — exactly the STARTING→(CREATING)?→SYNCING→SYNCED→CLOSING→CLOSED
// progression, with a terminal FAILED branch reachable from any
// non-terminal state.
package controller

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/opd-ai/moneroger/address"
	moneroconst "github.com/opd-ai/moneroger/const"
	"github.com/opd-ai/moneroger/errors"
	"github.com/opd-ai/moneroger/walletrpcclient"
)

// State is the Controller's lifecycle stage. The zero value is STARTING.
type State uint32

const (
	StateStarting State = iota
	StateCreating
	StateSyncing
	StateSynced
	StateClosing
	StateClosed
	StateFailed
)

// String renders a State for logs and hook callbacks.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateCreating:
		return "CREATING"
	case StateSyncing:
		return "SYNCING"
	case StateSynced:
		return "SYNCED"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether s is a terminal state (CLOSED or FAILED).
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// ChildHandle is the subset of walletlauncher.Handle a Controller needs.
// Kept as an interface so tests can drive the state machine without
// spawning real processes.
type ChildHandle interface {
	IsAlive() bool
	ExitCode() int
	Stderr() string
	Terminate(timeout time.Duration) error
	Kill() error
}

// ChildLauncher opens the wallet-RPC child process for one wallet.
type ChildLauncher interface {
	Open(ctx context.Context, walletDir string, addr address.Address, port int) (ChildHandle, error)
}

// WalletCreator materialises a wallet file from key material; satisfied
// by *walletfactory.Factory.
type WalletCreator interface {
	Create(ctx context.Context, addr address.Address, viewKey, spendKey *string, waitForSync bool) (address.Address, error)
}

// WalletRPC is the opaque per-wallet client surface the Controller
// publishes on entry to SYNCING; satisfied by *walletrpcclient.WalletClient.
type WalletRPC interface {
	Height(ctx context.Context) (uint64, error)
	Address(ctx context.Context) (address.Address, error)
	Incoming(ctx context.Context) ([]walletrpcclient.Transfer, error)
	Outgoing(ctx context.Context) ([]walletrpcclient.Transfer, error)
}

// DaemonRPC is the opaque daemon client surface used to poll height;
// satisfied by *walletrpcclient.DaemonClient.
type DaemonRPC interface {
	Height(ctx context.Context) (uint64, error)
}

// Keys is the optional key material supplied for an uninitialised wallet.
type Keys struct {
	ViewKey  *string
	SpendKey *string
}

// Config bundles everything a Controller needs to drive one wallet
// through its lifecycle. Launcher, Factory, NewWalletClient and
// NewDaemonClient are collaborators, accepted as interfaces/factories so
// production code wires the real process/RPC plumbing and tests can
// substitute fakes.
type Config struct {
	Address     address.Address
	Initialised bool // false means key-only; pool.Pool sets it true exactly when KeysFor returns no key, not from AddressRegistry
	Keys        Keys

	WalletDir  string
	DaemonHost string
	DaemonPort int
	RPCPort    int

	Launcher ChildLauncher
	Factory  WalletCreator

	// NewWalletClient builds the opaque per-wallet RPC client for the
	// port this Controller was assigned. Defaults to
	// walletrpcclient.NewWalletClient.
	NewWalletClient func(port int) WalletRPC
	// NewDaemonClient builds the opaque daemon RPC client. Defaults to
	// walletrpcclient.NewDaemonClient.
	NewDaemonClient func(host string, port int) DaemonRPC

	InitRetries          int
	InitSleep            time.Duration
	HeightTolerance      uint64
	SyncPollInterval     time.Duration
	ShutdownPollInterval time.Duration
	ShutdownTimeout      time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.InitRetries == 0 {
		out.InitRetries = moneroconst.DefaultInitRetries
	}
	if out.InitSleep == 0 {
		out.InitSleep = moneroconst.DefaultInitSleep
	}
	if out.SyncPollInterval == 0 {
		out.SyncPollInterval = moneroconst.DefaultSyncPollInterval
	}
	if out.ShutdownPollInterval == 0 {
		out.ShutdownPollInterval = moneroconst.DefaultShutdownPollInterval
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = moneroconst.DefaultShutdownTimeout
	}
	if out.NewWalletClient == nil {
		out.NewWalletClient = func(port int) WalletRPC { return walletrpcclient.NewWalletClient(port) }
	}
	if out.NewDaemonClient == nil {
		out.NewDaemonClient = func(host string, port int) DaemonRPC { return walletrpcclient.NewDaemonClient(host, port) }
	}
	return out
}

// FailureInfo captures diagnostics when a Controller reaches FAILED.
type FailureInfo struct {
	Err      error
	ExitCode int
	Stderr   string
}

// Controller drives one wallet through its lifecycle on its own
// goroutine. All exported accessors are safe to call concurrently with
// the running goroutine.
type Controller struct {
	cfg Config

	// snapshot publishes state and walletClient together so a concurrent
	// reader can never observe one without the other: per invariant,
	// walletClient is non-nil iff state is SYNCING, SYNCED, or CLOSING.
	// Only the Controller's own Run goroutine ever stores into it.
	snapshot atomic.Pointer[stateSnapshot]

	shutdownRequested atomic.Bool

	startTime atomic.Int64 // unix nanos, 0 until set
	runningNS atomic.Int64

	failure atomic.Pointer[FailureInfo]

	handle ChildHandle
}

// stateSnapshot is the unit of publication for Controller.snapshot.
type stateSnapshot struct {
	state  State
	client WalletRPC
}

// New constructs a Controller in STARTING. Run must be called to drive it.
func New(cfg Config) *Controller {
	c := &Controller{cfg: cfg.withDefaults()}
	c.snapshot.Store(&stateSnapshot{state: StateStarting})
	return c
}

// Address returns the wallet address this Controller drives.
func (c *Controller) Address() address.Address { return c.cfg.Address }

// RPCPort returns the port this Controller's wallet RPC is bound to.
func (c *Controller) RPCPort() int { return c.cfg.RPCPort }

// State returns the current lifecycle state. Single load, per spec's
// ordering guarantee.
func (c *Controller) State() State {
	return c.snapshot.Load().state
}

// setState transitions state alone, leaving walletClient as it was.
// Safe only because the Controller's own goroutine is the sole writer.
func (c *Controller) setState(s State) {
	c.snapshot.Store(&stateSnapshot{state: s, client: c.snapshot.Load().client})
}

// RequestShutdown asks the Controller to begin closing. Single external
// writer; idempotent.
func (c *Controller) RequestShutdown() {
	c.shutdownRequested.Store(true)
}

// ShutdownRequested reports whether RequestShutdown has been called.
func (c *Controller) ShutdownRequested() bool {
	return c.shutdownRequested.Load()
}

// WalletClient returns the published RPC client, or nil if the Controller
// hasn't reached SYNCING yet (or has since moved past CLOSING).
func (c *Controller) WalletClient() WalletRPC {
	return c.snapshot.Load().client
}

// setStateAndClient publishes state and client together in one store, so
// no concurrent reader can ever observe a state/client pairing that
// violates the invariant above.
func (c *Controller) setStateAndClient(s State, client WalletRPC) {
	c.snapshot.Store(&stateSnapshot{state: s, client: client})
}

// StartTime returns when Run began, zero if not yet started.
func (c *Controller) StartTime() time.Time {
	ns := c.startTime.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// RunningDuration returns how long the Controller ran, set once a
// terminal state is reached.
func (c *Controller) RunningDuration() time.Duration {
	return time.Duration(c.runningNS.Load())
}

// Failure returns diagnostics for a FAILED controller, nil otherwise.
func (c *Controller) Failure() *FailureInfo {
	return c.failure.Load()
}

// Run drives the Controller through its full state machine. It returns
// only once a terminal state has been reached; it never leaves a child
// process running past that point.
func (c *Controller) Run(ctx context.Context) {
	c.startTime.Store(time.Now().UnixNano())
	defer func() {
		c.runningNS.Store(time.Now().UnixNano() - c.startTime.Load())
	}()

	if err := c.runInit(ctx); err != nil {
		c.closeChild(context.Background())
		c.fail(err, c.childExitCode(), c.childStderr())
		return
	}

	if err := c.runSync(ctx); err != nil {
		c.closeChild(context.Background())
		c.fail(err, c.childExitCode(), c.childStderr())
		return
	}

	c.runSyncedHold(ctx)
	c.close(context.Background())
}

func (c *Controller) childExitCode() int {
	if c.handle == nil {
		return -1
	}
	return c.handle.ExitCode()
}

func (c *Controller) childStderr() string {
	if c.handle == nil {
		return ""
	}
	return c.handle.Stderr()
}

func (c *Controller) fail(err error, exitCode int, stderr string) {
	c.failure.Store(&FailureInfo{Err: err, ExitCode: exitCode, Stderr: stderr})
	c.setStateAndClient(StateFailed, nil)
}

// runInit handles STARTING, the optional CREATING detour, opening the
// child process, and the init retry window up through address
// verification. On success the Controller is in SYNCING with walletClient
// published.
func (c *Controller) runInit(ctx context.Context) error {
	const op = errors.Op("Controller.runInit")

	if !c.cfg.Initialised {
		if c.cfg.Keys.ViewKey == nil && c.cfg.Keys.SpendKey == nil {
			return errors.E(op, errors.ComponentController, errors.KindConfig,
				fmt.Errorf("wallet %s is uninitialised and no keys were supplied", c.cfg.Address))
		}
		c.setState(StateCreating)
		if _, err := c.cfg.Factory.Create(ctx, c.cfg.Address, c.cfg.Keys.ViewKey, c.cfg.Keys.SpendKey, true); err != nil {
			return errors.E(op, errors.ComponentController, errors.KindNetwork, err)
		}
		c.setState(StateStarting)
	}

	handle, err := c.cfg.Launcher.Open(ctx, c.cfg.WalletDir, c.cfg.Address, c.cfg.RPCPort)
	if err != nil {
		return errors.E(op, errors.ComponentController, errors.KindProcess, err)
	}
	c.handle = handle

	client := c.cfg.NewWalletClient(c.cfg.RPCPort)

	var lastErr error
	for attempt := 0; attempt < c.cfg.InitRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !handle.IsAlive() {
			return errors.E(op, errors.ComponentController, errors.KindProcess,
				fmt.Errorf("child exited before becoming ready (exit=%d): %s", handle.ExitCode(), handle.Stderr()))
		}

		remoteAddr, aerr := client.Address(ctx)
		if aerr != nil {
			lastErr = aerr
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.InitSleep):
			}
			continue
		}
		if !remoteAddr.Equal(c.cfg.Address) {
			return errors.E(op, errors.ComponentController, errors.KindNetwork,
				fmt.Errorf("wallet RPC reports address %s, want %s", remoteAddr, c.cfg.Address))
		}

		c.setStateAndClient(StateSyncing, client)
		return nil
	}
	return errors.E(op, errors.ComponentController, errors.KindTimeout,
		fmt.Errorf("exhausted %d init retries: %w", c.cfg.InitRetries, lastErr))
}

// runSync polls daemon and wallet heights until the wallet is within
// tolerance, or fails.
func (c *Controller) runSync(ctx context.Context) error {
	const op = errors.Op("Controller.runSync")
	daemon := c.cfg.NewDaemonClient(c.cfg.DaemonHost, c.cfg.DaemonPort)
	client := c.WalletClient()

	tolerance := c.cfg.HeightTolerance
	if tolerance == 0 {
		tolerance = moneroconst.DefaultHeightTolerance
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.handle != nil && !c.handle.IsAlive() {
			return errors.E(op, errors.ComponentController, errors.KindProcess,
				fmt.Errorf("child exited during sync (exit=%d): %s", c.handle.ExitCode(), c.handle.Stderr()))
		}

		daemonHeight, derr := daemon.Height(ctx)
		if derr != nil {
			return errors.E(op, errors.ComponentController, errors.KindNetwork, derr)
		}
		walletHeight, werr := client.Height(ctx)
		if werr != nil {
			return errors.E(op, errors.ComponentController, errors.KindNetwork, werr)
		}

		if daemonHeight <= walletHeight+tolerance {
			c.setState(StateSynced)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.SyncPollInterval):
		}
	}
}

// runSyncedHold keeps the Controller alive in SYNCED, polling
// ShutdownRequested at a short cadence, until asked to stop or the
// context is cancelled.
func (c *Controller) runSyncedHold(ctx context.Context) {
	for {
		if c.ShutdownRequested() || ctx.Err() != nil {
			c.setState(StateClosing)
			return
		}
		select {
		case <-ctx.Done():
			c.setState(StateClosing)
			return
		case <-time.After(c.cfg.ShutdownPollInterval):
		}
	}
}

// close runs the guaranteed cleanup path: terminate, poll, escalate to
// kill, then mark CLOSED. state and walletClient publish together so a
// concurrent reader never sees CLOSING paired with a nil client, or
// CLOSED paired with a stale one.
func (c *Controller) close(ctx context.Context) {
	c.closeChild(ctx)
	c.setStateAndClient(StateClosed, nil)
}

func (c *Controller) closeChild(_ context.Context) {
	if c.handle == nil {
		return
	}
	if !c.handle.IsAlive() {
		return
	}
	if err := c.handle.Terminate(c.cfg.ShutdownTimeout); err != nil {
		_ = c.handle.Kill()
	}
}
