package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opd-ai/moneroger/address"
	"github.com/opd-ai/moneroger/walletrpcclient"
)

// fakeHandle is a ChildHandle test double that never exits on its own
// unless told to.
type fakeHandle struct {
	mu       sync.Mutex
	alive    bool
	exitCode int
	stderr   string
	killed   bool
}

func newFakeHandle() *fakeHandle { return &fakeHandle{alive: true, exitCode: -1} }

func (h *fakeHandle) IsAlive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alive
}
func (h *fakeHandle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}
func (h *fakeHandle) Stderr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stderr
}
func (h *fakeHandle) Terminate(time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alive = false
	h.exitCode = 0
	return nil
}
func (h *fakeHandle) Kill() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alive = false
	h.killed = true
	h.exitCode = -1
	return nil
}
func (h *fakeHandle) die(code int, stderr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alive = false
	h.exitCode = code
	h.stderr = stderr
}

type fakeLauncher struct {
	handle *fakeHandle
	err    error
}

func (l *fakeLauncher) Open(context.Context, string, address.Address, int) (ChildHandle, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.handle, nil
}

type fakeFactory struct {
	called atomic.Bool
	err    error
	addr   address.Address
}

func (f *fakeFactory) Create(_ context.Context, addr address.Address, _, _ *string, _ bool) (address.Address, error) {
	f.called.Store(true)
	if f.err != nil {
		return address.Address{}, f.err
	}
	return addr, nil
}

// fakeWalletRPC reports a fixed address and a height that the test can
// move forward to simulate sync progress.
type fakeWalletRPC struct {
	addr      address.Address
	addrErr   error
	height    atomic.Uint64
	heightErr error
}

func (w *fakeWalletRPC) Height(context.Context) (uint64, error) {
	if w.heightErr != nil {
		return 0, w.heightErr
	}
	return w.height.Load(), nil
}
func (w *fakeWalletRPC) Address(context.Context) (address.Address, error) {
	if w.addrErr != nil {
		return address.Address{}, w.addrErr
	}
	return w.addr, nil
}
func (w *fakeWalletRPC) Incoming(context.Context) ([]walletrpcclient.Transfer, error) { return nil, nil }
func (w *fakeWalletRPC) Outgoing(context.Context) ([]walletrpcclient.Transfer, error) { return nil, nil }

type fakeDaemonRPC struct {
	height atomic.Uint64
}

func (d *fakeDaemonRPC) Height(context.Context) (uint64, error) { return d.height.Load(), nil }

func testAddr(t *testing.T) address.Address {
	t.Helper()
	addr, _, _, err := address.Generate(address.NetworkMainnet)
	if err != nil {
		t.Fatal(err)
	}
	return addr
}

func baseConfig(t *testing.T, addr address.Address, handle *fakeHandle, wallet *fakeWalletRPC, daemon *fakeDaemonRPC) Config {
	t.Helper()
	return Config{
		Address:              addr,
		Initialised:          true,
		WalletDir:            t.TempDir(),
		DaemonHost:           "127.0.0.1",
		DaemonPort:           18081,
		RPCPort:              18090,
		Launcher:             &fakeLauncher{handle: handle},
		InitRetries:          3,
		InitSleep:            time.Millisecond,
		HeightTolerance:      0,
		SyncPollInterval:     time.Millisecond,
		ShutdownPollInterval: time.Millisecond,
		ShutdownTimeout:      50 * time.Millisecond,
		NewWalletClient:      func(int) WalletRPC { return wallet },
		NewDaemonClient:      func(string, int) DaemonRPC { return daemon },
	}
}

func TestRunUninitialisedNoKeysFailsImmediately(t *testing.T) {
	addr := testAddr(t)
	cfg := baseConfig(t, addr, newFakeHandle(), &fakeWalletRPC{addr: addr}, &fakeDaemonRPC{})
	cfg.Initialised = false

	c := New(cfg)
	c.Run(context.Background())

	if c.State() != StateFailed {
		t.Fatalf("State() = %v, want FAILED", c.State())
	}
	if c.Failure() == nil {
		t.Fatal("Failure() = nil, want non-nil")
	}
}

func TestRunCreatingPathCallsFactory(t *testing.T) {
	addr := testAddr(t)
	handle := newFakeHandle()
	wallet := &fakeWalletRPC{addr: addr}
	daemon := &fakeDaemonRPC{}
	factory := &fakeFactory{addr: addr}

	cfg := baseConfig(t, addr, handle, wallet, daemon)
	cfg.Initialised = false
	view := "deadbeef"
	cfg.Keys = Keys{ViewKey: &view}
	cfg.Factory = factory

	daemon.height.Store(100)
	wallet.height.Store(100)

	c := New(cfg)
	go func() {
		time.Sleep(5 * time.Millisecond)
		c.RequestShutdown()
	}()
	c.Run(context.Background())

	if !factory.called.Load() {
		t.Error("Factory.Create was not called on the CREATING path")
	}
	if c.State() != StateClosed {
		t.Fatalf("State() = %v, want CLOSED", c.State())
	}
}

func TestRunAddressMismatchFails(t *testing.T) {
	addr := testAddr(t)
	other := testAddr(t)
	handle := newFakeHandle()
	wallet := &fakeWalletRPC{addr: other}
	daemon := &fakeDaemonRPC{}

	cfg := baseConfig(t, addr, handle, wallet, daemon)
	c := New(cfg)
	c.Run(context.Background())

	if c.State() != StateFailed {
		t.Fatalf("State() = %v, want FAILED", c.State())
	}
	if !handle.killed && handle.IsAlive() {
		t.Error("child handle was not cleaned up after address mismatch")
	}
}

func TestRunChildDiesDuringInitFails(t *testing.T) {
	addr := testAddr(t)
	handle := newFakeHandle()
	handle.die(1, "boom")
	wallet := &fakeWalletRPC{addr: addr}
	daemon := &fakeDaemonRPC{}

	cfg := baseConfig(t, addr, handle, wallet, daemon)
	c := New(cfg)
	c.Run(context.Background())

	if c.State() != StateFailed {
		t.Fatalf("State() = %v, want FAILED", c.State())
	}
	f := c.Failure()
	if f == nil || f.ExitCode != 1 || f.Stderr != "boom" {
		t.Fatalf("Failure() = %+v, want exit=1 stderr=boom", f)
	}
}

func TestRunSyncWaitsUntilWithinTolerance(t *testing.T) {
	addr := testAddr(t)
	handle := newFakeHandle()
	wallet := &fakeWalletRPC{addr: addr}
	daemon := &fakeDaemonRPC{}
	daemon.height.Store(1000)
	wallet.height.Store(10)

	cfg := baseConfig(t, addr, handle, wallet, daemon)
	cfg.HeightTolerance = 2

	c := New(cfg)

	var states []State
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()

	go func() {
		time.Sleep(3 * time.Millisecond)
		wallet.height.Store(999)
		time.Sleep(3 * time.Millisecond)
		mu.Lock()
		states = append(states, c.State())
		mu.Unlock()
		c.RequestShutdown()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return in time")
	}

	if c.State() != StateClosed {
		t.Fatalf("final State() = %v, want CLOSED", c.State())
	}
}

func TestRunRespectsShutdownRequestFromSynced(t *testing.T) {
	addr := testAddr(t)
	handle := newFakeHandle()
	wallet := &fakeWalletRPC{addr: addr}
	daemon := &fakeDaemonRPC{}
	daemon.height.Store(50)
	wallet.height.Store(50)

	cfg := baseConfig(t, addr, handle, wallet, daemon)
	c := New(cfg)

	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()

	// Poll until SYNCED, then request shutdown.
	deadline := time.Now().Add(time.Second)
	for c.State() != StateSynced && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if c.State() != StateSynced {
		t.Fatalf("never reached SYNCED, stuck at %v", c.State())
	}
	if c.WalletClient() == nil {
		t.Error("WalletClient() = nil while SYNCED")
	}
	c.RequestShutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after RequestShutdown")
	}

	if c.State() != StateClosed {
		t.Fatalf("State() = %v, want CLOSED", c.State())
	}
	if c.WalletClient() != nil {
		t.Error("WalletClient() should be nil after CLOSED")
	}
	if handle.IsAlive() {
		t.Error("child handle still alive after CLOSED")
	}
	if c.RunningDuration() <= 0 {
		t.Error("RunningDuration() should be positive after Run returns")
	}
}

func TestStateStringAndTerminal(t *testing.T) {
	cases := []struct {
		s        State
		want     string
		terminal bool
	}{
		{StateStarting, "STARTING", false},
		{StateCreating, "CREATING", false},
		{StateSyncing, "SYNCING", false},
		{StateSynced, "SYNCED", false},
		{StateClosing, "CLOSING", false},
		{StateClosed, "CLOSED", true},
		{StateFailed, "FAILED", true},
	}
	for _, tc := range cases {
		if got := tc.s.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.s, got, tc.want)
		}
		if got := tc.s.Terminal(); got != tc.terminal {
			t.Errorf("State(%d).Terminal() = %v, want %v", tc.s, got, tc.terminal)
		}
	}
}
