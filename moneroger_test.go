package moneroger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opd-ai/moneroger/address"
	"github.com/opd-ai/moneroger/util"
)

// writeWalletFile drops an empty `<address>.keys` plus body file into dir
// so registry.ListWallets reports it as an initialised record.
func writeWalletFile(t *testing.T, dir string, addr address.Address) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, addr.String()+".keys"), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, addr.String()), nil, 0o600); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T) util.Config {
	t.Helper()
	dir := t.TempDir()
	addr, _, _, err := address.Generate(address.NetworkMainnet)
	if err != nil {
		t.Fatal(err)
	}
	writeWalletFile(t, dir, addr)

	return util.Config{
		DataDir:       dir,
		WalletDir:     dir,
		Network:       "mainnet",
		DaemonHost:    "127.0.0.1",
		MoneroPort:    18081,
		RPCPortLo:     19090,
		RPCPortHi:     19100,
		MaxConcurrent: 2,
	}
}

func TestNewValidatesNetwork(t *testing.T) {
	cfg := testConfig(t)
	cfg.Network = "not-a-network"

	if _, err := New(cfg); err == nil {
		t.Fatal("New() with an invalid network should fail")
	}
}

func TestNewEnumeratesWalletDirectory(t *testing.T) {
	cfg := testConfig(t)

	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if m.LiveCount() != 0 {
		t.Fatalf("LiveCount() = %d before Start(), want 0", m.LiveCount())
	}
}

func TestStartShutdownSequence(t *testing.T) {
	cfg := testConfig(t)
	m, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	if err := m.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestStartRejectsCancelledContext(t *testing.T) {
	cfg := testConfig(t)
	m, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Start(ctx); err == nil {
		t.Error("Start() should fail with an already-cancelled context")
	}
}

func TestShutdownWithoutStartIsNoop(t *testing.T) {
	cfg := testConfig(t)
	m, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() without Start() error = %v", err)
	}
}
