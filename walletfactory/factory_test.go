package walletfactory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/opd-ai/moneroger/address"
)

func installFakeCLI(t *testing.T, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake binary script is a shell script")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, binaryName)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	old := os.Getenv("PATH")
	os.Setenv("PATH", dir+":"+old)
	t.Cleanup(func() { os.Setenv("PATH", old) })
}

const createWalletScript = `#!/bin/sh
wfile=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "--generate-from-view-key" ] || [ "$prev" = "--generate-from-spend-key" ]; then
    wfile="$arg"
  fi
  prev="$arg"
done
echo "Logging in to local node"
read addr
read key1
read blank1
read zero
touch "$wfile"
touch "$wfile.keys"
echo "Refresh done"
`

const createWalletFailScript = `#!/bin/sh
echo "Logging in to local node"
read addr
read key1
read blank1
read zero
echo "Error: failed to parse key"
`

func TestFactoryCreate(t *testing.T) {
	installFakeCLI(t, createWalletScript)

	destDir := t.TempDir()
	addr, _, _, err := address.Generate(address.NetworkMainnet)
	if err != nil {
		t.Fatal(err)
	}
	view := "deadbeef"

	f := &Factory{Directory: destDir, DaemonHost: "127.0.0.1", DaemonPort: 18081, Net: address.NetworkMainnet, ScanTimeout: 5 * time.Second}
	got, err := f.Create(context.Background(), addr, &view, nil, true)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !got.Equal(addr) {
		t.Errorf("Create() = %v, want %v", got, addr)
	}
	if _, err := os.Stat(filepath.Join(destDir, addr.String())); err != nil {
		t.Errorf("wallet body file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(destDir, addr.String()+".keys")); err != nil {
		t.Errorf("wallet keys file missing: %v", err)
	}
}

func TestFactoryCreateNoKeys(t *testing.T) {
	addr, _, _, err := address.Generate(address.NetworkMainnet)
	if err != nil {
		t.Fatal(err)
	}
	f := &Factory{Directory: t.TempDir()}
	if _, err := f.Create(context.Background(), addr, nil, nil, false); err == nil {
		t.Error("Create() with no keys expected error, got nil")
	}
}

func TestFactoryCreateFailure(t *testing.T) {
	installFakeCLI(t, createWalletFailScript)

	destDir := t.TempDir()
	addr, _, _, err := address.Generate(address.NetworkMainnet)
	if err != nil {
		t.Fatal(err)
	}
	badKey := "1111111111111111111111111111111111111111111111111111111111111111"

	f := &Factory{Directory: destDir, DaemonHost: "127.0.0.1", DaemonPort: 18081, Net: address.NetworkMainnet, ScanTimeout: 5 * time.Second}
	if _, err := f.Create(context.Background(), addr, &badKey, nil, false); err == nil {
		t.Error("Create() with bad key expected error, got nil")
	}
	entries, _ := os.ReadDir(destDir)
	if len(entries) != 0 {
		t.Errorf("Create() failure left residue in directory: %v", entries)
	}
}

func TestFactoryGenerate(t *testing.T) {
	addr, _, _, err := address.Generate(address.NetworkStagenet)
	if err != nil {
		t.Fatal(err)
	}
	script := fmt.Sprintf(`#!/bin/sh
wfile=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "--generate-new-wallet" ]; then
    wfile="$arg"
  fi
  prev="$arg"
done
echo "Using English language"
read choice
echo "Generated new wallet: %s"
touch "$wfile"
touch "$wfile.keys"
`, addr.String())
	installFakeCLI(t, script)

	destDir := t.TempDir()
	f := &Factory{Directory: destDir, DaemonHost: "127.0.0.1", DaemonPort: 38081, Net: address.NetworkStagenet, ScanTimeout: 5 * time.Second}
	got, err := f.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !got.Equal(addr) {
		t.Errorf("Generate() = %v, want %v", got, addr)
	}
}
