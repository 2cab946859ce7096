// Package walletlauncher spawns a monero-wallet-rpc child process bound to
// a single wallet file and an allocated port, adapting the process
// plumbing in monero-wallet-rpc/rpcwallet.go (exec.CommandContext,
// buffered stdout/stderr capture, PID reporting) from multi-wallet
// directory mode down to the single-wallet-file mode the pool's
// Controller needs per spec §4.3 / §6.
package walletlauncher

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/opd-ai/moneroger/address"
	"github.com/opd-ai/moneroger/errors"
	"github.com/opd-ai/moneroger/util"
)

const binaryName = "monero-wallet-rpc"

// Path locates the monero-wallet-rpc executable using the same search
// order as the rest of the module (executable dir, working dir, PATH).
func Path() (string, error) {
	for _, dir := range util.Path() {
		candidate := filepath.Join(dir, binaryName)
		if util.FileExists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s not found in PATH", binaryName)
}

// Launcher opens wallet RPC child processes against a configured daemon.
type Launcher struct {
	DaemonHost string
	DaemonPort int
	Net        address.Network
}

// Open spawns monero-wallet-rpc bound to the given address's wallet file
// on port, with RPC login disabled per spec §6. It does not wait for RPC
// readiness — that's the Controller's concern.
func (l *Launcher) Open(ctx context.Context, walletDir string, addr address.Address, port int) (*Handle, error) {
	const op = errors.Op("Launcher.Open")

	bin, err := Path()
	if err != nil {
		return nil, errors.E(op, errors.ComponentLauncher, errors.KindProcess, err)
	}

	walletFile := filepath.Join(walletDir, addr.String())
	daemonAddr := fmt.Sprintf("%s:%d", l.DaemonHost, l.DaemonPort)

	args := []string{
		"--wallet-file", walletFile,
		"--rpc-bind-port", fmt.Sprintf("%d", port),
		"--disable-rpc-login",
		"--password", "",
		"--daemon-address", daemonAddr,
	}
	if netFlag := networkFlag(addr.Network()); netFlag != "" {
		args = append(args, netFlag)
	}
	args = append(args, "--trusted-daemon", "--log-file", "/dev/null")

	cmd := exec.CommandContext(ctx, bin, args...)
	h := &Handle{cmd: cmd, port: port}
	cmd.Stdout = &h.stdout
	cmd.Stderr = &h.stderr

	if err := cmd.Start(); err != nil {
		return nil, errors.E(op, errors.ComponentLauncher, errors.KindProcess, err)
	}
	return h, nil
}

func networkFlag(net address.Network) string {
	switch net {
	case address.NetworkStagenet:
		return "--stagenet"
	case address.NetworkTestnet:
		return "--testnet"
	default:
		return ""
	}
}

// Handle is a running wallet-rpc child process.
type Handle struct {
	cmd    *exec.Cmd
	port   int
	mu     sync.Mutex
	stdout bytes.Buffer
	stderr bytes.Buffer
}

// Port returns the RPC port this child was bound to.
func (h *Handle) Port() int {
	return h.port
}

// PID returns the child's process id, or -1 if no process was started.
func (h *Handle) PID() int {
	if h.cmd == nil || h.cmd.Process == nil {
		return -1
	}
	return h.cmd.Process.Pid
}

// IsAlive reports whether the child process is still running.
func (h *Handle) IsAlive() bool {
	if h.cmd == nil || h.cmd.Process == nil {
		return false
	}
	// Signal 0 probes existence without affecting the process.
	return h.cmd.Process.Signal(syscall.Signal(0)) == nil
}

// ExitCode returns the child's exit code once it has terminated, or -1 if
// it hasn't, or is still running.
func (h *Handle) ExitCode() int {
	if h.cmd == nil || h.cmd.ProcessState == nil {
		return -1
	}
	return h.cmd.ProcessState.ExitCode()
}

// Stdout returns a snapshot of captured stdout, for failure diagnostics.
func (h *Handle) Stdout() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stdout.String()
}

// Stderr returns a snapshot of captured stderr, for failure diagnostics.
func (h *Handle) Stderr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stderr.String()
}

// Terminate politely asks the child to exit (SIGTERM) and waits up to
// timeout for it to do so.
func (h *Handle) Terminate(timeout time.Duration) error {
	if h.cmd == nil || h.cmd.Process == nil {
		return nil
	}
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return err
	}
	return h.waitWithTimeout(timeout)
}

// Kill forcefully terminates the child (SIGKILL).
func (h *Handle) Kill() error {
	if h.cmd == nil || h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}

func (h *Handle) waitWithTimeout(timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- h.cmd.Wait()
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
