// Package walletfactory spawns the external wallet CLI to materialise a
// wallet file from key material, grounded on create_wallet/gen_wallet in
// _examples/original_source/manager.py and gen.py: an interactive CLI
// scripted over stdin, with stdout line-scanned for known tokens.
package walletfactory

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/opd-ai/moneroger/address"
	"github.com/opd-ai/moneroger/errors"
	"github.com/opd-ai/moneroger/util"
)

const binaryName = "monero-wallet-cli"

// Path locates the monero-wallet-cli executable.
func Path() (string, error) {
	for _, dir := range util.Path() {
		candidate := filepath.Join(dir, binaryName)
		if util.FileExists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s not found in PATH", binaryName)
}

// Factory materialises wallet files by driving monero-wallet-cli.
type Factory struct {
	Directory  string // final destination directory for wallet files
	DaemonHost string
	DaemonPort int
	Net        address.Network

	// ScanTimeout bounds how long Create/Generate will wait for any
	// single expected stdout token before giving up. Defaults to 30s.
	ScanTimeout time.Duration
}

func (f *Factory) scanTimeout() time.Duration {
	if f.ScanTimeout > 0 {
		return f.ScanTimeout
	}
	return 30 * time.Second
}

var errorLineRe = regexp.MustCompile(`(Error:.*)`)

func (f *Factory) commonArgs() []string {
	args := []string{
		"--password", "",
		"--daemon-address", fmt.Sprintf("%s:%d", f.DaemonHost, f.DaemonPort),
		"--log-file", "/dev/null",
	}
	switch f.Net {
	case address.NetworkStagenet:
		args = append(args, "--stagenet")
	case address.NetworkTestnet:
		args = append(args, "--testnet")
	}
	return args
}

// session wraps one spawned wallet-cli process: stdin writer, a
// line-scanner over stdout, and captured stderr.
type session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner
	stderr bytes.Buffer
	outBuf bytes.Buffer
}

func (f *Factory) start(ctx context.Context, args []string) (*session, error) {
	bin, err := Path()
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	s := &session{cmd: cmd, stdin: stdin}
	cmd.Stderr = &s.stderr
	s.stdout = bufio.NewScanner(io.TeeReader(stdout, &s.outBuf))

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

// waitForToken scans stdout lines until one contains token, or ctx/timeout
// elapses. Returns the matching line.
func (s *session) waitForToken(ctx context.Context, token string, timeout time.Duration) (string, error) {
	type result struct {
		line string
		err  error
	}
	lines := make(chan result, 1)
	go func() {
		for s.stdout.Scan() {
			line := s.stdout.Text()
			if strings.Contains(line, token) {
				lines <- result{line: line}
				return
			}
		}
		lines <- result{err: s.stdout.Err()}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(timeout):
		return "", fmt.Errorf("timed out waiting for %q", token)
	case r := <-lines:
		if r.err != nil {
			return "", r.err
		}
		return r.line, nil
	}
}

func (s *session) writeLine(line string) error {
	_, err := io.WriteString(s.stdin, line+"\n")
	return err
}

// shutdown closes stdin, waits up to 10s for exit, then kills.
func (s *session) shutdown() {
	_ = s.stdin.Close()
	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		_ = s.cmd.Process.Kill()
		<-done
	}
}

func (s *session) extractError() error {
	if m := errorLineRe.FindStringSubmatch(s.outBuf.String()); m != nil {
		return fmt.Errorf("%s", m[1])
	}
	if m := errorLineRe.FindStringSubmatch(s.stderr.String()); m != nil {
		return fmt.Errorf("%s", m[1])
	}
	return fmt.Errorf("Unknown error")
}

// Create materialises a wallet file for addr from key material. At least
// one of viewKey, spendKey must be supplied; if spendKey is present a
// full wallet is produced, otherwise a view-only wallet. On success the
// wallet body and key files are moved atomically into f.Directory as
// `<address>` and `<address>.keys`.
func (f *Factory) Create(ctx context.Context, addr address.Address, viewKey, spendKey *string, waitForSync bool) (address.Address, error) {
	const op = errors.Op("Factory.Create")
	if viewKey == nil && spendKey == nil {
		return address.Address{}, errors.E(op, errors.ComponentFactory, errors.KindConfig,
			fmt.Errorf("at least one of viewKey or spendKey is required"))
	}

	tmpDir, err := os.MkdirTemp("", "moneroger-wallet-*")
	if err != nil {
		return address.Address{}, errors.E(op, errors.ComponentFactory, errors.KindSystem, err)
	}
	defer os.RemoveAll(tmpDir)
	wfile := filepath.Join(tmpDir, "wallet")

	mode := "--generate-from-view-key"
	if spendKey != nil {
		mode = "--generate-from-spend-key"
	}
	args := []string{mode, wfile}
	args = append(args, f.commonArgs()...)

	sess, err := f.start(ctx, args)
	if err != nil {
		return address.Address{}, errors.E(op, errors.ComponentFactory, errors.KindProcess, err)
	}

	if _, err := sess.waitForToken(ctx, "Logging", f.scanTimeout()); err != nil {
		sess.shutdown()
		return address.Address{}, errors.E(op, errors.ComponentFactory, errors.KindTimeout, err)
	}
	if err := sess.writeLine(addr.String()); err != nil {
		sess.shutdown()
		return address.Address{}, errors.E(op, errors.ComponentFactory, errors.KindProcess, err)
	}
	if viewKey != nil {
		_ = sess.writeLine(*viewKey)
	}
	if spendKey != nil {
		_ = sess.writeLine(*spendKey)
	}
	_ = sess.writeLine("")
	_ = sess.writeLine("0")

	if waitForSync {
		_, _ = sess.waitForToken(ctx, "Refresh done", f.scanTimeout())
	}
	sess.shutdown()

	if _, statErr := os.Stat(wfile); statErr != nil {
		return address.Address{}, errors.E(op, errors.ComponentFactory, errors.KindNetwork, sess.extractError())
	}

	if err := finalize(wfile, f.Directory, addr); err != nil {
		return address.Address{}, errors.E(op, errors.ComponentFactory, errors.KindSystem, err)
	}
	return addr, nil
}

var generatedAddrRe = regexp.MustCompile(`Generated new wallet:\s*(\S+)`)

// Generate produces a brand-new wallet with no caller-supplied keys,
// grounded on generate_wallet/gen_wallet in the original source. Not
// reachable from a Controller's CREATING transition (spec §4.4 only
// creates from caller-supplied keys); exposed as a standalone operator
// operation.
func (f *Factory) Generate(ctx context.Context) (address.Address, error) {
	const op = errors.Op("Factory.Generate")

	tmpDir, err := os.MkdirTemp("", "moneroger-wallet-*")
	if err != nil {
		return address.Address{}, errors.E(op, errors.ComponentFactory, errors.KindSystem, err)
	}
	defer os.RemoveAll(tmpDir)
	wfile := filepath.Join(tmpDir, "wallet")

	args := []string{"--use-english-language-names", "--generate-new-wallet", wfile}
	args = append(args, f.commonArgs()...)

	sess, err := f.start(ctx, args)
	if err != nil {
		return address.Address{}, errors.E(op, errors.ComponentFactory, errors.KindProcess, err)
	}

	if _, err := sess.waitForToken(ctx, "English", f.scanTimeout()); err != nil {
		sess.shutdown()
		return address.Address{}, errors.E(op, errors.ComponentFactory, errors.KindTimeout, err)
	}
	if err := sess.writeLine("1"); err != nil {
		sess.shutdown()
		return address.Address{}, errors.E(op, errors.ComponentFactory, errors.KindProcess, err)
	}
	line, err := sess.waitForToken(ctx, "Generated", f.scanTimeout())
	if err != nil {
		sess.cmd.Process.Kill()
		return address.Address{}, errors.E(op, errors.ComponentFactory, errors.KindTimeout, err)
	}
	m := generatedAddrRe.FindStringSubmatch(line)
	if m == nil {
		sess.cmd.Process.Kill()
		return address.Address{}, errors.E(op, errors.ComponentFactory, errors.KindNetwork,
			fmt.Errorf("cannot find generated address in output"))
	}
	addr, perr := address.Parse(m[1])
	if perr != nil {
		sess.cmd.Process.Kill()
		return address.Address{}, errors.E(op, errors.ComponentFactory, errors.KindAddress, perr)
	}
	sess.shutdown()

	if err := finalize(wfile, f.Directory, addr); err != nil {
		return address.Address{}, errors.E(op, errors.ComponentFactory, errors.KindSystem, err)
	}
	return addr, nil
}

// finalize atomically moves the wallet body and key files produced at
// wfile into destDir, named by addr's canonical string.
func finalize(wfile, destDir string, addr address.Address) error {
	kfile := wfile + ".keys"
	if err := os.Rename(wfile, filepath.Join(destDir, addr.String())); err != nil {
		return err
	}
	if err := os.Rename(kfile, filepath.Join(destDir, addr.String()+".keys")); err != nil {
		return err
	}
	return nil
}
