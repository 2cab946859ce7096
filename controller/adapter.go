package controller

import (
	"context"

	"github.com/opd-ai/moneroger/address"
	"github.com/opd-ai/moneroger/walletlauncher"
)

// LauncherAdapter satisfies ChildLauncher by delegating to a concrete
// *walletlauncher.Launcher. walletlauncher.Handle already implements every
// method ChildHandle needs; the adapter exists only because Go requires an
// exact return type match for interface satisfaction.
type LauncherAdapter struct {
	Launcher *walletlauncher.Launcher
}

// NewLauncherAdapter wraps l so it can be used as a Config.Launcher.
func NewLauncherAdapter(l *walletlauncher.Launcher) ChildLauncher {
	return LauncherAdapter{Launcher: l}
}

// Open implements ChildLauncher.
func (a LauncherAdapter) Open(ctx context.Context, walletDir string, addr address.Address, port int) (ChildHandle, error) {
	h, err := a.Launcher.Open(ctx, walletDir, addr, port)
	if err != nil {
		return nil, err
	}
	return h, nil
}
