// Package moneroconst provides default configuration constants for the moneroger library.
// It defines standard ports and timeouts used by both monerod and monero-wallet-rpc daemons.
package moneroconst

import (
	"time"
)

// Default configurations for Monero daemons
const (
	// DefaultMonerodPort is the standard RPC port for monerod daemon (18081)
	// This port is used for communication between the daemon and wallet
	DefaultMonerodPort = 18081

	// DefaultWalletRPCPort is the standard RPC port for monero-wallet-rpc daemon (18082)
	// This port is used by applications to communicate with the wallet
	DefaultWalletRPCPort = 18082

	// DefaultStartupTimeout defines how long to wait for daemons to start (30 seconds)
	// If a daemon doesn't respond within this time, startup is considered failed
	DefaultStartupTimeout = 30 * time.Second

	// DefaultShutdownTimeout defines how long to wait for graceful shutdown (10 seconds)
	// After this timeout, the process will be forcefully terminated
	DefaultShutdownTimeout = 10 * time.Second
)

// Pool/controller defaults used across the wallet pool supervisor.
const (
	// DefaultRPCPortLo and DefaultRPCPortHi bound the cyclic port range
	// that PortAllocator hands out to per-wallet RPC processes.
	DefaultRPCPortLo = 18090
	DefaultRPCPortHi = 18200

	// DefaultMaxConcurrent is the default admission cap on non-terminal
	// controllers when the caller doesn't recommend one.
	DefaultMaxConcurrent = 4

	// DefaultMainLoopSleep is how long the Pool's main loop sleeps
	// between admission/reaping passes.
	DefaultMainLoopSleep = 5 * time.Second

	// DefaultInitRetries and DefaultInitSleep bound how long a
	// Controller waits for its wallet RPC client to connect after the
	// child process is spawned.
	DefaultInitRetries = 10
	DefaultInitSleep   = 2 * time.Second

	// DefaultHeightTolerance is the number of blocks a wallet is
	// permitted to lag the daemon and still be considered synced.
	DefaultHeightTolerance = 1

	// DefaultSyncPollInterval is how long a Controller sleeps between
	// height checks while SYNCING.
	DefaultSyncPollInterval = 10 * time.Second

	// DefaultShutdownPollInterval is the cadence at which a SYNCED
	// Controller checks for a shutdown request.
	DefaultShutdownPollInterval = time.Second
)
