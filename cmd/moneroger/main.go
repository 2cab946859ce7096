package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/opd-ai/moneroger"
	"github.com/opd-ai/moneroger/address"
	"github.com/opd-ai/moneroger/util"
	"github.com/opd-ai/moneroger/walletfactory"
)

// verifyExecutables checks if required Monero executables are available.
// The daemon itself is assumed already running elsewhere; cmd/moneroger
// never launches its own monerod.
func verifyExecutables() error {
	executables := []string{"monero-wallet-rpc", "monero-wallet-cli"}
	for _, exe := range executables {
		if _, err := exec.LookPath(exe); err != nil {
			return fmt.Errorf("%s not found in PATH: %w", exe, err)
		}
	}
	return nil
}

func main() {
	// Command line flags for configuration
	var (
		dataDir       = flag.String("datadir", "", "Directory for blockchain data and wallet files")
		walletDir     = flag.String("wallet-dir", "", "Directory of wallet files to supervise (defaults to --datadir)")
		daemonHost    = flag.String("daemon-host", "", "Host of the already-running Monero daemon RPC")
		daemonPort    = flag.Int("daemon-port", 0, "Port of the Monero daemon RPC")
		network       = flag.String("network", "", "Address network: mainnet, stagenet, or testnet")
		rpcPortLo     = flag.Int("rpc-port-lo", 0, "Low end (inclusive) of the per-wallet RPC port range")
		rpcPortHi     = flag.Int("rpc-port-hi", 0, "High end (exclusive) of the per-wallet RPC port range")
		maxConcurrent = flag.Int("max-concurrent", 0, "Maximum number of wallets kept open at once")
		generate      = flag.Bool("generate", false, "Generate a new wallet in --wallet-dir and exit, instead of running the supervisor")
		debug         = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	// Enable debug logging if requested
	if *debug {
		log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Llongfile)
	}

	// Verify Monero executables are available
	if err := verifyExecutables(); err != nil {
		log.Fatalf("Prerequisite check failed: %v", err)
	}

	// Validate command line arguments
	if *dataDir == "" {
		log.Fatal("--datadir is required")
	}

	// Convert paths to absolute
	absDataDir, err := filepath.Abs(*dataDir)
	if err != nil {
		log.Fatalf("Failed to resolve data directory path: %v", err)
	}

	// Ensure data directory exists
	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Create configuration, CLI flags overriding viper/env/disk-aware defaults
	config := util.RecommendConfig(absDataDir)
	if *walletDir != "" {
		config.WalletDir = *walletDir
	}
	if *daemonHost != "" {
		config.DaemonHost = *daemonHost
	}
	if *daemonPort != 0 {
		config.MoneroPort = *daemonPort
	}
	if *network != "" {
		config.Network = *network
	}
	if *rpcPortLo != 0 {
		config.RPCPortLo = *rpcPortLo
	}
	if *rpcPortHi != 0 {
		config.RPCPortHi = *rpcPortHi
	}
	if *maxConcurrent != 0 {
		config.MaxConcurrent = *maxConcurrent
	}

	if *debug {
		log.Printf("Using configuration: %+v", config)
	}

	if *generate {
		runGenerate(config)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Printf("Initializing wallet pool supervisor (network: %s)...", config.Network)

	manager, err := moneroger.New(config)
	if err != nil {
		log.Fatalf("Failed to initialize Moneroger: %v", err)
	}
	if err := manager.Start(ctx); err != nil {
		log.Fatalf("Failed to start Moneroger: %v", err)
	}
	log.Printf("Supervising %s (daemon %s:%d, max-concurrent %d)",
		config.WalletDir, config.DaemonHost, config.MoneroPort, config.MaxConcurrent)

	// Handle graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-signalChan
	log.Printf("Received signal %v, initiating shutdown...", sig)

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown services
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Shutdown complete")
}

// runGenerate is the operator-driven standalone wallet provisioning path,
// supplementing the Pool's own CREATING transition (which only ever runs
// with caller-supplied keys): it drives walletfactory.Factory.Generate's
// --generate-new-wallet path and prints the resulting address so an
// operator can hand it to whatever issues payment requests.
func runGenerate(config util.Config) {
	if err := verifyExecutables(); err != nil {
		log.Fatalf("Prerequisite check failed: %v", err)
	}

	net, err := address.ParseNetwork(config.Network)
	if err != nil {
		log.Fatalf("--generate: %v", err)
	}

	walletDir := config.WalletDir
	if walletDir == "" {
		walletDir = config.DataDir
	}

	factory := &walletfactory.Factory{
		Directory:  walletDir,
		DaemonHost: config.DaemonHost,
		DaemonPort: config.MoneroPort,
		Net:        net,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	addr, err := factory.Generate(ctx)
	if err != nil {
		log.Fatalf("--generate: %v", err)
	}
	fmt.Println(addr.String())
}
