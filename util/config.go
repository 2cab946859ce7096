package util

import (
	"strings"

	"github.com/ricochet2200/go-disk-usage/du"
	"github.com/spf13/viper"

	moneroconst "github.com/opd-ai/moneroger/const"
)

// Config holds the configuration for both daemons and the wallet pool
// supervisor built on top of them.
type Config struct {
	DataDir    string
	WalletFile string
	MoneroPort int
	WalletPort int
	TestNet    bool

	// WalletDir is the directory of wallet files the AddressRegistry and
	// Pool operate over. Defaults to DataDir when unset.
	WalletDir string
	// Network selects which network's addresses the registry accepts;
	// one of "mainnet" (default), "stagenet", "testnet".
	Network string
	// DaemonHost is the blockchain daemon's RPC host.
	DaemonHost string
	// RPCPortLo/RPCPortHi bound the cyclic range PortAllocator hands
	// out per-wallet RPC ports from.
	RPCPortLo int
	RPCPortHi int
	// MaxConcurrent caps how many wallet controllers the Pool runs at
	// once.
	MaxConcurrent int
}

// RecommendConfig produces a Config with defaults rooted at dataDir,
// optionally loaded from a moneroger.{yaml,toml,json} file or MONEROGER_*
// environment variables via viper, then sizes MaxConcurrent to the disk
// space available under dataDir: each open wallet RPC process memory-maps
// an LMDB environment, so a data directory with little free space gets a
// smaller recommended pool than the compiled-in default.
func RecommendConfig(dataDir string) Config {
	v := viper.New()
	v.SetConfigName("moneroger")
	v.AddConfigPath(dataDir)
	v.AddConfigPath(".")
	v.SetEnvPrefix("MONEROGER")
	v.AutomaticEnv()

	v.SetDefault("daemon_port", moneroconst.DefaultMonerodPort)
	v.SetDefault("wallet_port", moneroconst.DefaultWalletRPCPort)
	v.SetDefault("network", "mainnet")
	v.SetDefault("daemon_host", "127.0.0.1")
	v.SetDefault("rpc_port_lo", moneroconst.DefaultRPCPortLo)
	v.SetDefault("rpc_port_hi", moneroconst.DefaultRPCPortHi)
	v.SetDefault("max_concurrent", moneroconst.DefaultMaxConcurrent)

	// A missing config file is not an error; env vars and defaults still
	// apply.
	_ = v.ReadInConfig()

	cfg := Config{
		DataDir:       dataDir,
		WalletFile:    dataDir,
		WalletDir:     dataDir,
		MoneroPort:    v.GetInt("daemon_port"),
		WalletPort:    v.GetInt("wallet_port"),
		Network:       strings.ToLower(v.GetString("network")),
		DaemonHost:    v.GetString("daemon_host"),
		RPCPortLo:     v.GetInt("rpc_port_lo"),
		RPCPortHi:     v.GetInt("rpc_port_hi"),
		MaxConcurrent: v.GetInt("max_concurrent"),
		TestNet:       v.GetString("network") == "testnet",
	}

	if recommended := recommendMaxConcurrent(dataDir, cfg.MaxConcurrent); recommended > 0 {
		cfg.MaxConcurrent = recommended
	}
	return cfg
}

// perWalletFootprintMB is a conservative estimate of the disk space an
// open wallet RPC process's LMDB environment and cache occupy.
const perWalletFootprintMB = 256

// recommendMaxConcurrent scales down ceiling based on free space under
// dataDir; it never recommends more than ceiling, only less, and never
// less than 1.
func recommendMaxConcurrent(dataDir string, ceiling int) int {
	usage := du.NewDiskUsage(dataDir)
	if usage == nil {
		return ceiling
	}
	freeMB := usage.Free() / (1024 * 1024)
	byDisk := int(freeMB / perWalletFootprintMB)
	if byDisk < 1 {
		byDisk = 1
	}
	if byDisk < ceiling {
		return byDisk
	}
	return ceiling
}
