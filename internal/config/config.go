// Package config loads and validates the daemon configuration:
// defaults first, then an optional TOML file, then GODEXD_ environment
// variables.
package config

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Config is the complete godexd configuration.
type Config struct {
	Chain    ChainConfig    `toml:"chain" mapstructure:"chain"`
	Fees     FeesConfig     `toml:"fees" mapstructure:"fees"`
	Oracle   OracleConfig   `toml:"oracle" mapstructure:"oracle"`
	Log      LogConfig      `toml:"log" mapstructure:"log"`
	RPC      RPCConfig      `toml:"rpc" mapstructure:"rpc"`
	Events   EventsConfig   `toml:"events" mapstructure:"events"`
	Snapshot SnapshotConfig `toml:"snapshot" mapstructure:"snapshot"`
	Genesis  []Allocation   `toml:"genesis" mapstructure:"genesis"`
}

// ChainConfig names the privileged accounts and the block cadence.
type ChainConfig struct {
	Governance   string `toml:"governance" mapstructure:"governance"`
	Treasury     string `toml:"treasury" mapstructure:"treasury"`
	BlockSeconds uint64 `toml:"block_seconds" mapstructure:"block_seconds"`
}

// FeesConfig carries every fee knob, in basis points except the share
// burn.
type FeesConfig struct {
	ProtocolBps      uint32 `toml:"protocol_bps" mapstructure:"protocol_bps"`
	LPBps            uint32 `toml:"lp_bps" mapstructure:"lp_bps"`
	FlashLoanBps     uint32 `toml:"flash_loan_bps" mapstructure:"flash_loan_bps"`
	FarmClaimBps     uint32 `toml:"farm_claim_bps" mapstructure:"farm_claim_bps"`
	MinimumShareBurn int64  `toml:"minimum_share_burn" mapstructure:"minimum_share_burn"`
}

// OracleConfig bounds how old a price may be, in chain time units.
type OracleConfig struct {
	StalenessThreshold uint64 `toml:"staleness_threshold" mapstructure:"staleness_threshold"`
}

// LogConfig selects level and output format.
type LogConfig struct {
	Level   string `toml:"level" mapstructure:"level"`
	Console bool   `toml:"console" mapstructure:"console"`
}

// RPCConfig configures the JSON-RPC and websocket listeners.
type RPCConfig struct {
	Listen string `toml:"listen" mapstructure:"listen"`
}

// EventsConfig selects the analytics journal backend.
type EventsConfig struct {
	Driver string `toml:"driver" mapstructure:"driver"`
	DSN    string `toml:"dsn" mapstructure:"dsn"`
	Window int    `toml:"window" mapstructure:"window"`
}

// SnapshotConfig configures state persistence. An empty Dir disables
// snapshots.
type SnapshotConfig struct {
	Dir            string `toml:"dir" mapstructure:"dir"`
	IntervalBlocks uint64 `toml:"interval_blocks" mapstructure:"interval_blocks"`
}

// Allocation is one genesis balance grant.
type Allocation struct {
	Account string `toml:"account" mapstructure:"account"`
	Asset   string `toml:"asset" mapstructure:"asset"`
	Amount  string `toml:"amount" mapstructure:"amount"`
}

// MaxProtocolFeeBps mirrors the pool engine's hard cap; configuration
// above it is rejected before any engine sees it.
const MaxProtocolFeeBps = 100

const bpsDenom = 10_000

// Validate rejects configurations the daemon must not start with.
func Validate(cfg *Config) error {
	if cfg.Chain.Governance == "" {
		return fmt.Errorf("chain.governance account is required")
	}
	if cfg.Chain.Treasury == "" {
		return fmt.Errorf("chain.treasury account is required")
	}
	if cfg.Chain.BlockSeconds == 0 {
		return fmt.Errorf("chain.block_seconds must be positive")
	}
	if cfg.Fees.ProtocolBps > MaxProtocolFeeBps {
		return fmt.Errorf("fees.protocol_bps %d exceeds cap %d", cfg.Fees.ProtocolBps, MaxProtocolFeeBps)
	}
	if cfg.Fees.LPBps > bpsDenom {
		return fmt.Errorf("fees.lp_bps %d exceeds denominator", cfg.Fees.LPBps)
	}
	if cfg.Fees.FlashLoanBps > bpsDenom {
		return fmt.Errorf("fees.flash_loan_bps %d exceeds denominator", cfg.Fees.FlashLoanBps)
	}
	if cfg.Fees.FarmClaimBps > bpsDenom {
		return fmt.Errorf("fees.farm_claim_bps %d exceeds denominator", cfg.Fees.FarmClaimBps)
	}
	if cfg.Fees.MinimumShareBurn <= 0 {
		return fmt.Errorf("fees.minimum_share_burn must be positive")
	}
	if cfg.Oracle.StalenessThreshold == 0 {
		return fmt.Errorf("oracle.staleness_threshold must be positive")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug/info/warn/error", cfg.Log.Level)
	}
	if cfg.RPC.Listen == "" {
		return fmt.Errorf("rpc.listen address is required")
	}
	switch cfg.Events.Driver {
	case "sqlite", "postgres", "none":
	default:
		return fmt.Errorf("events.driver %q is not one of sqlite/postgres/none", cfg.Events.Driver)
	}
	if cfg.Events.Driver != "none" && cfg.Events.DSN == "" {
		return fmt.Errorf("events.dsn is required for driver %q", cfg.Events.Driver)
	}
	for i, alloc := range cfg.Genesis {
		if alloc.Account == "" || alloc.Asset == "" {
			return fmt.Errorf("genesis[%d]: account and asset are required", i)
		}
		amount, ok := sdkmath.NewIntFromString(alloc.Amount)
		if !ok || !amount.IsPositive() {
			return fmt.Errorf("genesis[%d]: amount %q is not a positive integer", i, alloc.Amount)
		}
	}
	return nil
}
