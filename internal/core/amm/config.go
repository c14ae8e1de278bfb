package amm

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/helixdex/godexd/internal/core/types"
)

// Fee and share-burn parameters, fixed per registry at construction and
// adjustable afterwards only through the governance setters on Registry.
const (
	// DefaultProtocolFeeBps is the protocol's cut of every swap.
	DefaultProtocolFeeBps uint32 = 5
	// DefaultLPFeeBps is the liquidity-provider cut of every swap.
	DefaultLPFeeBps uint32 = 25
	// DefaultFlashLoanFeeBps is charged on flash-loan principal.
	DefaultFlashLoanFeeBps uint32 = 8
	// MaxProtocolFeeBps is the hard cap governance cannot exceed.
	MaxProtocolFeeBps uint32 = 100
	// DefaultMinimumShareBurn is withheld from the first depositor to
	// pin the share price away from the zero-reserve edge.
	DefaultMinimumShareBurn int64 = 1000
)

// Config carries the pool parameters shared by every pool in a
// registry.
type Config struct {
	ProtocolFeeBps   uint32
	LPFeeBps         uint32
	FlashLoanFeeBps  uint32
	MinimumShareBurn sdkmath.Int
	Governance       types.AccountID
	Treasury         types.AccountID
}

func DefaultConfig(governance, treasury types.AccountID) Config {
	return Config{
		ProtocolFeeBps:   DefaultProtocolFeeBps,
		LPFeeBps:         DefaultLPFeeBps,
		FlashLoanFeeBps:  DefaultFlashLoanFeeBps,
		MinimumShareBurn: sdkmath.NewInt(DefaultMinimumShareBurn),
		Governance:       governance,
		Treasury:         treasury,
	}
}

func (c Config) Validate() error {
	if c.ProtocolFeeBps > MaxProtocolFeeBps {
		return fmt.Errorf("protocol fee %d bps exceeds cap %d", c.ProtocolFeeBps, MaxProtocolFeeBps)
	}
	if c.MinimumShareBurn.IsNil() || c.MinimumShareBurn.IsNegative() {
		return fmt.Errorf("minimum share burn must be non-negative")
	}
	if c.Governance == "" || c.Treasury == "" {
		return fmt.Errorf("governance and treasury accounts are required")
	}
	return nil
}
