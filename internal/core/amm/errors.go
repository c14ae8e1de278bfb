package amm

import "errors"

// Error kinds surfaced by the pool engine. Every failure aborts the
// whole call with no partial state retained.
var (
	// ErrZeroAmount rejects zero or negative input amounts.
	ErrZeroAmount = errors.New("zero amount")
	// ErrIdenticalAssets rejects a pair of the same asset.
	ErrIdenticalAssets = errors.New("identical assets")
	// ErrPairExists rejects creating a second pool for a pair.
	ErrPairExists = errors.New("pair already exists")
	// ErrInvalidPool rejects registry lookups for unknown pool ids or
	// pairs.
	ErrInvalidPool = errors.New("invalid pool")
	// ErrInsufficientInitialLiquidity rejects a first deposit whose
	// geometric mean does not exceed the minimum share burn.
	ErrInsufficientInitialLiquidity = errors.New("insufficient initial liquidity")
	// ErrInsufficientLiquidity rejects swaps against empty reserves or
	// unrecognized input assets, imbalanced deposits, and deposits too
	// small to mint a share.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	// ErrInsufficientShares rejects burning more shares than held.
	ErrInsufficientShares = errors.New("insufficient shares")
	// ErrSlippageExceeded rejects a swap whose output is below the
	// caller's minimum.
	ErrSlippageExceeded = errors.New("slippage exceeded")
	// ErrFlashLoanNotRepaid rejects a flash loan whose callback left
	// the pool short of principal plus fee.
	ErrFlashLoanNotRepaid = errors.New("flash loan not repaid")
	// ErrCallbackFailed wraps an error returned by the borrower's
	// callback; the whole loan is rolled back.
	ErrCallbackFailed = errors.New("flash loan callback failed")
	// ErrReentrantCall rejects any mutating entry while another
	// mutating call on the same pool is in flight.
	ErrReentrantCall = errors.New("reentrant call")
	// ErrPoolPaused rejects mutations on a paused pool.
	ErrPoolPaused = errors.New("pool paused")
	// ErrNoFeesAccrued rejects zero-balance fee claims.
	ErrNoFeesAccrued = errors.New("no fees accrued")
	// ErrUnauthorized rejects governance/treasury-gated calls from
	// other accounts.
	ErrUnauthorized = errors.New("unauthorized")
)
