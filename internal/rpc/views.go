package rpc

import (
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/helixdex/godexd/internal/core/amm"
	"github.com/helixdex/godexd/internal/core/farm"
	"github.com/helixdex/godexd/internal/core/lending"
	"github.com/helixdex/godexd/internal/core/orderbook"
	"github.com/helixdex/godexd/internal/core/router"
	"github.com/helixdex/godexd/internal/core/types"
)

// Views adapts the engines to rpc methods. All methods are read-only.
type Views struct {
	Registry *amm.Registry
	Farm     *farm.Farm
	Lending  *lending.Lending
	Book     *orderbook.Book
	Router   *router.Router
	Clock    types.Clock
	Version  string
}

func (v *Views) serverInfo() map[string]interface{} {
	return map[string]interface{}{
		"version":      v.Version,
		"height":       v.Clock.Height(),
		"time":         v.Clock.Now(),
		"pools":        len(v.Registry.Pools()),
		"farm_pools":   v.Farm.PoolCount(),
		"markets":      v.Lending.MarketCount(),
		"orders":       len(v.Book.Orders()),
	}
}

type poolView struct {
	ID          uint64 `json:"id"`
	AssetA      string `json:"asset_a"`
	AssetB      string `json:"asset_b"`
	ReserveA    string `json:"reserve_a"`
	ReserveB    string `json:"reserve_b"`
	TotalShares string `json:"total_shares"`
	Paused      bool   `json:"paused"`
}

func viewPool(p *amm.Pool) poolView {
	a, b := p.Assets()
	ra, rb := p.GetReserves()
	return poolView{
		ID:          p.ID(),
		AssetA:      string(a),
		AssetB:      string(b),
		ReserveA:    ra.String(),
		ReserveB:    rb.String(),
		TotalShares: p.TotalShares().String(),
		Paused:      p.Paused(),
	}
}

func (v *Views) poolList(json.RawMessage) (interface{}, error) {
	pools := v.Registry.Pools()
	out := make([]poolView, 0, len(pools))
	for _, p := range pools {
		out = append(out, viewPool(p))
	}
	return out, nil
}

func (v *Views) poolReserves(params json.RawMessage) (interface{}, error) {
	var req struct {
		Pool uint64 `json:"pool"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("bad params: %w", err)
	}
	p, err := v.Registry.Pool(req.Pool)
	if err != nil {
		return nil, err
	}
	view := viewPool(p)
	cumA, cumB, last := p.PriceCumulatives()
	return map[string]interface{}{
		"pool":              view,
		"price_cumulative_a": cumA.String(),
		"price_cumulative_b": cumB.String(),
		"last_price_update":  last,
	}, nil
}

func (v *Views) poolQuote(params json.RawMessage) (interface{}, error) {
	var req struct {
		AssetIn  string `json:"asset_in"`
		AssetOut string `json:"asset_out"`
		AmountIn string `json:"amount_in"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("bad params: %w", err)
	}
	amountIn, ok := sdkmath.NewIntFromString(req.AmountIn)
	if !ok {
		return nil, fmt.Errorf("bad amount_in %q", req.AmountIn)
	}
	out, err := v.Router.QuoteSwap(types.AssetID(req.AssetIn), types.AssetID(req.AssetOut), amountIn)
	if err != nil {
		return nil, err
	}
	return map[string]string{"amount_out": out.String()}, nil
}

func (v *Views) farmPools(json.RawMessage) (interface{}, error) {
	out := make([]map[string]interface{}, 0, v.Farm.PoolCount())
	for id := 0; id < v.Farm.PoolCount(); id++ {
		info, err := v.Farm.Pool(uint64(id))
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]interface{}{
			"id":             info.ID,
			"staked_asset":   string(info.StakedAsset),
			"reward_asset":   string(info.RewardAsset),
			"rate_per_block": info.RatePerBlock.String(),
			"total_staked":   info.TotalStaked.String(),
		})
	}
	return out, nil
}

func (v *Views) farmPending(params json.RawMessage) (interface{}, error) {
	var req struct {
		Pool    uint64 `json:"pool"`
		Account string `json:"account"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("bad params: %w", err)
	}
	acct := types.AccountID(req.Account)
	pending, err := v.Farm.PendingReward(req.Pool, acct)
	if err != nil {
		return nil, err
	}
	stake, err := v.Farm.StakeOf(req.Pool, acct)
	if err != nil {
		return nil, err
	}
	lock, err := v.Farm.LockOf(req.Pool, acct)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"pending":      pending.String(),
		"stake":        stake.String(),
		"locked":       lock.Amount.String(),
		"unlock_block": lock.UnlockBlock,
		"boost":        lock.BoostMultiplier,
	}, nil
}

func (v *Views) lendingHealth(params json.RawMessage) (interface{}, error) {
	var req struct {
		Market  int    `json:"market"`
		Account string `json:"account"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("bad params: %w", err)
	}
	acct := types.AccountID(req.Account)
	pos, err := v.Lending.PositionOf(req.Market, acct)
	if err != nil {
		return nil, err
	}
	health, err := v.Lending.PositionHealth(req.Market, acct)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"collateral": pos.Collateral.String(),
		"debt":       pos.Debt.String(),
		"health_pct": health.String(),
	}, nil
}

type orderView struct {
	ID           uint64 `json:"id"`
	Owner        string `json:"owner"`
	AssetIn      string `json:"asset_in"`
	AssetOut     string `json:"asset_out"`
	AmountIn     string `json:"amount_in"`
	MinAmountOut string `json:"min_amount_out"`
	Status       string `json:"status"`
	PlacedAt     uint64 `json:"placed_at"`
	AmountOut    string `json:"amount_out"`
}

func viewOrder(ord orderbook.Order) orderView {
	return orderView{
		ID:           ord.ID,
		Owner:        string(ord.Owner),
		AssetIn:      string(ord.AssetIn),
		AssetOut:     string(ord.AssetOut),
		AmountIn:     ord.AmountIn.String(),
		MinAmountOut: ord.MinAmountOut.String(),
		Status:       ord.Status.String(),
		PlacedAt:     ord.PlacedAt,
		AmountOut:    ord.AmountOut.String(),
	}
}

func (v *Views) orderbookGet(params json.RawMessage) (interface{}, error) {
	var req struct {
		Order uint64 `json:"order"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("bad params: %w", err)
	}
	ord, err := v.Book.Get(req.Order)
	if err != nil {
		return nil, err
	}
	return viewOrder(ord), nil
}

func (v *Views) orderbookOpen(json.RawMessage) (interface{}, error) {
	open := v.Book.OpenOrders()
	out := make([]orderView, 0, len(open))
	for _, ord := range open {
		out = append(out, viewOrder(ord))
	}
	return out, nil
}
