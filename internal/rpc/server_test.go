package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/helixdex/godexd/internal/core/amm"
	"github.com/helixdex/godexd/internal/core/events"
	"github.com/helixdex/godexd/internal/core/farm"
	"github.com/helixdex/godexd/internal/core/ledger"
	"github.com/helixdex/godexd/internal/core/lending"
	"github.com/helixdex/godexd/internal/core/orderbook"
	"github.com/helixdex/godexd/internal/core/oracle"
	"github.com/helixdex/godexd/internal/core/router"
	"github.com/helixdex/godexd/internal/core/types"
	"github.com/rs/zerolog"
)

const (
	gov      = types.AccountID("gov")
	treasury = types.AccountID("treasury")
	alice    = types.AccountID("alice")

	atom = types.AssetID("ATOM")
	usdc = types.AssetID("USDC")
)

type env struct {
	bus    *events.Bus
	server *Server
	stream *EventStream
}

func newEnv(t *testing.T) *env {
	t.Helper()
	led := ledger.NewInMemory()
	clock := types.NewManualClock(100, 1_000_000)
	bus := events.NewBus(64)
	reg, err := amm.NewRegistry(led, clock, amm.DefaultConfig(gov, treasury), bus)
	require.NoError(t, err)
	f, err := farm.New(led, clock, farm.DefaultConfig(gov, treasury), bus)
	require.NoError(t, err)
	po := oracle.NewManual(gov, clock)
	lend := lending.New(led, clock, po, f, gov, bus)
	r := router.New(reg, f, clock)
	book := orderbook.New(led, clock, r, gov, bus)

	require.NoError(t, led.Mint(alice, atom, sdkmath.NewInt(10_000_000)))
	require.NoError(t, led.Mint(alice, usdc, sdkmath.NewInt(10_000_000)))
	_, err = r.CreatePair(atom, usdc)
	require.NoError(t, err)
	_, err = r.AddLiquidity(alice, atom, usdc, sdkmath.NewInt(1000), sdkmath.NewInt(2000), 0)
	require.NoError(t, err)

	views := &Views{
		Registry: reg, Farm: f, Lending: lend, Book: book,
		Router: r, Clock: clock, Version: "test",
	}
	var mu sync.Mutex
	return &env{
		bus:    bus,
		server: NewServer(views, bus, &mu, zerolog.Nop()),
		stream: NewEventStream(bus, zerolog.Nop()),
	}
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func call(t *testing.T, h http.Handler, method string, params interface{}) rpcResponse {
	t.Helper()
	body := map[string]interface{}{"jsonrpc": "2.0", "method": method, "id": 1}
	if params != nil {
		body["params"] = params
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw)))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp rpcResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestServerInfo(t *testing.T) {
	e := newEnv(t)
	resp := call(t, e.server, "server_info", nil)
	require.Nil(t, resp.Error)

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Result, &info))
	require.Equal(t, "test", info["version"])
	require.Equal(t, float64(1), info["pools"])
}

func TestPoolReserves(t *testing.T) {
	e := newEnv(t)
	resp := call(t, e.server, "pool_reserves", map[string]interface{}{"pool": 1})
	require.Nil(t, resp.Error)

	var out struct {
		Pool struct {
			ReserveA string `json:"reserve_a"`
			ReserveB string `json:"reserve_b"`
		} `json:"pool"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	require.Equal(t, "1000", out.Pool.ReserveA)
	require.Equal(t, "2000", out.Pool.ReserveB)

	resp = call(t, e.server, "pool_reserves", map[string]interface{}{"pool": 99})
	require.NotNil(t, resp.Error)
	require.Contains(t, resp.Error.Message, "invalid pool")
}

func TestPoolQuote(t *testing.T) {
	e := newEnv(t)
	resp := call(t, e.server, "pool_quote", map[string]interface{}{
		"asset_in": "ATOM", "asset_out": "USDC", "amount_in": "100",
	})
	require.Nil(t, resp.Error)

	var out map[string]string
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	require.Equal(t, "181", out["amount_out"])
}

func TestUnknownMethod(t *testing.T) {
	e := newEnv(t)
	resp := call(t, e.server, "no_such_method", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, -32601, resp.Error.Code)
}

func TestEventsRecent(t *testing.T) {
	e := newEnv(t)
	resp := call(t, e.server, "events_recent", map[string]interface{}{"limit": 10})
	require.Nil(t, resp.Error)

	var evs []events.Event
	require.NoError(t, json.Unmarshal(resp.Result, &evs))
	// Pool creation and the liquidity deposit from env setup.
	require.Len(t, evs, 2)
	require.Equal(t, events.KindPoolCreated, evs[0].Kind)
	require.Equal(t, events.KindLiquidityAdded, evs[1].Kind)
}

func TestEventStream(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.stream)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the subscription a moment to attach before emitting.
	time.Sleep(50 * time.Millisecond)
	e.bus.Record(events.Event{Kind: events.KindSwap, Fields: map[string]string{"pool": "1"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev events.Event
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, events.KindSwap, ev.Kind)
	require.Equal(t, "1", ev.Fields["pool"])
}
