// Package rpc serves the read-only JSON-RPC surface and the websocket
// event stream. Mutations never enter through here; the engines are
// driven in-process and rpc only observes them, serialized against the
// daemon's writer through a shared lock.
package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixdex/godexd/internal/core/events"
)

// Handler is one registered rpc method. Params arrive as raw JSON; the
// method decodes what it needs.
type Handler func(params json.RawMessage) (interface{}, error)

// Server is the JSON-RPC dispatcher. Methods are registered once at
// construction; the registry is read-only afterwards.
type Server struct {
	methods map[string]Handler
	lock    sync.Locker
	log     zerolog.Logger
	started time.Time
}

func NewServer(views *Views, bus *events.Bus, lock sync.Locker, log zerolog.Logger) *Server {
	s := &Server{
		methods: make(map[string]Handler),
		lock:    lock,
		log:     log,
		started: time.Now(),
	}
	s.register(views, bus)
	return s
}

func (s *Server) register(v *Views, bus *events.Bus) {
	s.methods["server_info"] = s.serverInfo(v)
	s.methods["pool_list"] = v.poolList
	s.methods["pool_reserves"] = v.poolReserves
	s.methods["pool_quote"] = v.poolQuote
	s.methods["farm_pools"] = v.farmPools
	s.methods["farm_pending"] = v.farmPending
	s.methods["lending_health"] = v.lendingHealth
	s.methods["orderbook_get"] = v.orderbookGet
	s.methods["orderbook_open"] = v.orderbookOpen
	s.methods["events_recent"] = func(params json.RawMessage) (interface{}, error) {
		var req struct {
			Limit int `json:"limit"`
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &req); err != nil {
				return nil, fmt.Errorf("bad params: %w", err)
			}
		}
		return bus.Recent(req.Limit), nil
	}
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// ServeHTTP dispatches a single JSON-RPC request.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, -32700, "parse error")
		return
	}
	handler, ok := s.methods[req.Method]
	if !ok {
		writeError(w, req.ID, -32601, fmt.Sprintf("method %q not found", req.Method))
		return
	}

	s.lock.Lock()
	result, err := handler(req.Params)
	s.lock.Unlock()

	if err != nil {
		s.log.Debug().Err(err).Str("method", req.Method).Msg("rpc method failed")
		writeError(w, req.ID, -32000, err.Error())
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"result":  result,
		"id":      req.ID,
	})
}

func (s *Server) serverInfo(v *Views) Handler {
	return func(json.RawMessage) (interface{}, error) {
		info := v.serverInfo()
		info["uptime_seconds"] = int64(time.Since(s.started).Seconds())
		return info, nil
	}
}

func writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"error":   map[string]interface{}{"code": code, "message": message},
		"id":      id,
	})
}
