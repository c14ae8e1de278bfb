package rpc

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/helixdex/godexd/internal/core/events"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsSendBuffer   = 256
)

// EventStream upgrades connections and replays the live analytics feed
// to each subscriber. Slow subscribers are disconnected rather than
// allowed to stall the feed.
type EventStream struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewEventStream(bus *events.Bus, log zerolog.Logger) *EventStream {
	return &EventStream{
		bus: bus,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

func (s *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	ch, cancel := s.bus.Subscribe(wsSendBuffer)
	go s.writeLoop(conn, ch, cancel)
	go s.readLoop(conn, cancel)
}

// writeLoop pushes events and periodic pings until the subscription or
// the connection dies.
func (s *EventStream) writeLoop(conn *websocket.Conn, ch <-chan events.Event, cancel func()) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		cancel()
		conn.Close()
	}()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				s.log.Debug().Err(err).Msg("websocket write failed, dropping subscriber")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so pongs and close frames are
// processed; any read error tears the subscription down.
func (s *EventStream) readLoop(conn *websocket.Conn, cancel func()) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
