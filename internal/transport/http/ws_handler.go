package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/app"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type subscribedPayload struct {
	Subscribers int `json:"subscribers"`
}

// EventFeed streams domain events to admin dashboards over WebSocket.
type EventFeed struct {
	events   *app.Broadcaster
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func newEventFeed(events *app.Broadcaster, allowedOrigins []string, logger *zap.Logger) *EventFeed {
	return &EventFeed{
		events: events,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// ServeWS upgrades the request and forwards every published event until the client leaves.
func (f *EventFeed) ServeWS(w http.ResponseWriter, r *http.Request) {
	if f.events == nil {
		http.Error(w, "event feed disabled", http.StatusServiceUnavailable)
		return
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := f.events.Subscribe()
	defer cancel()

	// The feed is one-way; reading only drains control frames and notices the close.
	// The server's read timeout still applies to the hijacked conn, so pongs push it out.
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(v); err != nil {
			f.logger.Debug("ws write error", zap.Error(err))
			return false
		}
		return true
	}

	if !write(outboundMessage[subscribedPayload]{Type: "subscribed", Payload: subscribedPayload{Subscribers: f.events.Subscribers()}}) {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			if !write(outboundMessage[any]{Type: "event", Payload: evt}) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-clientGone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
