package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meridianhq/riskwatch/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// PushFeed is a WebSocket client for the upstream live update channel. It
// manages the connection lifecycle and reconnects with exponential backoff;
// every raw message is handed to the caller untouched so parsing and
// validation stay in one place.
type PushFeed struct {
	wsURL    string
	channels []string
	logger   *slog.Logger
}

// NewPushFeed creates a feed for the given WebSocket endpoint subscribing to
// the given channels, e.g. "positions" and "risk".
func NewPushFeed(wsURL string, channels []string, logger *slog.Logger) *PushFeed {
	return &PushFeed{
		wsURL:    wsURL,
		channels: channels,
		logger:   logger.With(slog.String("component", "push_feed")),
	}
}

// Run connects and consumes messages until ctx is cancelled, reconnecting
// with backoff on disconnect.
func (f *PushFeed) Run(ctx context.Context, onMessage func(raw []byte)) error {
	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := f.runConnection(ctx, onMessage)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("push channel disconnected, reconnecting",
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runConnection dials, subscribes, and reads messages until the connection
// drops or ctx is cancelled.
func (f *PushFeed) runConnection(ctx context.Context, onMessage func(raw []byte)) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("upstream/ws: connect: %w", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := f.subscribe(conn); err != nil {
		return err
	}
	f.logger.Info("push channel subscribed",
		slog.Int("channels", len(f.channels)),
	)

	// Close the connection when ctx is cancelled so the blocking read
	// returns promptly.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("upstream/ws: read: %w", domain.ErrWSDisconnect)
		}
		onMessage(raw)
	}
}

// subscribe sends the channel subscription command.
func (f *PushFeed) subscribe(conn *websocket.Conn) error {
	cmd := map[string]any{
		"type":     "subscribe",
		"channels": f.channels,
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("upstream/ws: encode subscribe: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("upstream/ws: subscribe: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PushSource = (*PushFeed)(nil)
