package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kiwari-pos/terminal/internal/session"
	"github.com/kiwari-pos/terminal/internal/snapshot"
	log "github.com/sirupsen/logrus"
)

// EventOrderSnapshot is the push message carrying a fresh server snapshot.
const EventOrderSnapshot = "order.snapshot"

// pushEvent mirrors the backend's push frame.
type pushEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Subscriber opens the backend push stream for one order at a time.
type Subscriber struct {
	wsURL  string
	dialer *websocket.Dialer
	logger *log.Entry
}

// NewSubscriber creates a Subscriber for wsURL (ws:// or wss://).
func NewSubscriber(wsURL string, handshakeTimeout time.Duration, logger *log.Entry) *Subscriber {
	if logger == nil {
		logger = log.New().WithField("component", "subscriber")
	}
	return &Subscriber{
		wsURL:  strings.TrimRight(wsURL, "/"),
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment},
		logger: logger,
	}
}

// Subscribe streams snapshots of orderID until ctx is cancelled or the
// connection drops. The channel is closed when the stream ends; a drop is
// reported as a final Update with Err set.
func (s *Subscriber) Subscribe(ctx context.Context, orderID string) (<-chan snapshot.Update, error) {
	endpoint := s.wsURL + "/ws/orders/" + url.PathEscape(orderID)

	header := http.Header{}
	if token := session.FromContext(ctx).BearerToken(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := s.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", endpoint, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	updates := make(chan snapshot.Update, 16)
	entry := s.logger.WithField("order_id", orderID)

	// Closing the conn unblocks ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	go func() {
		defer close(updates)
		defer stop()
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					entry.WithError(err).Warn("order stream dropped")
					emit(ctx, updates, snapshot.Update{OrderID: orderID, Err: err})
				}
				return
			}

			var ev pushEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				entry.WithError(err).Warn("skipping undecodable push frame")
				continue
			}
			if ev.Type != EventOrderSnapshot {
				continue
			}

			var srv snapshot.ServerSnapshot
			if err := json.Unmarshal(ev.Payload, &srv); err != nil {
				entry.WithError(err).Warn("skipping undecodable snapshot")
				continue
			}
			if !emit(ctx, updates, snapshot.Update{OrderID: orderID, Snapshot: snapshot.FromServerSnapshot(&srv)}) {
				return
			}
		}
	}()

	return updates, nil
}

func emit(ctx context.Context, ch chan<- snapshot.Update, u snapshot.Update) bool {
	select {
	case ch <- u:
		return true
	case <-ctx.Done():
		return false
	}
}
