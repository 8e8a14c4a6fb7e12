package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opsdash/optelem/src/telemetry"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	// wsReadWait bounds the wait for each batch frame. Refreshed on every
	// frame and on pongs, so slow-but-alive servers keep the window open.
	wsReadWait  = 30 * time.Second
	wsWriteWait = 10 * time.Second
)

// wsQuery is the subscription frame sent after the handshake.
type wsQuery struct {
	Device  string `json:"device"`
	IfIndex int    `json:"if_index"`
	Hours   int    `json:"hours"`
}

// WSSource collects readings from the backend's WebSocket feed. After the
// subscription frame the server streams one or more JSON frames, each a
// readings array, and signals completion with a normal close. WSSource is a
// one-shot query like HTTPSource, not a live subscription; incremental
// updates are out of scope.
type WSSource struct {
	URL    string // e.g. ws://host:8080/api/optics/feed
	Dialer *websocket.Dialer
}

// NewWSSource builds a WSSource with a bounded handshake timeout.
func NewWSSource(wsURL string) *WSSource {
	return &WSSource{
		URL:    wsURL,
		Dialer: &websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout},
	}
}

// Fetch implements SampleSource.
func (s *WSSource) Fetch(ctx context.Context, device string, ifIndex int, hours int) ([]telemetry.Reading, error) {
	dialer := s.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	}
	Debugf("[%s if%d] dialing %s", device, ifIndex, s.URL)
	conn, _, err := dialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrFetchFailed, s.URL, err)
	}
	defer conn.Close()

	// Cancel the read loop promptly when the selection is superseded.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(wsQuery{Device: device, IfIndex: ifIndex, Hours: hours}); err != nil {
		return nil, fmt.Errorf("%w: send query: %v", ErrFetchFailed, err)
	}

	conn.SetReadDeadline(time.Now().Add(wsReadWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadWait))
	})

	var all []telemetry.Reading
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				Debugf("[%s if%d] feed closed after %d readings", device, ifIndex, len(all))
				return all, nil
			}
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrFetchFailed, ctx.Err())
			}
			return nil, fmt.Errorf("%w: read feed: %v", ErrFetchFailed, err)
		}
		conn.SetReadDeadline(time.Now().Add(wsReadWait))
		var wire []wireReading
		if err := json.Unmarshal(msg, &wire); err != nil {
			return nil, fmt.Errorf("%w: decode frame: %v", ErrFetchFailed, err)
		}
		all = append(all, toReadings(wire)...)
	}
}
