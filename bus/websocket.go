package bus

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/binnacle/nmeabridge/nmea"
)

// envelopeType distinguishes the handful of message shapes exchanged with
// the fusion service over the websocket connection.
type envelopeType string

const (
	envWatch      envelopeType = "watch"
	envUpdate     envelopeType = "update"
	envWrite      envelopeType = "write"
	envLostDevice envelopeType = "lostdevice"
)

// envelope is the JSON message exchanged in both directions, one per
// websocket text message. Only the fields relevant to envelope.Type are
// populated.
type envelope struct {
	ID   string       `json:"id"`
	Type envelopeType `json:"type"`

	Key string `json:"key,omitempty"`
	On  bool   `json:"on,omitempty"`

	Value string `json:"value,omitempty"`

	Kind      nmea.Kind    `json:"kind,omitempty"`
	Reading   nmea.Reading `json:"reading,omitempty"`
	SourceTag string       `json:"sourceTag,omitempty"`

	DevicePrefix string `json:"devicePrefix,omitempty"`
}

// WebsocketBus is a Bus backed by a websocket connection to an external
// sensor-fusion service, the Go-native analogue of the original's
// socket-backed pypilotClient. Every outbound call is a fire-and-forget
// JSON envelope tagged with a UUID for log correlation; inbound "update"
// envelopes are buffered by a background read loop and drained by
// Receive, matching the collaborator's "returns deltas since last call"
// contract.
type WebsocketBus struct {
	conn *websocket.Conn

	mu      sync.Mutex
	pending []Update
	readErr error
}

// DialWebsocketBus connects to url (e.g. "ws://localhost:23322/nmea") and
// starts the background read loop.
func DialWebsocketBus(url string, handshakeTimeout time.Duration) (*WebsocketBus, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("bus: dial %s: %w", url, err)
	}
	b := &WebsocketBus{conn: conn}
	go b.readLoop()
	return b, nil
}

func (b *WebsocketBus) readLoop() {
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			b.mu.Lock()
			b.readErr = err
			b.mu.Unlock()
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue // malformed frame from the service: drop, don't fault
		}
		if env.Type != envUpdate {
			continue
		}
		b.mu.Lock()
		b.pending = append(b.pending, Update{Key: env.Key, Value: env.Value})
		b.mu.Unlock()
	}
}

func (b *WebsocketBus) send(env envelope) error {
	env.ID = uuid.NewString()
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("bus: encode envelope: %w", err)
	}
	if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("bus: write envelope: %w", err)
	}
	return nil
}

// Watch implements Bus.
func (b *WebsocketBus) Watch(key string, on bool) error {
	return b.send(envelope{Type: envWatch, Key: key, On: on})
}

// Receive implements Bus.
func (b *WebsocketBus) Receive() ([]Update, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out, b.readErr
}

// Write implements Bus.
func (b *WebsocketBus) Write(kind nmea.Kind, reading nmea.Reading, sourceTag string) error {
	return b.send(envelope{Type: envWrite, Kind: kind, Reading: reading, SourceTag: sourceTag})
}

// LostDevice implements Bus.
func (b *WebsocketBus) LostDevice(devicePrefix string) error {
	return b.send(envelope{Type: envLostDevice, DevicePrefix: devicePrefix})
}

// Close implements Bus.
func (b *WebsocketBus) Close() error {
	_ = b.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return b.conn.Close()
}
