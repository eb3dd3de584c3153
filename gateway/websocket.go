package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventWebSocket streams inbound messages and interactions from the platform
// bridge. It reconnects with a bounded retry budget and fans events out to
// registered callbacks.

type MessageCallback func(message *Message)

type InteractionCallback func(interaction *Interaction)

type StateCallback func(state WebSocketState)

type WebSocketState string

const (
	WSStateConnecting   WebSocketState = "CONNECTING"
	WSStateConnected    WebSocketState = "CONNECTED"
	WSStateDisconnected WebSocketState = "DISCONNECTED"
	WSStateReconnecting WebSocketState = "RECONNECTING"
	WSStateFailed       WebSocketState = "FAILED"
)

func (s WebSocketState) String() string {
	return string(s)
}

type eventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	eventMessage     = "message"
	eventInteraction = "interaction"
)

type messageCallbackEntry struct {
	id       int
	callback MessageCallback
}

type interactionCallbackEntry struct {
	id       int
	callback InteractionCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

type EventWebSocket struct {
	wsURL                string
	conn                 *websocket.Conn
	state                WebSocketState
	stateMu              sync.RWMutex
	messageCallbacks     []messageCallbackEntry
	interactionCallbacks []interactionCallbackEntry
	stateCallbacks       []stateCallbackEntry
	nextCallbackID       int
	callbacksMu          sync.RWMutex
	reconnectAttempts    int
	maxReconnectAttempts int
	reconnectDelay       time.Duration
	logger               *zap.Logger
	stopCh               chan struct{}
	stopOnce             sync.Once
	listenerWg           sync.WaitGroup
}

func NewEventWebSocket(wsURL string, maxReconnectAttempts int, reconnectDelay time.Duration, logger *zap.Logger) *EventWebSocket {
	return &EventWebSocket{
		wsURL:                wsURL,
		state:                WSStateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		reconnectDelay:       reconnectDelay,
		logger:               logger,
		stopCh:               make(chan struct{}),
		nextCallbackID:       1,
	}
}

func (ws *EventWebSocket) Connect(ctx context.Context) error {
	ws.stateMu.Lock()
	if ws.state == WSStateConnected || ws.state == WSStateConnecting {
		ws.stateMu.Unlock()
		ws.logger.Warn("Event websocket already connected or connecting")
		return nil
	}
	ws.stateMu.Unlock()

	ws.setState(WSStateConnecting)

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, ws.wsURL, nil)
	if err != nil {
		ws.logger.Error("Failed to connect event websocket", zap.Error(err))
		ws.setState(WSStateFailed)
		ws.scheduleReconnect(ctx)
		return err
	}

	ws.conn = conn
	ws.setState(WSStateConnected)
	ws.reconnectAttempts = 0

	ws.logger.Info("Event websocket connected", zap.String("url", ws.wsURL))

	ws.listenerWg.Add(1)
	go ws.listen(ctx)

	return nil
}

func (ws *EventWebSocket) listen(ctx context.Context) {
	defer ws.listenerWg.Done()
	defer ws.logger.Info("Event websocket listener stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ws.stopCh:
			return
		default:
			if ws.conn == nil {
				return
			}

			_, data, err := ws.conn.ReadMessage()
			if err != nil {
				select {
				case <-ws.stopCh:
					return
				default:
				}
				ws.logger.Error("Event websocket read error", zap.Error(err))
				ws.setState(WSStateDisconnected)
				ws.scheduleReconnect(ctx)
				return
			}

			ws.handleEvent(data)
		}
	}
}

func (ws *EventWebSocket) handleEvent(data []byte) {
	var envelope eventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		sample := string(data)
		if len(sample) > 200 {
			sample = sample[:200]
		}
		ws.logger.Error("Failed to parse event envelope",
			zap.Error(err),
			zap.String("data", sample),
		)
		return
	}

	switch envelope.Type {
	case eventMessage:
		var message Message
		if err := json.Unmarshal(envelope.Data, &message); err != nil {
			ws.logger.Error("Failed to parse message event", zap.Error(err))
			return
		}
		for _, entry := range ws.snapshotMessageCallbacks() {
			entry.callback(&message)
		}

	case eventInteraction:
		var interaction Interaction
		if err := json.Unmarshal(envelope.Data, &interaction); err != nil {
			ws.logger.Error("Failed to parse interaction event", zap.Error(err))
			return
		}
		for _, entry := range ws.snapshotInteractionCallbacks() {
			entry.callback(&interaction)
		}

	default:
		ws.logger.Debug("Ignoring unknown event type", zap.String("type", envelope.Type))
	}
}

func (ws *EventWebSocket) snapshotMessageCallbacks() []messageCallbackEntry {
	ws.callbacksMu.RLock()
	defer ws.callbacksMu.RUnlock()
	callbacks := make([]messageCallbackEntry, len(ws.messageCallbacks))
	copy(callbacks, ws.messageCallbacks)
	return callbacks
}

func (ws *EventWebSocket) snapshotInteractionCallbacks() []interactionCallbackEntry {
	ws.callbacksMu.RLock()
	defer ws.callbacksMu.RUnlock()
	callbacks := make([]interactionCallbackEntry, len(ws.interactionCallbacks))
	copy(callbacks, ws.interactionCallbacks)
	return callbacks
}

func (ws *EventWebSocket) scheduleReconnect(ctx context.Context) {
	ws.reconnectAttempts++

	if ws.reconnectAttempts > ws.maxReconnectAttempts {
		ws.logger.Error("Max reconnect attempts reached",
			zap.Int("attempts", ws.reconnectAttempts),
		)
		ws.setState(WSStateFailed)
		return
	}

	ws.setState(WSStateReconnecting)

	ws.logger.Info("Scheduling reconnect",
		zap.Int("attempt", ws.reconnectAttempts),
		zap.Int("max", ws.maxReconnectAttempts),
		zap.Duration("delay", ws.reconnectDelay),
	)

	go func() {
		select {
		case <-time.After(ws.reconnectDelay):
			if err := ws.Connect(ctx); err != nil {
				ws.logger.Error("Reconnect failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		case <-ws.stopCh:
			return
		}
	}()
}

// OnMessage registers a callback for inbound chat messages and returns a
// function that removes it again.
func (ws *EventWebSocket) OnMessage(callback MessageCallback) func() {
	ws.callbacksMu.Lock()
	id := ws.nextCallbackID
	ws.nextCallbackID++
	ws.messageCallbacks = append(ws.messageCallbacks, messageCallbackEntry{id: id, callback: callback})
	ws.callbacksMu.Unlock()

	return func() {
		ws.callbacksMu.Lock()
		defer ws.callbacksMu.Unlock()
		for i, entry := range ws.messageCallbacks {
			if entry.id == id {
				ws.messageCallbacks = append(ws.messageCallbacks[:i], ws.messageCallbacks[i+1:]...)
				break
			}
		}
	}
}

// OnInteraction registers a callback for inbound interactions and returns a
// function that removes it again.
func (ws *EventWebSocket) OnInteraction(callback InteractionCallback) func() {
	ws.callbacksMu.Lock()
	id := ws.nextCallbackID
	ws.nextCallbackID++
	ws.interactionCallbacks = append(ws.interactionCallbacks, interactionCallbackEntry{id: id, callback: callback})
	ws.callbacksMu.Unlock()

	return func() {
		ws.callbacksMu.Lock()
		defer ws.callbacksMu.Unlock()
		for i, entry := range ws.interactionCallbacks {
			if entry.id == id {
				ws.interactionCallbacks = append(ws.interactionCallbacks[:i], ws.interactionCallbacks[i+1:]...)
				break
			}
		}
	}
}

func (ws *EventWebSocket) OnStateChange(callback StateCallback) func() {
	ws.callbacksMu.Lock()
	id := ws.nextCallbackID
	ws.nextCallbackID++
	ws.stateCallbacks = append(ws.stateCallbacks, stateCallbackEntry{id: id, callback: callback})
	ws.callbacksMu.Unlock()

	return func() {
		ws.callbacksMu.Lock()
		defer ws.callbacksMu.Unlock()
		for i, entry := range ws.stateCallbacks {
			if entry.id == id {
				ws.stateCallbacks = append(ws.stateCallbacks[:i], ws.stateCallbacks[i+1:]...)
				break
			}
		}
	}
}

func (ws *EventWebSocket) setState(newState WebSocketState) {
	ws.stateMu.Lock()
	oldState := ws.state
	ws.state = newState
	ws.stateMu.Unlock()

	if oldState == newState {
		return
	}

	ws.logger.Info("Event websocket state changed",
		zap.String("from", oldState.String()),
		zap.String("to", newState.String()),
	)

	ws.callbacksMu.RLock()
	callbacks := make([]stateCallbackEntry, len(ws.stateCallbacks))
	copy(callbacks, ws.stateCallbacks)
	ws.callbacksMu.RUnlock()

	for _, entry := range callbacks {
		entry.callback(newState)
	}
}

func (ws *EventWebSocket) State() WebSocketState {
	ws.stateMu.RLock()
	defer ws.stateMu.RUnlock()
	return ws.state
}

func (ws *EventWebSocket) IsConnected() bool {
	return ws.State() == WSStateConnected
}

func (ws *EventWebSocket) Disconnect() error {
	var err error
	ws.stopOnce.Do(func() {
		close(ws.stopCh)
		if ws.conn != nil {
			err = ws.conn.Close()
		}
		ws.listenerWg.Wait()
		ws.setState(WSStateDisconnected)
	})
	return err
}
