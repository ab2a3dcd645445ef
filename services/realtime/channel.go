// File: services/realtime/channel.go
package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"tripsync/models"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Listener receives every non-heartbeat message pushed by the backend, as raw
// JSON. Listeners are invoked synchronously, in registration order.
type Listener func(message []byte)

// Options tunes a Channel. Zero values fall back to production defaults.
type Options struct {
	// HeartbeatInterval is the period of the liveness ping. Defaults to 30s.
	HeartbeatInterval time.Duration
	// BaseDelay is the first reconnect backoff delay; it doubles per attempt.
	// Defaults to 1s.
	BaseDelay time.Duration
	// MaxAttempts caps consecutive reconnect attempts before the channel gives
	// up and emits a connection-lost event. Defaults to 5.
	MaxAttempts int
	Dialer      *websocket.Dialer
	Logger      *zap.Logger
}

// Channel maintains a persistent duplex connection to the planning backend,
// reconnecting transparently on abnormal closes. State transitions are driven
// only by the channel's own socket callbacks and by Connect/Disconnect.
type Channel struct {
	baseURL string
	opts    Options
	logger  *zap.Logger

	mu             sync.Mutex
	conn           *websocket.Conn
	session        models.ChannelSession
	gen            int
	userClosed     bool
	reconnectTimer *time.Timer
	connDone       chan struct{}
	wg             sync.WaitGroup

	lmu            sync.Mutex
	listeners      []listenerEntry
	nextListenerID int

	writeMu sync.Mutex
}

type listenerEntry struct {
	id int
	fn Listener
}

// connectionLostEvent is dispatched to listeners when reconnect attempts are
// exhausted. It is a terminal notification, not an error.
type connectionLostEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Attempts       int    `json:"attempts"`
}

// New returns a disconnected Channel for a ws(s)://host base URL.
func New(baseURL string, opts Options) *Channel {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Channel{
		baseURL: baseURL,
		opts:    opts,
		logger:  opts.Logger,
	}
}

// Connect opens a channel scoped to the conversation. Connecting to the
// session that is already connected is a no-op; switching sessions performs a
// clean disconnect first.
func (ch *Channel) Connect(conversationID string) error {
	ch.mu.Lock()

	if ch.session.State == models.ChannelConnected && ch.session.ConversationID == conversationID {
		ch.mu.Unlock()
		return nil
	}

	ch.stopReconnectLocked()
	ch.closeConnLocked()
	ch.userClosed = false
	ch.session.ConversationID = conversationID
	ch.session.ReconnectAttempts = 0
	ch.session.State = models.ChannelConnecting

	err := ch.dialLocked()
	var terminal []byte
	if err != nil {
		terminal = ch.scheduleReconnectLocked()
	}
	ch.mu.Unlock()

	if terminal != nil {
		ch.dispatch(terminal)
	}
	if err != nil {
		return fmt.Errorf("connect %s: %w", conversationID, err)
	}
	return nil
}

// Disconnect performs a clean close (normal close code) and never triggers
// auto-reconnect. It blocks until the channel's goroutines have exited.
func (ch *Channel) Disconnect() {
	ch.mu.Lock()
	ch.userClosed = true
	ch.stopReconnectLocked()
	ch.closeConnLocked()
	ch.session.State = models.ChannelDisconnected
	ch.mu.Unlock()

	ch.wg.Wait()
}

// Subscribe registers a listener and returns its unregister func. Listeners
// are independent; removing one never disturbs the others.
func (ch *Channel) Subscribe(fn Listener) func() {
	ch.lmu.Lock()
	ch.nextListenerID++
	id := ch.nextListenerID
	ch.listeners = append(ch.listeners, listenerEntry{id: id, fn: fn})
	ch.lmu.Unlock()

	return func() {
		ch.lmu.Lock()
		defer ch.lmu.Unlock()
		for i, entry := range ch.listeners {
			if entry.id == id {
				ch.listeners = append(ch.listeners[:i], ch.listeners[i+1:]...)
				return
			}
		}
	}
}

// Session returns a snapshot of the current session.
func (ch *Channel) Session() models.ChannelSession {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.session
}

// State returns the current channel state.
func (ch *Channel) State() models.ChannelState {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.session.State
}

// Send writes an arbitrary JSON message to the backend.
func (ch *Channel) Send(v any) error {
	ch.mu.Lock()
	conn := ch.conn
	ch.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("channel is not connected")
	}

	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// RequestState asks the backend to replay its latest known state.
func (ch *Channel) RequestState() error {
	return ch.Send(models.RequestStateMessage{Type: models.WSTypeRequestState})
}

// dialLocked opens the websocket and starts the read and heartbeat loops.
// Callers hold ch.mu.
func (ch *Channel) dialLocked() error {
	url := ch.baseURL + "/ws/" + ch.session.ConversationID
	conn, _, err := ch.opts.Dialer.Dial(url, nil)
	if err != nil {
		ch.logger.Warn("websocket dial failed", zap.String("url", url), zap.Error(err))
		return err
	}

	ch.conn = conn
	ch.session.State = models.ChannelConnected
	ch.session.ReconnectAttempts = 0
	ch.gen++
	ch.connDone = make(chan struct{})

	gen := ch.gen
	done := ch.connDone

	ch.wg.Add(2)
	go ch.readLoop(conn, gen)
	go ch.heartbeatLoop(conn, done)

	ch.logger.Info("websocket connected", zap.String("conversation_id", ch.session.ConversationID))
	return nil
}

func (ch *Channel) readLoop(conn *websocket.Conn, gen int) {
	defer ch.wg.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			ch.onReadError(gen, err)
			return
		}
		if !gjson.ValidBytes(data) {
			ch.logger.Debug("dropping non-JSON frame")
			continue
		}
		// Heartbeat acknowledgements never reach listeners.
		if gjson.GetBytes(data, "type").String() == models.WSTypePong {
			continue
		}
		ch.dispatch(data)
	}
}

func (ch *Channel) heartbeatLoop(conn *websocket.Conn, done chan struct{}) {
	defer ch.wg.Done()
	ticker := time.NewTicker(ch.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ping := models.PingMessage{Type: models.WSTypePing, Timestamp: time.Now().UnixMilli()}
			ch.writeMu.Lock()
			err := conn.WriteJSON(ping)
			ch.writeMu.Unlock()
			if err != nil {
				ch.logger.Debug("heartbeat write failed", zap.Error(err))
				return
			}
		}
	}
}

func (ch *Channel) onReadError(gen int, err error) {
	ch.mu.Lock()
	if gen != ch.gen || ch.userClosed {
		// Stale connection or user-initiated close; nothing to do.
		ch.mu.Unlock()
		return
	}

	ch.closeConnLocked()

	// Only a normal close is final. A going-away close (server restart) and
	// every abnormal drop go through the reconnect path.
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		ch.logger.Info("websocket closed by peer")
		ch.session.State = models.ChannelDisconnected
		ch.mu.Unlock()
		return
	}

	ch.logger.Warn("websocket dropped", zap.Error(err))
	terminal := ch.scheduleReconnectLocked()
	ch.mu.Unlock()

	if terminal != nil {
		ch.dispatch(terminal)
	}
}

// scheduleReconnectLocked arms the next reconnect attempt with exponential
// backoff. Once attempts are exhausted it returns the terminal
// connection-lost event, which the caller must dispatch after releasing
// ch.mu. Callers hold ch.mu.
func (ch *Channel) scheduleReconnectLocked() []byte {
	ch.session.ReconnectAttempts++
	attempt := ch.session.ReconnectAttempts

	if attempt > ch.opts.MaxAttempts {
		ch.session.State = models.ChannelDisconnected
		ch.logger.Error("reconnect attempts exhausted",
			zap.String("conversation_id", ch.session.ConversationID),
			zap.Int("attempts", ch.opts.MaxAttempts))

		event, _ := json.Marshal(connectionLostEvent{
			Type:           models.WSTypeConnectionLost,
			ConversationID: ch.session.ConversationID,
			Attempts:       ch.opts.MaxAttempts,
		})
		return event
	}

	ch.session.State = models.ChannelReconnecting
	delay := BackoffDelay(attempt, ch.opts.BaseDelay)
	ch.logger.Info("scheduling reconnect",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay))

	gen := ch.gen
	ch.reconnectTimer = time.AfterFunc(delay, func() {
		ch.mu.Lock()
		if ch.userClosed || gen != ch.gen {
			ch.mu.Unlock()
			return
		}
		ch.session.State = models.ChannelConnecting
		var terminal []byte
		if err := ch.dialLocked(); err != nil {
			terminal = ch.scheduleReconnectLocked()
		}
		ch.mu.Unlock()

		if terminal != nil {
			ch.dispatch(terminal)
		}
	})
	return nil
}

func (ch *Channel) stopReconnectLocked() {
	if ch.reconnectTimer != nil {
		ch.reconnectTimer.Stop()
		ch.reconnectTimer = nil
	}
}

// closeConnLocked tears down the current socket with a normal close code and
// invalidates callbacks from its goroutines. Callers hold ch.mu.
func (ch *Channel) closeConnLocked() {
	if ch.conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = ch.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = ch.conn.Close()
		ch.conn = nil
	}
	if ch.connDone != nil {
		close(ch.connDone)
		ch.connDone = nil
	}
	ch.gen++
}

func (ch *Channel) dispatch(message []byte) {
	ch.lmu.Lock()
	entries := make([]listenerEntry, len(ch.listeners))
	copy(entries, ch.listeners)
	ch.lmu.Unlock()

	for _, entry := range entries {
		entry.fn(message)
	}
}

// BackoffDelay returns the reconnect delay for a 1-based attempt number: the
// base delay doubled per prior attempt.
func BackoffDelay(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}
