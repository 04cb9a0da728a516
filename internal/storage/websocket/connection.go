package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	ws "github.com/gorilla/websocket"

	"github.com/pursuitlab/roadchase/pkg/streaming"
)

const (
	sendChSize        = 4096
	ackChSize         = 16
	defaultMaxBackoff = 30 * time.Second
	maxReconnectTries = 10
	writeWait         = 10 * time.Second
	ackTimeout        = 10 * time.Second
)

// connection manages a WebSocket connection with a single write goroutine.
// The write loop lives for the whole connection lifetime; a read loop runs
// per underlying socket.
type connection struct {
	mu           sync.Mutex
	conn         *ws.Conn
	sendCh       chan []byte
	ackCh        chan streaming.AckMessage
	done         chan struct{} // closed on shutdown
	closed       bool
	reconnecting bool

	wsURL      string
	playerID   string
	maxBackoff time.Duration

	// Messages replayed after a reconnect so the relay knows who we are
	// and which run we're in.
	cachedJoinMsg  []byte
	cachedStartMsg []byte

	// onEnvelope receives every non-ack message from the relay.
	onEnvelope func(streaming.Envelope)

	logger *slog.Logger
}

func newConnection(logger *slog.Logger, maxBackoff time.Duration) *connection {
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	return &connection{
		sendCh:     make(chan []byte, sendChSize),
		ackCh:      make(chan streaming.AckMessage, ackChSize),
		done:       make(chan struct{}),
		maxBackoff: maxBackoff,
		logger:     logger,
	}
}

// dial connects to the relay and starts read/write loops.
func (c *connection) dial(rawURL, playerID string) error {
	c.wsURL = rawURL
	c.playerID = playerID

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop()
	go c.readLoop(conn)

	return nil
}

// dialOnce performs a single WebSocket dial with the player query param.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.playerID != "" {
		q := u.Query()
		q.Set("player", c.playerID)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh and writes messages to the current socket.
// Messages are dropped while disconnected.
func (c *connection) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				continue
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				c.connectionLost(conn)
				continue
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.connectionLost(conn)
			}
		}
	}
}

// readLoop routes acks to ackCh and everything else to onEnvelope until the
// socket fails.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			c.connectionLost(conn)
			return
		}

		var env struct {
			streaming.Envelope
			For string `json:"for"`
		}
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug("Unparseable message received", "raw", string(message))
			continue
		}

		if env.Type == streaming.TypeAck {
			select {
			case c.ackCh <- streaming.AckMessage{Type: env.Type, For: env.For}:
			default:
				c.logger.Debug("Ack channel full, dropping", "for", env.For)
			}
			continue
		}

		c.mu.Lock()
		handler := c.onEnvelope
		c.mu.Unlock()
		if handler != nil {
			handler(env.Envelope)
		}
	}
}

// connectionLost starts a reconnect unless the failed socket was already
// replaced or a reconnect is in progress.
func (c *connection) connectionLost(failed *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.reconnecting || c.conn != failed {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.conn = nil
	c.mu.Unlock()

	_ = failed.Close()
	go c.reconnect()
}

// reconnect re-establishes the connection with exponential backoff. On
// success it replays the cached join and start_run messages and starts a new
// read loop.
func (c *connection) reconnect() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = c.maxBackoff

	attempt := 0
	conn, err := backoff.Retry(ctx, func() (*ws.Conn, error) {
		attempt++
		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt)
		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			return nil, err
		}
		if err := c.replay(conn); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(maxReconnectTries))

	c.mu.Lock()
	c.reconnecting = false
	if err != nil || c.closed {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnectTries, "error", err)
		}
		return
	}
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info("WebSocket reconnected", "attempt", attempt)
	go c.readLoop(conn)
}

// replay writes the cached session messages directly to a fresh connection.
func (c *connection) replay(conn *ws.Conn) error {
	c.mu.Lock()
	msgs := [][]byte{c.cachedJoinMsg, c.cachedStartMsg}
	c.mu.Unlock()

	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return fmt.Errorf("set deadline for replay: %w", err)
		}
		if err := conn.WriteMessage(ws.TextMessage, msg); err != nil {
			return fmt.Errorf("replay after reconnect: %w", err)
		}
	}
	return nil
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
		return false
	}
}

// sendAndWait sends data and blocks until the relay acknowledges with a
// matching ack message or the timeout expires.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
			// Not our ack, keep waiting.
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close sends a WebSocket close frame and shuts down all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
