/*
Package play contains the real-time session coordinator.

This file defines the Client struct, representing an active WebSocket connection.
It manages the connection's lifecycle, the message pumps (ReadPump and WritePump),
and delivery of events to and from the Coordinator.
*/
package play

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"dominet/internal/app/user"
	authjwt "dominet/internal/pkg/auth/jwt"
	"dominet/internal/pkg/errs"
	"dominet/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 4096

	// WsCloseCodeSessionReplaced is a custom WebSocket Close Code (4000-4999 range)
	// used to signal the client that the user registered again on a new connection.
	WsCloseCodeSessionReplaced = 4001
)

// Client represents one active WebSocket connection and, once register-user
// has been processed, its associated user identity.
type Client struct {
	// coord dispatches inbound events and handles disconnect cleanup.
	coord *Coordinator

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// mu protects identity fields, which are written once by register-user.
	mu sync.RWMutex

	// user is the bound identity; zero until register-user.
	user user.User

	// registered reports whether register-user has been processed.
	registered bool

	// claims holds the identity token presented at upgrade time, if any.
	// When present, register-user must match its subject.
	claims *authjwt.Payload

	// a buffered channel used to queue messages waiting to be sent to the client.
	send chan []byte

	// closeOnce guards the send channel close.
	closeOnce sync.Once

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewClient constructs a Client for an upgraded connection. claims may be nil
// for connections that presented no identity token.
func NewClient(coord *Coordinator, wsConn *websocket.Conn, claims *authjwt.Payload) *Client {
	clientLogger := logx.Logger().With().
		Str("component", "Client").
		Str("remote_addr", wsConn.RemoteAddr().String()).
		Logger()

	return &Client{
		coord:  coord,
		conn:   wsConn,
		claims: claims,
		send:   make(chan []byte, 256),
		logger: clientLogger,
	}
}

// User returns the bound identity and whether register-user has completed.
func (c *Client) User() (user.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user, c.registered
}

// bindUser records the identity for this connection.
func (c *Client) bindUser(u user.User) {
	c.mu.Lock()
	c.user = u
	c.registered = true
	c.mu.Unlock()

	c.logger = c.logger.With().Str("user_id", u.ID).Logger()
}

// ReadPump handles reading messages from the WebSocket connection.
// It handles heartbeats (Pong), envelope parsing, and performs cleanup upon
// connection closure.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInboundMessage(messageBytes)
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when the client's ReadPump terminates.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.coord.handleDisconnect(c)

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// processInboundMessage parses the envelope and hands the event to the Coordinator.
func (c *Client) processInboundMessage(messageBytes []byte) {
	var env Envelope
	if err := json.Unmarshal(messageBytes, &env); err != nil {
		c.logger.Warn().Err(err).
			Bytes("message_bytes", messageBytes).
			Msg("Client sent invalid JSON")
		return
	}

	c.coord.dispatch(c, env)
}

// WritePump handles writing messages from the Client.send channel to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage handles messages pulled from the send channel, writing them to the WebSocket.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// SendEvent marshals the event envelope and queues it on the client's send channel.
func (c *Client) SendEvent(event string, payload any) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event", event).Msg("Error marshaling event payload")
		return err
	}

	messageBytes, err := json.Marshal(Envelope{Event: event, Payload: payloadBytes})
	if err != nil {
		c.logger.Error().Err(err).Str("event", event).Msg("Error marshaling event envelope")
		return err
	}

	select {
	case c.send <- messageBytes:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping message")
		return fmt.Errorf("client send queue full")
	}
}

// SendError queues a coded error event (game-error or challenge-error) for
// the acting connection only; errors are never broadcast.
func (c *Client) SendError(event string, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	if err := c.SendEvent(event, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	}); err != nil {
		c.logger.Error().Err(err).Msg("Failed to queue error event")
	}
}

// closeSend closes the send channel exactly once, terminating the WritePump.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// Kick gracefully closes the client's connection by sending a custom WebSocket
// Close Frame indicating that the session was replaced by a new connection.
func (c *Client) Kick(reason string) {
	c.logger.Warn().
		Int("close_code", WsCloseCodeSessionReplaced).
		Str("reason", reason).
		Msg("Sending WS Kick message and closing connection.")

	closeMessage := websocket.FormatCloseMessage(WsCloseCodeSessionReplaced, reason)

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(websocket.CloseMessage, closeMessage); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to send session-replaced close message.")
	}

	c.closeSend()
}
