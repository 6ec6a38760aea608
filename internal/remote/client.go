// ABOUTME: WebSocket client for the remote control protocol
// ABOUTME: Handles connection, handshake, commands and event routing
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ClientConfig holds client configuration
type ClientConfig struct {
	ServerAddr string
	ClientID   string
	Name       string
}

// Client controls a player over WebSocket
type Client struct {
	config  ClientConfig
	conn    *websocket.Conn
	mu      sync.RWMutex
	writeMu sync.Mutex

	// Message channels
	Events chan PlayerEvent
	States chan PlayerState
	Errors chan ServerError

	server    ServerHello
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a client; call Connect before sending
func NewClient(config ClientConfig) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config: config,
		Events: make(chan PlayerEvent, 100),
		States: make(chan PlayerState, 10),
		Errors: make(chan ServerError, 10),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Connect dials the server and performs the handshake
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: Path}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()
	return nil
}

func (c *Client) handshake() error {
	hello := ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  ProtocolVersion,
	}
	if err := c.sendJSON(Message{Type: TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send %s: %w", TypeClientHello, err)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer c.conn.SetReadDeadline(time.Time{})

	var msg Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("failed to read %s: %w", TypeServerHello, err)
	}

	switch msg.Type {
	case TypeServerHello:
		var sh ServerHello
		if err := decodePayload(msg.Payload, &sh); err != nil {
			return fmt.Errorf("failed to parse %s: %w", TypeServerHello, err)
		}
		c.mu.Lock()
		c.server = sh
		c.mu.Unlock()
		return nil
	case TypeServerError:
		var se ServerError
		decodePayload(msg.Payload, &se)
		return fmt.Errorf("server rejected session: %s", se.Message)
	default:
		return fmt.Errorf("expected %s, got %s", TypeServerHello, msg.Type)
	}
}

// Server returns the server's hello
func (c *Client) Server() ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.server
}

func (c *Client) sendJSON(msg Message) error {
	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()

	if !connected {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// readMessages routes incoming messages until the connection ends
func (c *Client) readMessages() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				log.Printf("Read error: %v", err)
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse message: %v", err)
		return
	}

	switch msg.Type {
	case TypePlayerEvent:
		var e PlayerEvent
		if err := decodePayload(msg.Payload, &e); err != nil {
			log.Printf("Bad %s: %v", msg.Type, err)
			return
		}
		// Position updates are advisory; drop them rather than block
		select {
		case c.Events <- e:
		default:
		}
	case TypePlayerState:
		var s PlayerState
		if err := decodePayload(msg.Payload, &s); err != nil {
			log.Printf("Bad %s: %v", msg.Type, err)
			return
		}
		select {
		case c.States <- s:
		case <-c.ctx.Done():
		}
	case TypeServerError:
		var se ServerError
		if err := decodePayload(msg.Payload, &se); err != nil {
			log.Printf("Bad %s: %v", msg.Type, err)
			return
		}
		select {
		case c.Errors <- se:
		case <-c.ctx.Done():
		}
	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// Send issues a command
func (c *Client) Send(cmd Command) error {
	return c.sendJSON(Message{Type: TypeClientCommand, Payload: cmd})
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}
