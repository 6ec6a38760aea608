// ABOUTME: WebSocket remote control server for the player
// ABOUTME: Streams player events to clients and applies their commands
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/beatmix/beatmix/internal/player"
	"github.com/beatmix/beatmix/internal/version"
)

// Path is the WebSocket endpoint
const Path = "/beatmix"

// Player is the controller surface the server drives
type Player interface {
	Play() error
	Pause() error
	Stop() error
	Replay() error
	SkipTo(pos time.Duration) error
	SetPlaybackRate(rate float64, useTempo bool)
	SetPlayMod(mod player.PlayMod)
	SetVolume(kind player.VolumeKind, value float32) error
	SetBalance(value float32)
	SetPlaylistMode(mode player.PlaylistMode)
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Open(ctx context.Context, ref string, autoPlay bool) error
	State() player.State
	Subscribe(buffer int) (<-chan player.Event, func())
}

// Config holds server configuration
type Config struct {
	// Addr to listen on, e.g. ":8927"
	Addr   string
	Name   string
	Player Player

	// EventBuffer sizes each client's event subscription; zero means 64
	EventBuffer int
}

// Server accepts control clients
type Server struct {
	config   Config
	serverID string
	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener

	clients   map[string]*session
	clientsMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// session is one connected control client
type session struct {
	ID   string
	Name string
	Conn *websocket.Conn

	sendChan chan interface{}
}

// New creates a server. Handler can be served directly, or Start listens on
// Config.Addr.
func New(config Config) *Server {
	if config.EventBuffer <= 0 {
		config.EventBuffer = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:   config,
		serverID: uuid.NewString(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin != "" {
					log.Printf("Accepting remote control from origin: %s", origin)
				}
				return true
			},
		},
		clients: make(map[string]*session),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Handler returns the HTTP handler serving Path
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleWebSocket)
	return mux
}

// Start listens and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.Handler()}

	log.Printf("Remote control listening on %s%s", ln.Addr(), Path)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Remote control server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes every session and the listener
func (s *Server) Stop() {
	s.cancel()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("Remote control shutdown error: %v", err)
		}
	}

	s.clientsMu.RLock()
	for _, c := range s.clients {
		c.Conn.Close()
	}
	s.clientsMu.RUnlock()

	s.wg.Wait()
}

// ClientCount returns the number of connected sessions
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.ctx.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.handleConnection(conn)
}

// handleConnection runs one session: hello, state snapshot, then events
// out and commands in
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	if msg.Type != TypeClientHello {
		log.Printf("Expected %s, got %s", TypeClientHello, msg.Type)
		return
	}
	var hello ClientHello
	if err := decodePayload(msg.Payload, &hello); err != nil {
		log.Printf("Error decoding client hello: %v", err)
		return
	}
	if hello.ClientID == "" {
		log.Printf("Client hello missing ClientID")
		return
	}

	client := &session{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		sendChan: make(chan interface{}, 100),
	}

	s.clientsMu.Lock()
	if _, exists := s.clients[client.ID]; exists {
		s.clientsMu.Unlock()
		log.Printf("Client ID %s already connected, rejecting duplicate", client.ID)
		conn.WriteJSON(Message{Type: TypeServerError, Payload: ServerError{
			Error:   "duplicate_client_id",
			Message: "Client ID already connected",
		}})
		return
	}
	s.clients[client.ID] = client
	s.clientsMu.Unlock()

	log.Printf("Remote client connected: %s (%s)", client.Name, client.ID)

	events, unsubscribe := s.config.Player.Subscribe(s.config.EventBuffer)
	done := make(chan struct{})

	defer func() {
		unsubscribe()
		close(done)
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		s.clientsMu.Unlock()
		log.Printf("Remote client disconnected: %s", client.Name)
	}()

	s.send(client, TypeServerHello, ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  ProtocolVersion,
		Software: version.String(),
	})
	s.send(client, TypePlayerState, NewPlayerState(s.config.Player.State()))

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.clientWriter(client, done)
	}()
	go func() {
		defer s.wg.Done()
		s.forwardEvents(client, events, done)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		s.handleClientMessage(client, data)
	}
}

// forwardEvents relays controller events until the session ends
func (s *Server) forwardEvents(client *session, events <-chan player.Event, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.send(client, TypePlayerEvent, NewPlayerEvent(e))
		}
	}
}

// clientWriter owns all writes to the connection
func (s *Server) clientWriter(client *session, done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case <-done:
			return
		case msg := <-client.sendChan:
			client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.Conn.WriteJSON(msg); err != nil {
				log.Printf("Error writing to %s: %v", client.Name, err)
				client.Conn.Close()
				return
			}
		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleClientMessage(client *session, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}

	switch msg.Type {
	case TypeClientCommand:
		var cmd Command
		if err := decodePayload(msg.Payload, &cmd); err != nil {
			s.sendError(client, "", "bad_command", err)
			return
		}
		if loads(cmd.Command) {
			// Loads decode audio; keep reading commands meanwhile
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.reply(client, cmd, s.apply(cmd))
			}()
			return
		}
		s.reply(client, cmd, s.apply(cmd))
	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// loads reports whether command replaces the loaded beatmap
func loads(command string) bool {
	switch command {
	case CommandNext, CommandPrevious, CommandLoad:
		return true
	}
	return false
}

// reply reports a failed command, or sends state when the command changes
// what is loaded or asks for it
func (s *Server) reply(client *session, cmd Command, err error) {
	if err != nil {
		log.Printf("Command %s from %s failed: %v", cmd.Command, client.Name, err)
		s.sendError(client, cmd.Command, "command_failed", err)
		return
	}
	if cmd.Command == CommandState || loads(cmd.Command) {
		s.send(client, TypePlayerState, NewPlayerState(s.config.Player.State()))
	}
}

// apply runs one command against the player
func (s *Server) apply(cmd Command) error {
	p := s.config.Player
	switch cmd.Command {
	case CommandPlay:
		return p.Play()
	case CommandPause:
		return p.Pause()
	case CommandStop:
		return p.Stop()
	case CommandReplay:
		return p.Replay()
	case CommandSeek:
		return p.SkipTo(time.Duration(cmd.PositionMs) * time.Millisecond)
	case CommandRate:
		if cmd.Rate <= 0 {
			return fmt.Errorf("invalid rate %v", cmd.Rate)
		}
		p.SetPlaybackRate(cmd.Rate, cmd.UseTempo)
		return nil
	case CommandMod:
		mod, err := player.ParsePlayMod(cmd.Mod)
		if err != nil {
			return err
		}
		p.SetPlayMod(mod)
		return nil
	case CommandVolume:
		return p.SetVolume(player.VolumeKind(cmd.Kind), cmd.Value)
	case CommandBalance:
		p.SetBalance(cmd.Value)
		return nil
	case CommandPlaylistMode:
		mode, err := player.ParsePlaylistMode(cmd.Mode)
		if err != nil {
			return err
		}
		p.SetPlaylistMode(mode)
		return nil
	case CommandNext:
		return p.Next(s.ctx)
	case CommandPrevious:
		return p.Previous(s.ctx)
	case CommandLoad:
		if cmd.Ref == "" {
			return errors.New("load requires ref")
		}
		return p.Open(s.ctx, cmd.Ref, cmd.AutoPlay)
	case CommandState:
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
}

func (s *Server) send(client *session, msgType string, payload interface{}) {
	select {
	case client.sendChan <- Message{Type: msgType, Payload: payload}:
	default:
		log.Printf("Send buffer full for %s, dropping %s", client.Name, msgType)
	}
}

func (s *Server) sendError(client *session, command, code string, err error) {
	s.send(client, TypeServerError, ServerError{Command: command, Error: code, Message: err.Error()})
}
