package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// remoteFrame is one shell -> client control frame.
type remoteFrame struct {
	Op    string `json:"op"`
	JS    string `json:"js,omitempty"`
	URL   string `json:"url,omitempty"`
	Allow *bool  `json:"allow,omitempty"`
}

// RemoteSurface hosts the content surface over a WebSocket. Clients receive
// eval/load/back/reload frames and send raw bridge payloads; a should_load
// control frame gets an origin-policy verdict before anything else.
type RemoteSurface struct {
	upgrader websocket.Upgrader
	policy   *OriginPolicy
	messages chan []byte

	mu      sync.Mutex
	conns   map[string]*remoteConn
	stopped bool
	pumps   sync.WaitGroup
}

type remoteConn struct {
	id   string
	ws   *websocket.Conn
	send chan remoteFrame
}

// NewRemoteSurface creates a RemoteSurface enforcing policy on navigation.
func NewRemoteSurface(policy *OriginPolicy) *RemoteSurface {
	if policy == nil {
		policy = NewOriginPolicy()
	}
	return &RemoteSurface{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The surface endpoint is local pairing, not a browser origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		policy:   policy,
		messages: make(chan []byte, 64),
		conns:    make(map[string]*remoteConn),
	}
}

// Start is part of the Surface contract; the remote surface becomes live when
// its HTTP handler is mounted, so there is nothing to spin up here.
func (s *RemoteSurface) Start(ctx context.Context) error {
	return nil
}

// Stop closes every client connection and the message stream.
func (s *RemoteSurface) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	conns := make([]*remoteConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[string]*remoteConn)
	s.mu.Unlock()

	for _, c := range conns {
		close(c.send)
		c.ws.Close()
	}
	// Readers drain before the message stream closes; a pump blocked on a
	// full buffer drops instead of blocking, so this cannot deadlock.
	s.pumps.Wait()
	close(s.messages)
	slog.Info("RemoteSurface stopped", "connections_closed", len(conns))
	return nil
}

// Messages streams raw content -> shell payloads from all clients.
func (s *RemoteSurface) Messages() <-chan []byte {
	return s.messages
}

// InjectScript broadcasts an eval frame to every connected client.
func (s *RemoteSurface) InjectScript(ctx context.Context, js string) error {
	return s.broadcast(remoteFrame{Op: "eval", JS: js})
}

// LoadURL points every client at url, subject to the origin policy.
func (s *RemoteSurface) LoadURL(url string) error {
	if !s.policy.ShouldLoad(url) {
		return fmt.Errorf("url %s blocked by origin policy", url)
	}
	return s.broadcast(remoteFrame{Op: "load", URL: url})
}

// GoBack asks every client to navigate backward.
func (s *RemoteSurface) GoBack() error {
	return s.broadcast(remoteFrame{Op: "back"})
}

// Reload asks every client to reload.
func (s *RemoteSurface) Reload() error {
	return s.broadcast(remoteFrame{Op: "reload"})
}

// HandleUpgrade upgrades an HTTP request into a surface client connection.
func (s *RemoteSurface) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("RemoteSurface upgrade failed", "error", err)
		return
	}

	conn := &remoteConn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan remoteFrame, 32),
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		ws.Close()
		return
	}
	s.conns[conn.id] = conn
	s.mu.Unlock()

	slog.Info("RemoteSurface client connected", "connID", conn.id, "remote", r.RemoteAddr)
	s.pumps.Add(1)
	go s.writePump(conn)
	go s.readPump(conn)
}

// ConnectionCount returns the number of live clients.
func (s *RemoteSurface) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *RemoteSurface) broadcast(frame remoteFrame) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("surface is stopped")
	}
	conns := make([]*remoteConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		select {
		case c.send <- frame:
		default:
			slog.Warn("RemoteSurface client send buffer full, dropping frame", "connID", c.id, "op", frame.Op)
		}
	}
	return nil
}

func (s *RemoteSurface) readPump(conn *remoteConn) {
	defer s.pumps.Done()
	defer s.dropConn(conn)

	conn.ws.SetReadLimit(maxMessageSize)
	conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("RemoteSurface read failed", "connID", conn.id, "error", err)
			}
			return
		}

		// should_load control frames get an immediate verdict; everything
		// else is bridge traffic for the handler.
		var control struct {
			Op  string `json:"op"`
			URL string `json:"url"`
		}
		if err := json.Unmarshal(raw, &control); err == nil && control.Op == "should_load" {
			allow := s.policy.ShouldLoad(control.URL)
			select {
			case conn.send <- remoteFrame{Op: "verdict", URL: control.URL, Allow: &allow}:
			default:
			}
			continue
		}

		select {
		case s.messages <- raw:
		default:
			slog.Warn("RemoteSurface message buffer full, dropping payload", "connID", conn.id)
		}
	}
}

func (s *RemoteSurface) writePump(conn *remoteConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-conn.send:
			conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.ws.WriteJSON(frame); err != nil {
				slog.Warn("RemoteSurface write failed", "connID", conn.id, "error", err)
				return
			}
		case <-ticker.C:
			conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *RemoteSurface) dropConn(conn *remoteConn) {
	s.mu.Lock()
	if _, ok := s.conns[conn.id]; ok {
		delete(s.conns, conn.id)
		close(conn.send)
	}
	s.mu.Unlock()
	conn.ws.Close()
	slog.Info("RemoteSurface client disconnected", "connID", conn.id)
}
