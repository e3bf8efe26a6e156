// Package web streams waveform snapshots to browsers over a websocket.
package web

import (
	"context"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

//go:embed static/index.html
var staticFiles embed.FS

const (
	defaultFrameRate = 30
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = 54 * time.Second
	clientQueue      = 4
)

// Source is the buffer the server snapshots.
type Source interface {
	SnapshotInto(dst []float32) []float32
	Cap() int
	Cursor() int
}

// Info describes the running capture for /api/status.
type Info struct {
	Device     string  `json:"device"`
	SampleRate float64 `json:"sampleRate"`
	FPS        float64 `json:"fps"`
}

// StatusResponse is served on /api/status.
type StatusResponse struct {
	Info
	Points  int `json:"points"`
	Cursor  int `json:"cursor"`
	Clients int `json:"clients"`
}

// Config configures a Server.
type Config struct {
	Source Source
	// Info is polled for every status request; it may be nil.
	Info func() Info
	// FrameRate is how many snapshots per second are pushed to clients.
	FrameRate float64
	Log       *log.Logger
}

// Server pushes binary frames of little-endian float32 (x, y) pairs, one
// websocket message per snapshot, to every connected client.
type Server struct {
	cfg      Config
	log      *log.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*websocketClient]bool
	closed  bool
}

type websocketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// NewServer creates a Server; nothing runs until Serve or Broadcast.
func NewServer(cfg Config) *Server {
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = defaultFrameRate
	}
	logger := cfg.Log
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		cfg:     cfg,
		log:     logger,
		clients: make(map[*websocketClient]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Serve listens on addr and broadcasts snapshots until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.Broadcast(ctx)

	errc := make(chan error, 1)
	go func() {
		s.log.Printf("[web] serving scope on http://%s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelShutdown()
	err := srv.Shutdown(shutdownCtx)
	s.closeClients()
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return err
}

// Broadcast snapshots the source at the configured rate and queues each
// frame for every client until ctx is done.
func (s *Server) Broadcast(ctx context.Context) {
	period := time.Duration(float64(time.Second) / s.cfg.FrameRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	points := make([]float32, s.cfg.Source.Cap())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if s.clientCount() == 0 {
			continue
		}
		points = s.cfg.Source.SnapshotInto(points)
		s.publish(encodeFrame(points))
	}
}

func (s *Server) publish(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		select {
		case client.send <- frame:
		default:
			close(client.send)
			delete(s.clients, client)
		}
	}
}

func (s *Server) clientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// closeClients drops every client; connections arriving afterwards are
// refused.
func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for client := range s.clients {
		close(client.send)
		delete(s.clients, client)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := StatusResponse{
		Points:  s.cfg.Source.Cap() / 2,
		Cursor:  s.cfg.Source.Cursor(),
		Clients: s.clientCount(),
	}
	if s.cfg.Info != nil {
		status.Info = s.cfg.Info()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("[web] websocket upgrade error: %v", err)
		return
	}

	client := &websocketClient{
		conn:   conn,
		send:   make(chan []byte, clientQueue),
		server: s,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	s.clients[client] = true
	s.mu.Unlock()

	go client.writePump()
	go client.readPump()
}

// encodeFrame lays points out as little-endian float32 values.
func encodeFrame(points []float32) []byte {
	frame := make([]byte, len(points)*4)
	for i, v := range points {
		binary.LittleEndian.PutUint32(frame[i*4:], math.Float32bits(v))
	}
	return frame
}

func (c *websocketClient) readPump() {
	defer func() {
		c.server.mu.Lock()
		if c.server.clients[c] {
			close(c.send)
			delete(c.server.clients, c)
		}
		c.server.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *websocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
