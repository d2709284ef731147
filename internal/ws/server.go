// Package ws serves the live reveal channel over WebSocket. Connections are
// upgraded with gobwas/ws, parked in epoll while idle and read by a bounded
// worker pool when a frame arrives. Watch handlers subscribe a connection to
// the assignment behind one reveal token.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/secretsanta/giftdraw/internal/metrics"
	"github.com/secretsanta/giftdraw/internal/protocol"
	"github.com/secretsanta/giftdraw/internal/ratelimit"
)

// ServerConfig holds tunable parameters for the WebSocket server.
type ServerConfig struct {
	ListenAddr     string        // address to listen on, e.g. ":8080"
	WorkerPoolSize int           // max concurrent read-worker goroutines
	MaxConnections int           // hard cap on total connections
	ReadTimeout    time.Duration // timeout for WebSocket read operations
	WriteTimeout   time.Duration // timeout for WebSocket write operations
}

// DefaultServerConfig returns a ServerConfig with sensible production defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:     ":8080",
		WorkerPoolSize: 256,
		MaxConnections: 100000,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// ConnLimiter throttles new connections per client IP.
type ConnLimiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
}

// Server is the reveal WebSocket server.
type Server struct {
	config       ServerConfig
	epoll        *Epoll
	conns        *ConnectionManager
	limiter      ConnLimiter
	workerPool   chan struct{}                       // semaphore limiting concurrent read workers
	onMessage    func(conn *Connection, data []byte) // message handler callback
	onDisconnect func(connID string)                 // called when a connection is removed
	httpServer   *http.Server
	done         chan struct{}
	stopOnce     sync.Once
	startedAt    time.Time
}

// NewServer creates a Server. onMessage is called from a worker goroutine
// for every complete text frame received from a client.
func NewServer(config ServerConfig, onMessage func(conn *Connection, data []byte)) *Server {
	return &Server{
		config:     config,
		conns:      NewConnectionManager(),
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		onMessage:  onMessage,
		done:       make(chan struct{}),
	}
}

// SetConnLimiter enables per-IP connection rate limiting with
// ratelimit.RuleWatch.
func (s *Server) SetConnLimiter(l ConnLimiter) {
	s.limiter = l
}

// SetOnDisconnect registers a callback invoked once when a connection is
// removed (read error, heartbeat timeout or close frame).
func (s *Server) SetOnDisconnect(fn func(connID string)) {
	s.onDisconnect = fn
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("ws: listen %s: %w", s.config.ListenAddr, err)
	}
	return s.Serve(l)
}

// Serve creates the poller, starts the event loop and the heartbeat, and
// serves HTTP on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	var err error
	s.epoll, err = NewEpoll()
	if err != nil {
		return fmt.Errorf("ws: failed to create epoll: %w", err)
	}

	s.startedAt = time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.startEventLoop()
	StartHeartbeat(s, DefaultHeartbeatConfig())

	log.Printf("[ws] server listening on %s (workers=%d, max_conns=%d)",
		l.Addr(), s.config.WorkerPoolSize, s.config.MaxConnections)

	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ws: http server error: %w", err)
	}
	return nil
}

// handleUpgrade enforces the connection cap and per-IP rate limit, upgrades
// the request and registers the connection with the poller.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.conns.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	ip := ratelimit.ClientIP(r)
	if s.limiter != nil {
		allowed, _ := s.limiter.Allow(r.Context(), ip, ratelimit.RuleWatch)
		if !allowed {
			log.Printf("[ws] connection rate limited ip=%s", ip)
			http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
			return
		}
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}

	now := time.Now()
	c := &Connection{
		ID:        uuid.NewString(),
		Conn:      conn,
		Fd:        socketFD(conn),
		RemoteIP:  ip,
		CreatedAt: now,
		LastPing:  now,
	}

	s.conns.Add(c)
	if err := s.epoll.Add(conn); err != nil {
		log.Printf("[ws] epoll add failed for conn %s: %v", c.ID, err)
		s.conns.Remove(c.ID)
		return
	}
	metrics.ConnectionsTotal.Inc()

	msg, err := protocol.NewServerMessage(protocol.TypeConnected, protocol.ConnectedMsg{
		ConnectionID: c.ID,
	})
	if err != nil {
		log.Printf("[ws] failed to build connected for conn %s: %v", c.ID, err)
	} else if err := s.SendMessage(c.ID, msg); err != nil {
		log.Printf("[ws] failed to send connected for conn %s: %v", c.ID, err)
	}

	log.Printf("[ws] new connection conn=%s ip=%s fd=%d (total=%d)", c.ID, ip, c.Fd, s.conns.Count())
}

// handleHealth reports the connection count and uptime as JSON.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Uptime      string `json:"uptime"`
	}{
		Status:      "ok",
		Connections: s.conns.Count(),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// startEventLoop hands every ready connection to a worker, bounded by the
// worker pool semaphore.
func (s *Server) startEventLoop() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		conns, err := s.epoll.Wait()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			log.Printf("[ws] epoll wait error: %v", err)
			continue
		}

		for _, conn := range conns {
			s.workerPool <- struct{}{}

			go func() {
				defer func() { <-s.workerPool }()
				s.handleConn(conn)
			}()
		}
	}
}

// handleConn reads one frame from a ready connection. Control frames are
// handled here; a read failure removes the connection.
func (s *Server) handleConn(netConn net.Conn) {
	c := s.conns.GetByConn(netConn)
	if c == nil {
		return
	}
	defer s.epoll.Resume(netConn)

	// Level-triggered epoll may report the same connection twice.
	if !atomic.CompareAndSwapInt32(&c.processing, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&c.processing, 0)

	if s.config.ReadTimeout > 0 {
		_ = netConn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}

	header, reader, err := wsutil.NextReader(s.epoll.Reader(netConn), ws.StateServerSide)
	if err != nil {
		// A timeout means the readiness report was stale; the heartbeat
		// takes care of dead connections.
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return
		}
		s.RemoveConnection(c)
		return
	}

	_ = netConn.SetReadDeadline(time.Time{})
	c.LastPing = time.Now()

	if header.OpCode.IsControl() {
		if header.OpCode == ws.OpClose {
			s.RemoveConnection(c)
		}
		return
	}

	data := make([]byte, header.Length)
	if header.Length > 0 {
		if _, err := io.ReadFull(reader, data); err != nil {
			s.RemoveConnection(c)
			return
		}
	}

	if len(data) == 0 {
		return
	}

	if s.onMessage != nil {
		s.onMessage(c, data)
	}
}

// RemoveConnection unregisters and closes a connection. Concurrent calls for
// the same connection run the disconnect callback once.
func (s *Server) RemoveConnection(c *Connection) {
	_ = s.epoll.Remove(c.Conn)

	if !s.conns.Remove(c.ID) {
		return
	}
	metrics.ConnectionsTotal.Dec()

	if s.onDisconnect != nil {
		s.onDisconnect(c.ID)
	}

	log.Printf("[ws] connection closed conn=%s (total=%d)", c.ID, s.conns.Count())
}

// SendMessage writes a text frame to the connection identified by connID.
// It is safe for concurrent use.
func (s *Server) SendMessage(connID string, data []byte) error {
	c := s.conns.Get(connID)
	if c == nil {
		return fmt.Errorf("ws: connection %s not found", connID)
	}

	if s.config.WriteTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}

	err := c.WriteMessage(data)

	// Heartbeat pings must not inherit the deadline.
	_ = c.Conn.SetWriteDeadline(time.Time{})

	return err
}

// Connections returns the ConnectionManager.
func (s *Server) Connections() *ConnectionManager {
	return s.conns
}

// Shutdown stops the HTTP listener and the event loop and closes every
// connection. Disconnect callbacks run for each of them.
func (s *Server) Shutdown() error {
	log.Println("[ws] shutting down server...")

	s.stopOnce.Do(func() { close(s.done) })

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("[ws] http shutdown error: %v", err)
		}
	}

	for _, c := range s.conns.All() {
		s.RemoveConnection(c)
	}

	if s.epoll != nil {
		_ = s.epoll.Close()
	}

	log.Printf("[ws] server stopped, all connections closed")
	return nil
}
