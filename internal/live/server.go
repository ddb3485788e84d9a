// Package live pushes freshly computed daily summaries to websocket
// subscribers and serves the latest snapshot over plain HTTP.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vitalsync/vitalsync/internal/health"
	"github.com/vitalsync/vitalsync/internal/syncer"
)

var upgrader = websocket.Upgrader{
	// Local single-user daemon; the summary stream carries no secrets worth
	// an origin handshake.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StatusFunc reports current pipeline connectivity for /status.
type StatusFunc func(ctx context.Context) syncer.ConnectivityCode

// Server fans summaries out to websocket clients. Publish is safe to call
// from any goroutine; it is meant to be registered as an engine subscriber,
// and the engine's realtime and full loops may publish concurrently.
type Server struct {
	logger *logrus.Logger
	status StatusFunc

	mu     sync.RWMutex
	latest *health.DailySummary
	// clients maps each connection to its write mutex. The websocket library
	// allows only one concurrent writer per connection, so every write (the
	// snapshot on connect included) must hold the connection's mutex.
	clients map[*websocket.Conn]*sync.Mutex
}

func NewServer(status StatusFunc, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{
		logger:  logger,
		status:  status,
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Publish records the summary as the latest snapshot and broadcasts it to
// every connected client. Clients that fail a write are dropped.
func (s *Server) Publish(sum health.DailySummary) {
	type target struct {
		conn *websocket.Conn
		wmu  *sync.Mutex
	}

	s.mu.Lock()
	s.latest = &sum
	targets := make([]target, 0, len(s.clients))
	for c, wmu := range s.clients {
		targets = append(targets, target{conn: c, wmu: wmu})
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(sum)
	if err != nil {
		s.logger.WithField("error", err).Error("Summary marshal failed")
		return
	}
	for _, t := range targets {
		t.wmu.Lock()
		err := t.conn.WriteMessage(websocket.TextMessage, data)
		t.wmu.Unlock()
		if err != nil {
			s.removeClient(t.conn)
		}
	}
}

func (s *Server) addClient(c *websocket.Conn) *sync.Mutex {
	wmu := &sync.Mutex{}
	s.mu.Lock()
	s.clients[c] = wmu
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.WithField("clients", n).Debug("Websocket client connected")
	return wmu
}

func (s *Server) removeClient(c *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.Close()
}

// Handler returns the HTTP routes: /ws for the summary stream, /summary for
// the latest snapshot, /status for connectivity.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/summary", s.handleSummary)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithField("error", err).Warn("Websocket upgrade failed")
		return
	}

	wmu := s.addClient(conn)

	// New subscribers get the current snapshot immediately. A broadcast may
	// already be in flight for this connection, so the snapshot write takes
	// the same write mutex.
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest != nil {
		if data, err := json.Marshal(latest); err == nil {
			wmu.Lock()
			conn.WriteMessage(websocket.TextMessage, data)
			wmu.Unlock()
		}
	}

	// Reads only serve to detect the peer going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.removeClient(conn)
				return
			}
		}
	}()
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if latest == nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "no summary computed yet"})
		return
	}
	json.NewEncoder(w).Encode(latest)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	code := syncer.NoDevice
	if s.status != nil {
		code = s.status(r.Context())
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"connectivity": string(code)})
}

// Run serves the handler on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("Live summary server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
