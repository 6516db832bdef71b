// Package inspect serves a read-only HTTP view of a set of properties.
//
// Routes:
//   - GET /properties: current value of every tracked property, as JSON
//   - GET /metrics: Prometheus metrics
//   - GET /watch: WebSocket stream of every change dispatched by the hub
package inspect

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jetoze/attribut/pkg/property"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// watchBuffer is the number of frames queued per watcher before
	// further changes are dropped.
	watchBuffer = 64

	writeTimeout = 5 * time.Second
)

// Frame is one message sent to a watcher.
type Frame struct {
	Type    string          `json:"type"` // "hello" or "change"
	Watcher string          `json:"watcher"`
	Name    string          `json:"name,omitempty"`
	Old     json.RawMessage `json:"old,omitempty"`
	New     json.RawMessage `json:"new,omitempty"`
}

// Server exposes tracked properties over HTTP.
type Server struct {
	hub      *property.Hub
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	upgrader websocket.Upgrader

	// tracked maps a property name to a function reading its value.
	tracked map[string]func() any

	// watchers maps a watcher ID to its close function.
	watchers map[string]func()

	// mu protects tracked and watchers.
	mu sync.RWMutex
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer sets the source of /metrics.
// Default: prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithCheckOrigin sets the WebSocket origin check.
// Default: same-origin requests only.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// New creates a Server watching hub.
func New(hub *property.Hub, opts ...Option) *Server {
	s := &Server{
		hub:      hub,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		tracked:  make(map[string]func() any),
		watchers: make(map[string]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Getter is the read side of a Property or List.
type Getter[T any] interface {
	Name() string
	Get() T
}

// Track makes p visible under /properties.
func Track[T any](s *Server, p Getter[T]) {
	s.TrackFunc(p.Name(), func() any { return p.Get() })
}

// TrackFunc makes the value returned by get visible under /properties as name.
func (s *Server) TrackFunc(name string, get func() any) {
	s.mu.Lock()
	s.tracked[name] = get
	s.mu.Unlock()
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/properties", s.handleProperties)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/watch", s.handleWatch)
	return r
}

// Watchers returns the number of connected watchers.
func (s *Server) Watchers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watchers)
}

// Close disconnects every watcher.
func (s *Server) Close() {
	s.mu.Lock()
	closers := make([]func(), 0, len(s.watchers))
	for _, c := range s.watchers {
		closers = append(closers, c)
	}
	s.mu.Unlock()

	for _, c := range closers {
		c()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("inspect request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleProperties(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	getters := make(map[string]func() any, len(s.tracked))
	for name, get := range s.tracked {
		getters[name] = get
	}
	s.mu.RUnlock()

	// Getters may take property locks, so they run outside s.mu.
	out := make(map[string]json.RawMessage, len(getters))
	for name, get := range getters {
		out[name] = encodeValue(get())
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Error("inspect: encode properties", "error", err)
	}
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("inspect: websocket upgrade failed", "error", err)
		return
	}

	id := uuid.NewString()
	frames := make(chan Frame, watchBuffer)
	done := make(chan struct{})
	var closeOnce sync.Once
	closeWatcher := func() {
		closeOnce.Do(func() { close(done) })
	}

	// The listener runs on writer goroutines and must never block them.
	listener := property.Listen(func(ev property.Event) {
		frame := Frame{
			Type:    "change",
			Watcher: id,
			Name:    ev.Name,
			Old:     encodeValue(ev.Old),
			New:     encodeValue(ev.New),
		}
		select {
		case frames <- frame:
		case <-done:
		default:
			s.logger.Warn("inspect: watcher too slow, dropping change", "watcher", id, "property", ev.Name)
		}
	})

	s.hub.AddAnyListener(listener)
	s.mu.Lock()
	s.watchers[id] = closeWatcher
	s.mu.Unlock()
	s.logger.Info("inspect: watcher connected", "watcher", id, "remote", r.RemoteAddr)

	defer func() {
		s.hub.RemoveAnyListener(listener)
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
		_ = conn.Close()
		s.logger.Info("inspect: watcher disconnected", "watcher", id)
	}()

	// Reader: detects client disconnects.
	go func() {
		defer closeWatcher()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.write(conn, Frame{Type: "hello", Watcher: id}); err != nil {
		closeWatcher()
		return
	}

	for {
		select {
		case <-done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		case frame := <-frames:
			if err := s.write(conn, frame); err != nil {
				s.logger.Warn("inspect: write to watcher failed", "watcher", id, "error", err)
				closeWatcher()
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, frame Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(frame)
}

// encodeValue renders v as JSON, falling back to a JSON string holding its
// fmt representation when v cannot be marshaled.
func encodeValue(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprint(v))
	}
	return data
}
