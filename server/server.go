// Package server exposes ProcessTurn over a websocket endpoint. Every text
// frame carries one turn request and is answered by exactly one frame, in
// order, on the same connection.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/recallmesh/logging"
)

// Turner processes one conversation turn.
type Turner interface {
	ProcessTurn(ctx context.Context, ownerID, threadID, userMessage string) (string, error)
}

// Request is an inbound frame.
type Request struct {
	OwnerID  string `json:"owner_id"`
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

// Reply is an outbound frame; exactly one field is set.
type Reply struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

// Options configure the Server.
type Options struct {
	// Path of the websocket endpoint.
	Path string
	// ReadLimit bounds the size of an inbound frame in bytes.
	ReadLimit int64
	// TurnTimeout bounds a single turn; zero disables it.
	TurnTimeout time.Duration
	// WriteTimeout bounds writing one frame.
	WriteTimeout time.Duration
	// PingInterval controls keepalive pings; the peer must answer within
	// twice the interval.
	PingInterval time.Duration
	// CheckOrigin overrides the upgrader's origin check.
	CheckOrigin func(r *http.Request) bool
	Logger      logging.Logger
}

// Server is an http.Handler upgrading requests on Options.Path.
type Server struct {
	turner   Turner
	opts     Options
	upgrader websocket.Upgrader
	logger   logging.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	conns   sync.WaitGroup
}

// New creates a server dispatching turns to turner.
func New(turner Turner, optFns ...func(o *Options)) *Server {
	opts := Options{
		Path:         "/ws",
		ReadLimit:    64 << 10,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		turner: turner,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
		logger:  opts.Logger,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Handler returns a mux serving the websocket endpoint and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.opts.Path, s)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

// ServeHTTP upgrades the request and serves turns until the peer goes away
// or the server shuts down.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := s.baseCtx.Err(); err != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("server.upgrade.failed", "remote", r.RemoteAddr, "error", err.Error())
		return
	}

	s.conns.Add(1)
	defer s.conns.Done()

	s.logger.Info("server.conn.open", "remote", r.RemoteAddr)
	s.serveConn(conn)
	s.logger.Info("server.conn.closed", "remote", r.RemoteAddr)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server.listen", "addr", addr, "path", s.opts.Path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by http.Server.
	s.Close()

	return srv.Shutdown(shutdownCtx)
}

// Close cancels in-flight turns and waits for connections to finish.
func (s *Server) Close() {
	s.cancel()
	s.conns.Wait()
}

type connWriter struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
}

func (w *connWriter) json(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_ = w.conn.SetWriteDeadline(time.Now().Add(w.timeout))

	return w.conn.WriteJSON(v)
}

func (w *connWriter) control(messageType int, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.conn.WriteControl(messageType, data, time.Now().Add(w.timeout))
}

func (s *Server) serveConn(conn *websocket.Conn) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()

	w := &connWriter{conn: conn, timeout: s.opts.WriteTimeout}

	conn.SetReadLimit(s.opts.ReadLimit)

	if s.opts.PingInterval > 0 {
		pongWait := 2 * s.opts.PingInterval
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		go s.keepalive(ctx, w)
	}

	// Closing the connection unblocks ReadMessage on shutdown.
	go func() {
		<-ctx.Done()
		_ = w.control(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"))
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("server.read.failed", "error", err.Error())
			}

			return
		}

		// Nothing reads while a turn runs, so pongs cannot extend the
		// deadline. Suspend it for the turn and re-arm once replied.
		if s.opts.PingInterval > 0 {
			_ = conn.SetReadDeadline(time.Time{})
		}

		if err := w.json(s.handle(ctx, data)); err != nil {
			s.logger.Warn("server.write.failed", "error", err.Error())
			return
		}

		if s.opts.PingInterval > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingInterval))
		}
	}
}

func (s *Server) handle(ctx context.Context, data []byte) Reply {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Reply{Error: fmt.Sprintf("invalid request: %v", err)}
	}

	if req.Message == "" {
		return Reply{Error: "invalid request: message is required"}
	}

	if s.opts.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.TurnTimeout)
		defer cancel()
	}

	start := time.Now()

	reply, err := s.turner.ProcessTurn(ctx, req.OwnerID, req.ThreadID, req.Message)
	if err != nil {
		s.logger.Error("server.turn.failed", "owner_id", req.OwnerID, "thread_id", req.ThreadID, "error", err.Error())
		return Reply{Error: err.Error()}
	}

	s.logger.Debug("server.turn.complete", "owner_id", req.OwnerID, "thread_id", req.ThreadID, "duration_ms", time.Since(start).Milliseconds())

	return Reply{Reply: reply}
}

func (s *Server) keepalive(ctx context.Context, w *connWriter) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.control(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
