// Package gateway is the WebSocket front door. It upgrades connections,
// authenticates them, and shuttles JSON frames between clients and their
// actors.
package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/minder/internal/actor"
	"github.com/soyeahso/minder/internal/config"
	"github.com/soyeahso/minder/internal/domain"
	"github.com/soyeahso/minder/internal/logging"
	"github.com/soyeahso/minder/internal/protocol"
)

// maxFrameBytes bounds a single inbound frame.
const maxFrameBytes = 512 * 1024

// Server is the Minder gateway HTTP + WebSocket server.
type Server struct {
	cfg     config.Config
	log     *logging.Logger
	manager *actor.Manager

	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New creates a gateway server over an actor manager.
func New(cfg config.Config, manager *actor.Manager, log *logging.Logger) *Server {
	allowedOrigins := cfg.Gateway.AllowedOrigins
	return &Server{
		cfg:     cfg,
		log:     log.Sub("gateway"),
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(allowedOrigins),
		},
	}
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin
// headers. Browserless clients send no Origin and are allowed; browser
// clients must match the configured origins.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and WebSocket connections. It blocks until
// the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Gateway)

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	handler := withMiddleware(mux, s.log, s.cfg.Gateway.AllowedOrigins)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     handler,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Gateway.Bind).
		Bool("auth", s.cfg.Gateway.Token != "").
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// authorize checks the gateway token on a request. An empty configured token
// disables auth.
func (s *Server) authorize(r *http.Request) bool {
	token := s.cfg.Gateway.Token
	if token == "" {
		return true
	}

	presented := r.URL.Query().Get("token")
	if presented == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			presented = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}

// handleWebSocket upgrades HTTP to WebSocket, binds the connection to its
// user's actor, and runs the read loop until the connection drops.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rejected unauthenticated connection")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	userID := r.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "user query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	handle := newWSHandle(conn, userID)
	sess, _, err := s.manager.Attach(handle, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("userId", userID).Msg("attach rejected")
		handle.Send(protocol.ErrorFrame(err))
		handle.Close()
		return
	}

	s.log.Info().
		Str("connId", sess.ConnID).
		Str("userId", sess.UserID).
		Str("remote", r.RemoteAddr).
		Msg("client connected")

	handle.Send(protocol.Connected(sess.UserID))

	defer func() {
		s.manager.Detach(handle)
		handle.Close()
		s.log.Debug().Str("connId", sess.ConnID).Msg("client disconnected")
	}()

	s.readLoop(handle)
}

// readLoop parses inbound frames and routes them to the user's actor.
// Malformed frames produce an error frame and keep the connection open; an
// unrecoverable session closes it.
func (s *Server) readLoop(handle *wsHandle) {
	for {
		_, data, err := handle.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", handle.ID()).Msg("client closed connection")
			} else {
				s.log.Warn().Err(err).Str("connId", handle.ID()).Msg("read error")
			}
			return
		}

		frame, err := protocol.Parse(data)
		if err != nil {
			handle.Send(protocol.ErrorFrame(err))
			continue
		}

		if err := s.manager.Deliver(frame, handle); err != nil {
			handle.Send(protocol.ErrorFrame(err))
			if domain.CodeOf(err) == domain.CodeSessionLost {
				return
			}
		}
	}
}
