package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Server listens on a Unix domain socket and answers authentication requests.
type Server struct {
	socketPath string
	resolver   *Resolver
	listener   net.Listener
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// NewServer creates a new socket server.
func NewServer(socketPath string, resolver *Resolver, logger *slog.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		resolver:   resolver,
		logger:     logger,
	}
}

// Start begins listening. It cleans up stale sockets, creates the directory
// with 0700 permissions, and sets the socket to 0600.
func (s *Server) Start(ctx context.Context) error {
	dir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}

	// Clean up stale socket.
	if _, err := os.Stat(s.socketPath); err == nil {
		// Check if something is listening.
		conn, err := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return fmt.Errorf("another instance is already listening on %s", s.socketPath)
		}
		s.logger.Info("removing stale socket", "path", s.socketPath)
		if err := os.Remove(s.socketPath); err != nil {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.listener = ln
	s.logger.Info("listening", "path", s.socketPath)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx)
	}()

	return nil
}

// Shutdown gracefully stops the server and waits for in-flight connections.
func (s *Server) Shutdown() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				if opErr, ok := err.(*net.OpError); ok && opErr.Err.Error() == "use of closed network connection" {
					return
				}
				s.logger.Error("accept error", "error", err)
				return
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(5 * time.Second))

	data, err := io.ReadAll(io.LimitReader(conn, MaxPayloadBytes+1))
	if err != nil {
		s.writeResponse(conn, Response{OK: false, Error: "read error", Code: FailureBadRequest})
		return
	}

	if len(data) > MaxPayloadBytes {
		s.writeResponse(conn, Response{OK: false, Error: fmt.Sprintf("payload exceeds %d byte limit", MaxPayloadBytes), Code: FailureBadRequest})
		return
	}

	req, err := ValidateRequest(data)
	if err != nil {
		s.logger.Warn("invalid request", "error", err)
		s.writeResponse(conn, Response{OK: false, Error: err.Error(), Code: FailureBadRequest})
		return
	}

	id := uuid.New().String()
	switch req.Action {
	case ActionAuthenticate:
		s.handleAuthenticate(conn, id, req)
	case ActionBots:
		s.writeResponse(conn, Response{OK: true, ID: id, Bots: s.resolver.Registry().Names()})
	default:
		s.writeResponse(conn, Response{OK: false, ID: id, Error: fmt.Sprintf("unknown action %q", req.Action), Code: FailureBadRequest})
	}
}

func (s *Server) handleAuthenticate(conn net.Conn, id string, req *Request) {
	payload, err := ParseAuthenticatePayload(req.Payload)
	if err != nil {
		s.writeResponse(conn, Response{OK: false, ID: id, Error: err.Error(), Code: FailureBadRequest})
		return
	}

	bot, err := s.resolver.Authenticate(payload.InitData)
	if err != nil {
		kind := Classify(err)
		s.logger.Warn("authentication failed", "id", id, "kind", kind, "error", err)
		s.writeResponse(conn, Response{OK: false, ID: id, Error: err.Error(), Code: kind})
		return
	}

	s.logger.Info("authenticated", "id", id, "bot", bot)
	s.writeResponse(conn, Response{OK: true, ID: id, Bot: bot})
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	json.NewEncoder(conn).Encode(resp)
}
