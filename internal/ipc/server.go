package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

const (
	defaultReadTimeout = 5 * time.Second
	replyTimeout       = 5 * time.Second
)

// Handler processes one IPC command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Server answers daemon commands, one request per connection. Commands are
// lowercased before they reach Handler.
type Server struct {
	Handler Handler
	Logger  *slog.Logger
	// ReadTimeout bounds how long a client may take to send its request.
	ReadTimeout time.Duration
}

// Serve runs a Server with default settings.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	return (&Server{Handler: handler}).Serve(ctx, listener)
}

// Serve accepts clients until ctx is cancelled or listener is closed, then
// waits for in-flight commands.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept command connection: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	logger := s.logger()
	started := time.Now()

	_ = conn.SetReadDeadline(started.Add(s.readTimeout()))
	line, err := readLine(conn)
	if err != nil {
		logger.Warn("command request unreadable", "error", err.Error())
		s.reply(conn, Response{OK: false, Error: fmt.Sprintf("read request: %v", err)})
		return
	}
	req, err := decodeRequest(line)
	if err != nil {
		logger.Warn("command request malformed", "error", err.Error())
		s.reply(conn, Response{OK: false, Error: fmt.Sprintf("decode request: %v", err)})
		return
	}

	resp := s.dispatch(ctx, req)
	s.reply(conn, resp)

	logger.Debug("command handled", "command", req.Command, "ok", resp.OK, "elapsed", time.Since(started))
	if !resp.OK {
		logger.Info("command failed", "command", req.Command, "error", resp.Error)
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger().Error("command handler panicked", "command", req.Command, "panic", fmt.Sprint(r))
			resp = Response{OK: false, Error: req.Command + ": internal daemon error"}
		}
	}()
	return s.Handler.Handle(ctx, req)
}

func (s *Server) reply(conn net.Conn, resp Response) {
	_ = conn.SetWriteDeadline(time.Now().Add(replyTimeout))
	if err := writeLine(conn, resp); err != nil {
		s.logger().Debug("command reply not delivered", "error", err.Error())
	}
}

func (s *Server) readTimeout() time.Duration {
	if s.ReadTimeout > 0 {
		return s.ReadTimeout
	}
	return defaultReadTimeout
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}
