package ipc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendRoundTrip(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "shutter.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			require.Equal(t, "status", req.Command)
			return Response{OK: true, State: "recording", Message: "ok"}
		}))
	}()

	resp, err := Send(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "recording", resp.State)
	require.Equal(t, "ok", resp.Message)

	cancel()
	require.NoError(t, <-serveDone)
}

func TestSendCarriesArgsAndData(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "shutter.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan Request, 1)
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			seen <- req
			return Response{OK: true, Data: json.RawMessage(`{"active":1}`)}
		}))
	}()

	resp, err := Send(context.Background(), socketPath, Request{Command: "bind", Args: []string{"video", "Super+Shift+R"}}, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.JSONEq(t, `{"active":1}`, string(resp.Data))

	req := <-seen
	require.Equal(t, "bind", req.Command)
	require.Equal(t, []string{"video", "Super+Shift+R"}, req.Args)

	cancel()
	require.NoError(t, <-serveDone)
}

func TestSendDecodeResponseError(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "shutter.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		_, _ = reader.ReadBytes('\n')
		_, _ = conn.Write([]byte("not-json\n"))
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestSendReadResponseError(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "shutter.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		_ = conn.Close()
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "read response")
}

func TestServeDecodeRequestErrorResponse(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "shutter.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, _ Request) Response {
			return Response{OK: true}
		}))
	}()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not-json\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "decode request")

	cancel()
	require.NoError(t, <-serveDone)
}

func TestReachable(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "shutter.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			if req.Command == "status" {
				return Response{OK: true, State: "idle"}
			}
			return Response{OK: false, Error: "bad"}
		}))
	}()

	alive, err := Reachable(context.Background(), socketPath, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, alive)

	cancel()
	require.NoError(t, <-serveDone)

	alive, err = Reachable(context.Background(), socketPath, 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, alive)
}

func TestSendWithoutDaemon(t *testing.T) {
	_, err := Send(context.Background(), filepath.Join(t.TempDir(), "shutter.sock"), Request{Command: "status"}, 100*time.Millisecond)
	require.ErrorIs(t, err, ErrNoDaemon)
}

// startServer runs srv on a fresh socket and returns its path.
func startServer(t *testing.T, srv *Server) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "shutter.sock")
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Serve(ctx, listener) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-serveDone)
	})
	return socketPath
}

func TestServerNormalizesCommand(t *testing.T) {
	seen := make(chan string, 1)
	socketPath := startServer(t, &Server{Handler: HandlerFunc(func(_ context.Context, req Request) Response {
		seen <- req.Command
		return Response{OK: true}
	})})

	resp, err := Send(context.Background(), socketPath, Request{Command: "  Status "}, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "status", <-seen)
}

func TestServerRejectsMissingCommand(t *testing.T) {
	socketPath := startServer(t, &Server{Handler: HandlerFunc(func(context.Context, Request) Response {
		t.Error("handler must not run")
		return Response{OK: true}
	})})

	resp, err := Send(context.Background(), socketPath, Request{Command: " "}, 200*time.Millisecond)
	require.NoError(t, err)
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "missing command")
}

func TestServerRecoversHandlerPanic(t *testing.T) {
	socketPath := startServer(t, &Server{Handler: HandlerFunc(func(context.Context, Request) Response {
		panic("nil binding")
	})})

	resp, err := Send(context.Background(), socketPath, Request{Command: "bind"}, 200*time.Millisecond)
	require.NoError(t, err)
	require.False(t, resp.OK)
	require.Equal(t, "bind: internal daemon error", resp.Error)

	resp, err = Send(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.NoError(t, err)
	require.False(t, resp.OK)
}

func TestServerAnswersSilentClient(t *testing.T) {
	socketPath := startServer(t, &Server{
		Handler:     HandlerFunc(func(context.Context, Request) Response { return Response{OK: true} }),
		ReadTimeout: 30 * time.Millisecond,
	})

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)
	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "read request")
}

func TestServerRejectsOversizedRequest(t *testing.T) {
	socketPath := startServer(t, &Server{Handler: HandlerFunc(func(context.Context, Request) Response {
		t.Error("handler must not run")
		return Response{OK: true}
	})})

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	go func() { _, _ = conn.Write(bytes.Repeat([]byte("a"), MaxMessageBytes+1)) }()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)
	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "exceeds")
}
