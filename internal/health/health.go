// Package health exposes daemon readiness over the standard gRPC health
// protocol on a unix socket.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

const (
	// ServiceDaemon is the overall daemon status.
	ServiceDaemon = ""
	// ServiceRecorder reports whether captures can start.
	ServiceRecorder = "shutter.recorder"
	// ServiceUploads reports whether uploads have a destination.
	ServiceUploads = "shutter.uploads"
)

// Services lists every service the daemon reports.
var Services = []string{ServiceDaemon, ServiceRecorder, ServiceUploads}

// Server is the daemon-side health endpoint.
type Server struct {
	path     string
	listener net.Listener
	grpc     *grpc.Server
	health   *health.Server
}

// Listen binds the health socket at path. A leftover socket file is replaced;
// the command socket already guarantees a single daemon.
func Listen(path string) (*Server, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure health socket dir: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale health socket %s: %w", path, err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen unix %s: %w", path, err)
	}
	_ = os.Chmod(path, 0o600)

	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	for _, service := range Services {
		hs.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	}

	return &Server{path: path, listener: listener, grpc: gs, health: hs}, nil
}

// Serve blocks until Stop is called.
func (s *Server) Serve() error {
	if err := s.grpc.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve health: %w", err)
	}
	return nil
}

// SetServing updates one service's status.
func (s *Server) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, status)
}

// Stop marks every service NOT_SERVING, drains RPCs, and removes the socket.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
	_ = os.Remove(s.path)
}

// Check dials the health socket at path and queries one service.
func Check(ctx context.Context, path string, service string, timeout time.Duration) (*healthpb.HealthCheckResponse, error) {
	results, err := CheckAll(ctx, path, []string{service}, timeout)
	if err != nil {
		return nil, err
	}
	return results[service], nil
}

// CheckAll queries each service over one connection.
func CheckAll(ctx context.Context, path string, services []string, timeout time.Duration) (map[string]*healthpb.HealthCheckResponse, error) {
	if timeout <= 0 {
		timeout = time.Second
	}
	conn, err := grpc.NewClient(
		"unix://"+path,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial health socket %q: %w", path, err)
	}
	defer conn.Close()

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn.Connect()
	if err := waitForReady(readyCtx, conn); err != nil {
		return nil, fmt.Errorf("wait for health socket readiness: %w", err)
	}

	client := healthpb.NewHealthClient(conn)
	results := make(map[string]*healthpb.HealthCheckResponse, len(services))
	for _, service := range services {
		resp, err := client.Check(readyCtx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			return nil, fmt.Errorf("check %q: %w", displayName(service), err)
		}
		results[service] = resp
	}
	return results, nil
}

// Render formats check results as one protojson line per service.
func Render(results map[string]*healthpb.HealthCheckResponse) (string, error) {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	marshal := protojson.MarshalOptions{UseProtoNames: true, EmitUnpopulated: true}
	var b strings.Builder
	for _, name := range names {
		payload, err := marshal.Marshal(results[name])
		if err != nil {
			return "", fmt.Errorf("encode %q health: %w", displayName(name), err)
		}
		fmt.Fprintf(&b, "%s %s\n", displayName(name), compactJSON(payload))
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

// Serving reports whether every result is SERVING.
func Serving(results map[string]*healthpb.HealthCheckResponse) bool {
	for _, resp := range results {
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			return false
		}
	}
	return len(results) > 0
}

func displayName(service string) string {
	if service == ServiceDaemon {
		return "shutter"
	}
	return service
}

// compactJSON strips the whitespace protojson may insert.
func compactJSON(payload []byte) string {
	return strings.Join(strings.Fields(string(payload)), "")
}

// waitForReady blocks until the connection enters Ready or fails.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
