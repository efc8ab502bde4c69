package testutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
)

// EventStreamBody builds a canned SSE response body, one data line per event.
// Adapter tests hand the result to a VendorServer handler.
func EventStreamBody(events ...string) string {
	var b strings.Builder
	for _, e := range events {
		fmt.Fprintf(&b, "data: %s\n\n", e)
	}
	return b.String()
}

// VendorServer is an HTTP server bound to the IPv4 loopback interface, used
// to stand in for provider APIs in tests. Binding tcp4 explicitly avoids
// flaky IPv6 loopback behavior in restricted environments.
type VendorServer struct {
	URL       string
	listener  net.Listener
	server    *http.Server
	transport *http.Transport
	client    *http.Client
}

// NewVendorServer starts a fake vendor API serving handler.
func NewVendorServer(t *testing.T, handler http.Handler) *VendorServer {
	t.Helper()
	if handler == nil {
		handler = http.NewServeMux()
	}
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: tcp4 loopback unavailable (%v)", err)
	}
	transport := &http.Transport{}
	s := &VendorServer{
		URL:       "http://" + l.Addr().String(),
		listener:  l,
		server:    &http.Server{Handler: handler},
		transport: transport,
		client:    &http.Client{Transport: transport},
	}
	go func() {
		if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("VendorServer serve error: %v", err)
		}
	}()
	return s
}

// Client returns an HTTP client configured for the server.
func (s *VendorServer) Client() *http.Client {
	return s.client
}

// Close shuts down the underlying server and frees resources.
func (s *VendorServer) Close() {
	_ = s.server.Shutdown(context.Background())
	s.transport.CloseIdleConnections()
}
