package qdrant

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Default ports. The REST port is what users usually configure; the client
// speaks gRPC.
const (
	RESTPort = 6333
	GRPCPort = 6334
)

// Endpoint is a parsed backend address.
type Endpoint struct {
	Host   string
	Port   int
	UseTLS bool
}

// String renders host:port.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ParseEndpoint parses "scheme://host[:port]" or "host[:port]". The https
// and grpcs schemes enable TLS. A missing port, or the REST port, maps to
// the gRPC port.
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, fmt.Errorf("endpoint is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "grpc://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parsing endpoint: %w", err)
	}

	ep := Endpoint{Host: u.Hostname(), Port: GRPCPort}
	switch u.Scheme {
	case "http", "grpc":
	case "https", "grpcs":
		ep.UseTLS = true
	default:
		return Endpoint{}, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if ep.Host == "" {
		return Endpoint{}, fmt.Errorf("endpoint %q has no host", raw)
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Endpoint{}, fmt.Errorf("invalid endpoint port %q", p)
		}
		if port != RESTPort {
			ep.Port = port
		}
	}
	return ep, nil
}
