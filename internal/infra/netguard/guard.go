// Package netguard keeps every outbound call of the process on the loopback
// interface. Check runs once at startup against the configured inference
// daemon endpoint; LoopbackClient is the only http.Client handed to engine
// adapters.
package netguard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultOllamaPort is the port the local inference daemon listens on.
const DefaultOllamaPort = 11434

var (
	// ErrNonLocalEndpoint is returned when an endpoint does not resolve to loopback
	// on the expected port.
	ErrNonLocalEndpoint = errors.New("endpoint is not on the loopback interface")

	// ErrRemoteDial is returned by LoopbackClient when a dial targets a non-loopback address.
	ErrRemoteDial = errors.New("refusing to dial non-loopback address")
)

var loopbackHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

// IsLoopbackEndpoint reports whether raw denotes the loopback interface on
// expectedPort. An empty value is compliant. A missing scheme is tolerated
// ("localhost:11434") and a missing port means expectedPort.
func IsLoopbackEndpoint(raw string, expectedPort int) bool {
	host, port, ok := splitEndpoint(raw, expectedPort)
	if !ok {
		return false
	}
	if host == "" && port == 0 {
		return true
	}
	return loopbackHosts[host] && port == expectedPort
}

// Check returns ErrNonLocalEndpoint (wrapping the offending value) unless raw
// passes IsLoopbackEndpoint.
func Check(raw string, expectedPort int) error {
	if IsLoopbackEndpoint(raw, expectedPort) {
		return nil
	}
	return fmt.Errorf("%w: %q (want localhost:%d)", ErrNonLocalEndpoint, raw, expectedPort)
}

// CheckHost is the port-agnostic variant used for the speech engines, which
// may run on any local port. Empty values are rejected because the engines
// have no implicit default host.
func CheckHost(raw string) error {
	host, _, ok := splitEndpoint(raw, 0)
	if !ok || !loopbackHosts[host] {
		return fmt.Errorf("%w: %q", ErrNonLocalEndpoint, raw)
	}
	return nil
}

// IsLoopbackHost reports whether a Host header value ("localhost:5000",
// "[::1]:5000", "127.0.0.2") names the loopback interface.
func IsLoopbackHost(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if loopbackHosts[host] {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// BaseURL normalizes an OLLAMA_HOST style value into an http base URL
// without a trailing slash.
func BaseURL(raw string, defaultPort int) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "http://127.0.0.1:" + strconv.Itoa(defaultPort)
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(defaultPort))
	}
	return strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/")
}

func splitEndpoint(raw string, defaultPort int) (string, int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", 0, true
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", 0, false
	}
	port := defaultPort
	if p := u.Port(); p != "" {
		n, convErr := strconv.Atoi(p)
		if convErr != nil {
			return "", 0, false
		}
		port = n
	}
	return host, port, true
}

// LoopbackClient returns an http.Client whose transport ignores proxy
// environment variables and refuses to connect anywhere but loopback.
// timeout of zero leaves the client unbounded.
func LoopbackClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy: nil,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			target, err := resolveLoopback(ctx, addr)
			if err != nil {
				return nil, err
			}
			return dialer.DialContext(ctx, network, target)
		},
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// resolveLoopback resolves addr and returns a host:port pointing at a
// loopback IP, or ErrRemoteDial if any resolved address is not loopback.
func resolveLoopback(ctx context.Context, addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("netguard: split %q: %w", addr, err)
	}
	if ip := net.ParseIP(host); ip != nil {
		if !ip.IsLoopback() {
			return "", fmt.Errorf("%w: %s", ErrRemoteDial, addr)
		}
		return addr, nil
	}
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return "", fmt.Errorf("netguard: resolve %q: %w", host, err)
	}
	if len(ips) == 0 {
		return "", fmt.Errorf("%w: %s resolved to nothing", ErrRemoteDial, host)
	}
	for _, ip := range ips {
		if !ip.IP.IsLoopback() {
			return "", fmt.Errorf("%w: %s resolves to %s", ErrRemoteDial, host, ip.IP)
		}
	}
	return net.JoinHostPort(ips[0].IP.String(), port), nil
}
