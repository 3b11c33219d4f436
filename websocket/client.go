package websocket

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// DialOptions configures the client-side handshake performed by Dial.
//
// All fields are optional. Zero values use sensible defaults.
type DialOptions struct {
	// Subprotocols lists the subprotocols offered to the server, in
	// preference order. Empty = no subprotocol negotiation.
	Subprotocols []string

	// Header carries additional request headers (e.g. Authorization,
	// Cookie) to send with the upgrade request.
	Header http.Header

	// TLSConfig configures the TLS handshake for wss:// targets. nil
	// uses the zero value of tls.Config.
	TLSConfig *tls.Config

	// ReadBufferSize sets the size of the read buffer (default: 4096).
	ReadBufferSize int

	// WriteBufferSize sets the size of the write buffer (default: 4096).
	WriteBufferSize int
}

// Dial performs the RFC 6455 Section 4.1 client opening handshake
// against rawURL (ws:// or wss://) and returns a Conn in the Client
// role. The context governs the TCP (and TLS) dial only; it does not
// bound the lifetime of the resulting connection.
func Dial(ctx context.Context, rawURL string, opts *DialOptions) (*Conn, error) {
	if opts == nil {
		opts = &DialOptions{}
	}
	if opts.ReadBufferSize == 0 {
		opts.ReadBufferSize = defaultReadBufferSize
	}
	if opts.WriteBufferSize == 0 {
		opts.WriteBufferSize = defaultWriteBufferSize
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("websocket: parse url: %w", err)
	}

	var useTLS bool
	switch u.Scheme {
	case "ws":
		useTLS = false
	case "wss":
		useTLS = true
	default:
		return nil, fmt.Errorf("websocket: unsupported scheme %q", u.Scheme)
	}

	hostport := u.Host
	if !strings.Contains(hostport, ":") {
		if useTLS {
			hostport += ":443"
		} else {
			hostport += ":80"
		}
	}

	var d net.Dialer
	netConn, err := d.DialContext(ctx, "tcp", hostport)
	if err != nil {
		return nil, fmt.Errorf("websocket: dial: %w", err)
	}

	if useTLS {
		tlsConn := tls.Client(netConn, opts.TLSConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = netConn.Close()
			return nil, fmt.Errorf("websocket: tls handshake: %w", err)
		}
		netConn = tlsConn
	}

	conn, err := clientHandshake(netConn, u, opts)
	if err != nil {
		_ = netConn.Close()
		return nil, err
	}
	return conn, nil
}

// clientHandshake sends the upgrade request and validates the server's
// response over an already-dialed netConn.
func clientHandshake(netConn net.Conn, u *url.URL, opts *DialOptions) (*Conn, error) {
	key, err := secWebSocketKey()
	if err != nil {
		return nil, fmt.Errorf("websocket: generate key: %w", err)
	}

	path := u.RequestURI()
	if path == "" {
		path = "/"
	}

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket: build request: %w", err)
	}
	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Sec-WebSocket-Key", key)
	req.Header.Set("Sec-WebSocket-Version", "13")
	if len(opts.Subprotocols) > 0 {
		req.Header.Set("Sec-WebSocket-Protocol", strings.Join(opts.Subprotocols, ", "))
	}
	req.Host = u.Host
	req.URL.Path = path

	if err := req.Write(netConn); err != nil {
		return nil, fmt.Errorf("websocket: send request: %w", err)
	}

	reader := bufio.NewReaderSize(netConn, opts.ReadBufferSize)
	resp, err := http.ReadResponse(reader, req)
	if err != nil {
		return nil, fmt.Errorf("websocket: read response: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		return nil, fmt.Errorf("%w: got %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if !headerContainsToken(resp.Header.Get("Upgrade"), "websocket") {
		return nil, ErrMissingUpgrade
	}
	if !headerContainsToken(resp.Header.Get("Connection"), "upgrade") {
		return nil, ErrMissingConnection
	}
	if resp.Header.Get("Sec-WebSocket-Accept") != computeAcceptKey(key) {
		return nil, ErrAcceptMismatch
	}

	writer := bufio.NewWriterSize(netConn, opts.WriteBufferSize)
	return newConn(netConn, reader, writer, Client), nil
}

// secWebSocketKey generates the random, base64-encoded 16-byte nonce
// required by RFC 6455 Section 4.1 for Sec-WebSocket-Key.
func secWebSocketKey() (string, error) {
	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(nonce[:]), nil
}
