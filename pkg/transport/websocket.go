// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

// DialOptions configures a WebSocket client
type DialOptions struct {
	URL      string
	Username string
	Password string
	// SkipVerify disables TLS certificate verification for wss:// URLs
	SkipVerify bool
	// Timeout bounds the whole dial. Zero selects 15 seconds.
	Timeout   time.Duration
	InboxSize int
	// OutboxFrames bounds queued outgoing frames. Zero selects
	// DefaultOutboxFrames.
	OutboxFrames int
	// WriteTimeout bounds each frame write. Zero selects DefaultWriteTimeout.
	WriteTimeout time.Duration
}

// WebSocketClient is a Channel to a WebSocket bridge. Link bytes travel in
// binary messages; other message types are ignored. Writes are queued and
// sent by a background writer; a peer that stops reading breaks the link
// once a frame write times out.
type WebSocketClient struct {
	conn *websocket.Conn
	*inbox
	out          *outbox
	writeTimeout time.Duration

	closed atomic.Bool
	broken atomic.Bool
	done   chan struct{}
}

// RedactURL returns rawURL with any password replaced, for logs and error
// messages
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid URL>"
	}
	return u.Redacted()
}

// Dial connects to a WebSocket bridge, with HTTP Basic auth when a username
// and password are given
func Dial(ctx context.Context, opts DialOptions) (*WebSocketClient, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: opts.SkipVerify,
		}
	}

	headers := http.Header{}
	if opts.Username != "" && opts.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, opts.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	c := &WebSocketClient{
		conn:         conn,
		inbox:        newInbox(opts.InboxSize),
		out:          newOutbox(opts.OutboxFrames),
		writeTimeout: writeTimeout(opts.WriteTimeout),
		done:         make(chan struct{}),
	}
	go c.readLoop()
	go c.writeLoop()
	return c, nil
}

func writeTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultWriteTimeout
	}
	return d
}

// writeFrames sends queued frames to conn until stop is closed or a write
// fails
func writeFrames(conn *websocket.Conn, out *outbox, timeout time.Duration, stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		case <-out.ready:
		}
		for _, f := range out.take() {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				return err
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, f); err != nil {
				return err
			}
		}
	}
}

func (c *WebSocketClient) writeLoop() {
	err := writeFrames(c.conn, c.out, c.writeTimeout, c.done)
	if err == nil {
		return
	}
	if !c.closed.Load() {
		glog.Warningf("websocket write failed: %v", err)
	}
	c.broken.Store(true)
	c.conn.Close()
}

func (c *WebSocketClient) readLoop() {
	defer close(c.done)
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				glog.Warningf("websocket read failed: %v", err)
			}
			c.broken.Store(true)
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		c.push(data)
	}
}

// Connected implements Channel
func (c *WebSocketClient) Connected() bool {
	return !c.closed.Load() && !c.broken.Load()
}

// ReadAvailable implements Channel
func (c *WebSocketClient) ReadAvailable(p []byte) int {
	return c.drain(p)
}

// Write implements Channel. The frame is queued without blocking; when the
// queue is full the oldest frame is dropped.
func (c *WebSocketClient) Write(p []byte) (int, error) {
	if !c.Connected() {
		return 0, ErrClosed
	}
	c.out.push(p)
	return len(p), nil
}

// DroppedFrames returns the outgoing frames discarded because the writer fell
// behind
func (c *WebSocketClient) DroppedFrames() uint64 {
	return c.out.droppedFrames()
}

// Close implements Channel
func (c *WebSocketClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := c.conn.Close()
	<-c.done
	if errors.Is(err, net.ErrClosed) {
		// the writer already dropped the connection
		return nil
	}
	return err
}

// WebSocketServer is a Channel that accepts a single WebSocket peer. A
// second peer is refused while one is attached. A peer that stops reading
// is dropped once a frame write times out.
type WebSocketServer struct {
	upgrader websocket.Upgrader
	*inbox
	out *outbox

	mu     sync.Mutex
	conn   *websocket.Conn
	closed atomic.Bool
	srv    *http.Server

	// OnPeer is called with true when a peer attaches and false when it leaves
	OnPeer func(attached bool)

	// WriteTimeout bounds each frame write. Zero selects
	// DefaultWriteTimeout. Set it before serving.
	WriteTimeout time.Duration
}

// NewWebSocketServer creates a server channel. Mount it as an http.Handler
// or start it with ListenAndServe.
func NewWebSocketServer(inboxSize int) *WebSocketServer {
	return &WebSocketServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		inbox: newInbox(inboxSize),
		out:   newOutbox(0),
	}
}

// ServeHTTP upgrades the request and serves the peer until it disconnects
func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.closed.Load() {
		http.Error(w, "closed", http.StatusServiceUnavailable)
		return
	}

	s.mu.Lock()
	busy := s.conn != nil
	s.mu.Unlock()
	if busy {
		http.Error(w, "peer already attached", http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("websocket upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()

	s.reset()
	s.out.reset()
	stop := make(chan struct{})
	go func() {
		if err := writeFrames(conn, s.out, writeTimeout(s.WriteTimeout), stop); err != nil {
			glog.Warningf("peer %s write failed, dropping: %v", r.RemoteAddr, err)
			conn.Close()
		}
	}()
	glog.Infof("peer attached from %s", r.RemoteAddr)
	if s.OnPeer != nil {
		s.OnPeer(true)
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType == websocket.BinaryMessage {
			s.push(data)
		}
	}

	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()
	close(stop)
	conn.Close()

	glog.Infof("peer %s detached", r.RemoteAddr)
	if s.OnPeer != nil {
		s.OnPeer(false)
	}
}

// ListenAndServe serves peers on addr until Close
func (s *WebSocketServer) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(l)
}

// Serve serves peers on l until Close
func (s *WebSocketServer) Serve(l net.Listener) error {
	s.mu.Lock()
	s.srv = &http.Server{Handler: s, ReadHeaderTimeout: 10 * time.Second}
	srv := s.srv
	s.mu.Unlock()

	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Connected implements Channel
func (s *WebSocketServer) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// ReadAvailable implements Channel
func (s *WebSocketServer) ReadAvailable(p []byte) int {
	return s.drain(p)
}

// Write implements Channel. The frame is queued for the attached peer
// without blocking; when the queue is full the oldest frame is dropped.
func (s *WebSocketServer) Write(p []byte) (int, error) {
	if !s.Connected() {
		return 0, ErrNotConnected
	}
	s.out.push(p)
	return len(p), nil
}

// DroppedFrames returns the outgoing frames discarded because the writer fell
// behind
func (s *WebSocketServer) DroppedFrames() uint64 {
	return s.out.droppedFrames()
}

// Close implements Channel
func (s *WebSocketServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	conn, srv := s.conn, s.srv
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if srv != nil {
		return srv.Close()
	}
	return nil
}
