// Package transport wraps one bidirectional text-message websocket channel
// to a single remote endpoint. It owns the connect/disconnect lifecycle and
// low-level send, enforces the protocol's payload cap and reports inbound
// frames and closure to its delegate.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xpanvictor/goocast/pkg/Logger"
)

const (
	// MaxPayloadSize caps outbound and inbound text frames.
	MaxPayloadSize = 4096

	handshakeTimeout = 5 * time.Second
	closeGrace       = 2 * time.Second
)

var (
	ErrNotConnected     = errors.New("transport: session not connected")
	ErrAlreadyConnected = errors.New("transport: session already connected")
	ErrPayloadTooLarge  = errors.New("transport: payload exceeds maximum size")
)

// Delegate receives session events. OnMessage and OnDisconnected are invoked
// on the session's reader goroutine; OnConnected on the Connect caller's.
// OnDisconnected fires exactly once per successful Connect, with a nil error
// for a clean close.
type Delegate interface {
	OnConnected(s *Session)
	OnMessage(s *Session, payload []byte)
	OnDisconnected(s *Session, err error)
}

// Session is one websocket connection to a device. A session is used for a
// single connect/disconnect cycle; the owner creates a fresh one to
// reconnect.
type Session struct {
	url      string
	delegate Delegate
	logger   *Logger.Logger

	mu      sync.Mutex // guards conn and serializes writes
	conn    *websocket.Conn
	closing bool
}

// NewSession builds a session for the given websocket URL. Nothing happens
// on the network until Connect.
func NewSession(url string, delegate Delegate, logger *Logger.Logger) *Session {
	return &Session{
		url:      url,
		delegate: delegate,
		logger:   Logger.OrNop(logger),
	}
}

// URL returns the endpoint this session targets.
func (s *Session) URL() string {
	return s.url
}

// Connect performs the websocket handshake and starts the reader. The
// optional TLS configuration is passed through to the dialer untouched.
func (s *Session) Connect(ctx context.Context, tlsCfg *tls.Config) error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		TLSClientConfig:  tlsCfg,
	}
	conn, resp, err := dialer.DialContext(ctx, s.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("transport: connecting %s: %w", s.url, err)
	}
	conn.SetReadLimit(MaxPayloadSize)

	s.mu.Lock()
	s.conn = conn
	s.closing = false
	s.mu.Unlock()

	s.logger.Debugf("websocket connected to %s", s.url)
	go s.readPump(conn)
	s.delegate.OnConnected(s)
	return nil
}

// Send transmits one text frame. It fails synchronously when the payload is
// over the cap or the session is not connected; there is no queueing.
func (s *Session) Send(payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return ErrPayloadTooLarge
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || s.closing {
		return ErrNotConnected
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Disconnect starts a clean close. The reader goroutine observes the close
// handshake (or the grace deadline) and fires OnDisconnected.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.closing = true
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.mu.Unlock()

	// The peer should answer with its own close frame; the deadline keeps
	// the reader from hanging when it does not.
	conn.SetReadDeadline(time.Now().Add(closeGrace))
	if err != nil {
		conn.Close()
	}
	return nil
}

func (s *Session) readPump(conn *websocket.Conn) {
	var cause error
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !s.isClosing() {
				cause = err
			}
			break
		}
		s.delegate.OnMessage(s, payload)
	}

	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()
	conn.Close()

	if cause != nil {
		s.logger.Debugf("websocket to %s failed: %v", s.url, cause)
	} else {
		s.logger.Debugf("websocket to %s closed", s.url)
	}
	s.delegate.OnDisconnected(s, cause)
}

func (s *Session) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}
