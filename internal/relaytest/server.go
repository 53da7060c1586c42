// Package relaytest runs an in-process websocket relay that records what
// clients send and lets tests script what it answers.
package relaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nbd-wtf/go-nostr"
)

// Frame is one inbound client frame.
type Frame struct {
	Label string
	Args  []json.RawMessage
	Raw   []byte
}

// SubID returns the subscription id of a REQ or CLOSE frame.
func (f Frame) SubID() string {
	var id string
	if len(f.Args) > 0 {
		_ = json.Unmarshal(f.Args[0], &id)
	}
	return id
}

// Event decodes the payload of an EVENT frame.
func (f Frame) Event() *nostr.Event {
	evt := &nostr.Event{}
	if len(f.Args) > 0 {
		_ = json.Unmarshal(f.Args[0], evt)
	}
	return evt
}

// Filters decodes the filters of a REQ frame.
func (f Frame) Filters() []map[string]json.RawMessage {
	var out []map[string]json.RawMessage
	if len(f.Args) < 2 {
		return out
	}
	for _, raw := range f.Args[1:] {
		var m map[string]json.RawMessage
		_ = json.Unmarshal(raw, &m)
		out = append(out, m)
	}
	return out
}

// Handler reacts to a client frame.
type Handler func(s *Session, f Frame)

// Server is a scripted relay.
type Server struct {
	URL string

	http    *httptest.Server
	handler Handler
	gate    chan struct{}
	frames  chan Frame

	mu       sync.Mutex
	sessions []*Session
}

// Option configures a Server.
type Option func(*Server)

// WithHandler sets the frame handler.
func WithHandler(h Handler) Option { return func(s *Server) { s.handler = h } }

// WithGate holds every websocket upgrade until Release is called.
func WithGate() Option { return func(s *Server) { s.gate = make(chan struct{}) } }

// New starts a relay that is shut down with the test.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s := &Server{frames: make(chan Frame, 1024)}
	for _, apply := range opts {
		apply(s)
	}

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	s.http = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.gate != nil {
			select {
			case <-s.gate:
			case <-r.Context().Done():
				return
			}
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sess := &Session{ws: ws}
		s.mu.Lock()
		s.sessions = append(s.sessions, sess)
		s.mu.Unlock()
		s.serve(sess)
	}))
	s.URL = "ws" + strings.TrimPrefix(s.http.URL, "http")
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serve(sess *Session) {
	defer sess.Close()
	for {
		_, raw, err := sess.ws.ReadMessage()
		if err != nil {
			return
		}
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil || len(arr) == 0 {
			continue
		}
		f := Frame{Raw: raw, Args: arr[1:]}
		_ = json.Unmarshal(arr[0], &f.Label)

		select {
		case s.frames <- f:
		default:
		}
		if s.handler != nil {
			s.handler(sess, f)
		}
	}
}

// Release lets gated upgrades proceed.
func (s *Server) Release() { close(s.gate) }

// Next waits for the next frame with the given label, skipping others.
func (s *Server) Next(label string, timeout time.Duration) (Frame, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case f := <-s.frames:
			if f.Label == label {
				return f, true
			}
		case <-deadline:
			return Frame{}, false
		}
	}
}

// Session returns the i-th accepted connection, waiting briefly for it.
func (s *Server) Session(i int, timeout time.Duration) *Session {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		if len(s.sessions) > i {
			sess := s.sessions[i]
			s.mu.Unlock()
			return sess
		}
		s.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

// Close drops every session and stops the listener.
func (s *Server) Close() {
	s.mu.Lock()
	for _, sess := range s.sessions {
		sess.Close()
	}
	s.mu.Unlock()
	if s.gate != nil {
		select {
		case <-s.gate:
		default:
			close(s.gate)
		}
	}
	s.http.Close()
}

// Session is one accepted client connection.
type Session struct {
	ws   *websocket.Conn
	mu   sync.Mutex
	once sync.Once
}

// Send writes a JSON array frame built from parts.
func (s *Session) Send(parts ...interface{}) error {
	raw, err := json.Marshal(parts)
	if err != nil {
		return err
	}
	return s.SendRaw(raw)
}

// SendRaw writes raw as a text frame.
func (s *Session) SendRaw(raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.WriteMessage(websocket.TextMessage, raw)
}

// Close drops the connection without a close handshake.
func (s *Session) Close() {
	s.once.Do(func() { _ = s.ws.Close() })
}
