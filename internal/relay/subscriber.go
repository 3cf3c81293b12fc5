package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/chat-widget/internal/model/realtime"
)

// Transport labels.
const (
	TransportWebSocket = "websocket"
	TransportSSE       = "sse"
)

var (
	ErrSlowReader       = errors.New("subscriber buffer full")
	ErrSubscriberClosed = errors.New("subscriber closed")
)

// Subscriber receives broadcast frames. Deliver must not block for long.
type Subscriber interface {
	Deliver(frame realtime.Frame) error
	Close() error
}

// wsSubscriber serializes writes to one websocket connection.
type wsSubscriber struct {
	conn         *websocket.Conn
	mu           sync.Mutex
	writeTimeout time.Duration
	closed       bool
}

func newWSSubscriber(conn *websocket.Conn, writeTimeout time.Duration) *wsSubscriber {
	return &wsSubscriber{conn: conn, writeTimeout: writeTimeout}
}

func (s *wsSubscriber) Deliver(frame realtime.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSubscriberClosed
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return writeFrame(s.conn, frame)
}

func (s *wsSubscriber) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSubscriberClosed
	}
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout))
}

func (s *wsSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(s.writeTimeout))
	return s.conn.Close()
}

// writeFrame encodes without HTML escaping so payloads reach peers unchanged.
func writeFrame(conn *websocket.Conn, frame realtime.Frame) error {
	w, err := conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(frame); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// SSEStream buffers frames for a server-sent events response. The HTTP
// handler drains Frames until Done is closed.
type SSEStream struct {
	frames chan realtime.Frame
	done   chan struct{}
	once   sync.Once
}

// NewSSEStream creates a stream holding up to buffer undelivered frames.
func NewSSEStream(buffer int) *SSEStream {
	if buffer <= 0 {
		buffer = 32
	}
	return &SSEStream{
		frames: make(chan realtime.Frame, buffer),
		done:   make(chan struct{}),
	}
}

func (s *SSEStream) Deliver(frame realtime.Frame) error {
	select {
	case <-s.done:
		return ErrSubscriberClosed
	default:
	}
	select {
	case s.frames <- frame:
		return nil
	default:
		return ErrSlowReader
	}
}

// Frames yields delivered frames in broadcast order.
func (s *SSEStream) Frames() <-chan realtime.Frame { return s.frames }

// Done is closed when the hub or the handler closes the stream.
func (s *SSEStream) Done() <-chan struct{} { return s.done }

func (s *SSEStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
