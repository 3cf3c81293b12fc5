package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/zhouzirui/chat-widget/internal/model/realtime"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrHubClosed    = errors.New("hub closed")
)

// HubOptions tunes connection handling.
type HubOptions struct {
	Limits        LimitConfig
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	PingInterval  time.Duration
	MaxFrameBytes int64
}

// DefaultHubOptions returns the relay defaults. Frames carry base64 images,
// hence the generous read limit.
func DefaultHubOptions() HubOptions {
	return HubOptions{
		ReadTimeout:   60 * time.Second,
		WriteTimeout:  10 * time.Second,
		PingInterval:  20 * time.Second,
		MaxFrameBytes: 8 << 20,
	}
}

// Hub broadcasts every accepted frame to all attached subscribers, the
// publisher included. It keeps no history.
type Hub struct {
	opts    HubOptions
	metrics *Metrics

	mu      sync.RWMutex
	members map[*Member]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// Member is one attached subscriber.
type Member struct {
	hub       *Hub
	sub       Subscriber
	transport string
	limiter   *rate.Limiter
	once      sync.Once
}

// NewHub creates an empty hub. metrics may be nil.
func NewHub(opts HubOptions, metrics *Metrics) *Hub {
	def := DefaultHubOptions()
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = def.ReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = def.PingInterval
	}
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = def.MaxFrameBytes
	}
	return &Hub{
		opts:    opts,
		metrics: metrics,
		members: make(map[*Member]struct{}),
	}
}

// Join attaches sub to the broadcast set.
func (h *Hub) Join(sub Subscriber, transport string) (*Member, error) {
	m := &Member{hub: h, sub: sub, transport: transport, limiter: h.opts.Limits.newLimiter()}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	h.members[m] = struct{}{}
	h.mu.Unlock()

	h.metrics.joined(transport)
	log.Debug().Str("transport", transport).Int("subscribers", h.Len()).Msg("[relay] subscriber joined")
	return m, nil
}

// Len returns the number of attached subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

// Publish broadcasts a frame that did not originate from a subscriber, such
// as one posted over plain HTTP.
func (h *Hub) Publish(frame realtime.Frame) error {
	return h.broadcast(frame)
}

// Publish broadcasts a frame on behalf of the member, applying its limiter.
func (m *Member) Publish(frame realtime.Frame) error {
	if m.limiter != nil && !m.limiter.Allow() {
		m.hub.metrics.drop(DropRateLimited)
		return ErrRateLimited
	}
	return m.hub.broadcast(frame)
}

// Leave detaches the member and closes its subscriber. Safe to call twice.
func (m *Member) Leave() {
	m.once.Do(func() {
		m.hub.mu.Lock()
		_, present := m.hub.members[m]
		delete(m.hub.members, m)
		m.hub.mu.Unlock()

		if present {
			m.hub.metrics.left(m.transport)
		}
		_ = m.sub.Close()
	})
}

func (h *Hub) broadcast(frame realtime.Frame) error {
	if !frame.Known() {
		h.metrics.drop(DropUnknownEvent)
		return ErrUnknownEvent
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrHubClosed
	}
	targets := make([]*Member, 0, len(h.members))
	for m := range h.members {
		targets = append(targets, m)
	}
	h.mu.RUnlock()

	h.metrics.broadcast(frame.Event)
	for _, m := range targets {
		if err := m.sub.Deliver(frame); err != nil {
			if errors.Is(err, ErrSlowReader) {
				h.metrics.drop(DropSlowReader)
			}
			log.Debug().Err(err).Str("transport", m.transport).Msg("[relay] delivery failed")
		}
	}
	return nil
}

// ServeConn runs the read loop for an upgraded websocket connection until
// the peer goes away or the hub closes.
func (h *Hub) ServeConn(conn *websocket.Conn) {
	h.wg.Add(1)
	defer h.wg.Done()

	ws := newWSSubscriber(conn, h.opts.WriteTimeout)
	member, err := h.Join(ws, TransportWebSocket)
	if err != nil {
		_ = ws.Close()
		return
	}
	defer member.Leave()

	conn.SetReadLimit(h.opts.MaxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(h.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := ws.ping(); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("[relay] websocket closed unexpectedly")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))

		var frame realtime.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.metrics.drop(DropMalformed)
			log.Debug().Err(err).Msg("[relay] malformed frame")
			continue
		}
		if err := member.Publish(frame); err != nil {
			log.Debug().Err(err).Str("event", frame.Event).Msg("[relay] frame not broadcast")
		}
	}
}

// Close detaches and closes every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	members := make([]*Member, 0, len(h.members))
	for m := range h.members {
		members = append(members, m)
	}
	h.mu.Unlock()

	for _, m := range members {
		m.Leave()
	}
	log.Info().Int("closed", len(members)).Msg("[relay] hub closed")
}

// Wait blocks until every ServeConn loop has returned.
func (h *Hub) Wait() {
	h.wg.Wait()
}
