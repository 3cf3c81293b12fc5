package storage

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-widget/internal/model/chat"
)

// WriteBehind moves persistence writes off the caller's goroutine. Only the
// newest pending snapshot of each blob is kept; older ones are superseded.
type WriteBehind struct {
	p *Persistence

	mu          sync.Mutex
	pendingLog  []chat.Message
	hasLog      bool
	logSeq      uint64
	pendingResp chat.ResponseMapping
	hasResp     bool
	closed      bool

	// writeMu orders saves between the writer goroutine and late callers.
	writeMu sync.Mutex

	wake     chan struct{}
	flushReq chan chan struct{}
	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once
}

// NewWriteBehind starts the writer goroutine.
func NewWriteBehind(p *Persistence) *WriteBehind {
	w := &WriteBehind{
		p:        p,
		wake:     make(chan struct{}, 1),
		flushReq: make(chan chan struct{}),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.run()
	return w
}

// QueueLog schedules a log snapshot. Snapshots with a seq not newer than the
// last queued one are ignored.
func (w *WriteBehind) QueueLog(seq uint64, messages []chat.Message) {
	w.mu.Lock()
	if seq != 0 && seq <= w.logSeq {
		w.mu.Unlock()
		return
	}
	if seq != 0 {
		w.logSeq = seq
	}
	w.pendingLog = messages
	w.hasLog = true
	closed := w.closed
	w.mu.Unlock()
	w.afterQueue(closed)
}

// QueueResponses schedules a mapping snapshot.
func (w *WriteBehind) QueueResponses(mapping chat.ResponseMapping) {
	w.mu.Lock()
	w.pendingResp = mapping
	w.hasResp = true
	closed := w.closed
	w.mu.Unlock()
	w.afterQueue(closed)
}

// Flush blocks until everything queued so far has been written.
func (w *WriteBehind) Flush() {
	ack := make(chan struct{})
	select {
	case w.flushReq <- ack:
		<-ack
	case <-w.stopped:
	}
}

// Close writes what is pending and stops the goroutine. Snapshots queued
// after Close are written on the caller's goroutine.
func (w *WriteBehind) Close() {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.done)
	})
	<-w.stopped
}

func (w *WriteBehind) afterQueue(closed bool) {
	if closed {
		w.drain()
		return
	}
	w.signal()
}

func (w *WriteBehind) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *WriteBehind) run() {
	defer close(w.stopped)
	for {
		select {
		case <-w.wake:
			w.drain()
		case ack := <-w.flushReq:
			w.drain()
			close(ack)
		case <-w.done:
			w.drain()
			return
		}
	}
}

func (w *WriteBehind) drain() {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.Lock()
	messages, hasLog := w.pendingLog, w.hasLog
	mapping, hasResp := w.pendingResp, w.hasResp
	w.pendingLog, w.hasLog = nil, false
	w.pendingResp, w.hasResp = nil, false
	w.mu.Unlock()

	if hasLog {
		if err := w.p.SaveLog(messages); err != nil {
			log.Error().Err(err).Msg("[storage] save conversation log failed")
		}
	}
	if hasResp {
		if err := w.p.SaveResponses(mapping); err != nil {
			log.Error().Err(err).Msg("[storage] save custom responses failed")
		}
	}
}
