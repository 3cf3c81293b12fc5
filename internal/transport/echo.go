package transport

import (
	"sync"
	"time"

	"github.com/zhouzirui/chat-widget/internal/model/realtime"
)

type pendingEcho struct {
	frame realtime.Frame
	at    time.Time
}

// EchoFilter remembers frames this client published so the relay's
// broadcast copy can be dropped once, instead of being appended again.
type EchoFilter struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	now     func() time.Time
	pending []pendingEcho
}

// NewEchoFilter keeps at most max outstanding frames for ttl each.
func NewEchoFilter(ttl time.Duration, max int) *EchoFilter {
	if max <= 0 {
		max = 256
	}
	return &EchoFilter{ttl: ttl, max: max, now: time.Now}
}

// Remember records an outbound frame.
func (f *EchoFilter) Remember(frame realtime.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruneLocked()
	if len(f.pending) >= f.max {
		f.pending = f.pending[1:]
	}
	f.pending = append(f.pending, pendingEcho{frame: frame, at: f.now()})
}

// Forget drops one outstanding record of frame, used when a send fails.
func (f *EchoFilter) Forget(frame realtime.Frame) {
	f.Consume(frame)
}

// Consume reports whether frame is the echo of an outstanding publish and,
// if so, removes that record.
func (f *EchoFilter) Consume(frame realtime.Frame) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruneLocked()
	for i, p := range f.pending {
		if p.frame == frame {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of outstanding records.
func (f *EchoFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruneLocked()
	return len(f.pending)
}

func (f *EchoFilter) pruneLocked() {
	if f.ttl <= 0 {
		return
	}
	cutoff := f.now().Add(-f.ttl)
	i := 0
	for i < len(f.pending) && f.pending[i].at.Before(cutoff) {
		i++
	}
	f.pending = f.pending[i:]
}
