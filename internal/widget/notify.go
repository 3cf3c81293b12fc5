package widget

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-widget/internal/model/chat"
	chatservice "github.com/zhouzirui/chat-widget/internal/service/chat"
)

// notifier delivers appended messages to host listeners, in append order, on
// a goroutine owned by one mount. Listeners may call any widget method,
// Destroy included. Destroy stops the notifier without waiting for it.
type notifier struct {
	listeners func() []MessageListener

	mu      sync.Mutex
	pending []chat.Message
	stopped bool
	wake    chan struct{}
}

func newNotifier(listeners func() []MessageListener) *notifier {
	n := &notifier{listeners: listeners, wake: make(chan struct{}, 1)}
	go n.run()
	return n
}

// observe is registered as a store listener.
func (n *notifier) observe(c chatservice.Change) {
	if c.Kind != chatservice.ChangeAppended || c.Message == nil {
		return
	}
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.pending = append(n.pending, *c.Message)
	n.mu.Unlock()
	n.signal()
}

// stop drops later messages; already queued ones are still delivered.
func (n *notifier) stop() {
	n.mu.Lock()
	n.stopped = true
	n.mu.Unlock()
	n.signal()
}

func (n *notifier) signal() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) run() {
	for range n.wake {
		for {
			n.mu.Lock()
			batch, stopped := n.pending, n.stopped
			n.pending = nil
			n.mu.Unlock()

			if len(batch) == 0 {
				if stopped {
					return
				}
				break
			}
			for _, msg := range batch {
				for _, fn := range n.listeners() {
					deliver(fn, msg)
				}
			}
		}
	}
}

func deliver(fn MessageListener, msg chat.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("message", msg.ID).Msg("[widget] message listener panicked")
		}
	}()
	fn(msg)
}
