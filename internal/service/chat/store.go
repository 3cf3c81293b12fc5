package chat

import (
	"sync"

	"github.com/google/uuid"
	"github.com/zhouzirui/chat-widget/internal/model/chat"
)

// ChangeKind describes which mutation produced a Change.
type ChangeKind string

const (
	ChangeAppended ChangeKind = "appended"
	ChangeLoaded   ChangeKind = "loaded"
	ChangeCleared  ChangeKind = "cleared"
)

// Change is delivered to listeners after every log mutation.
type Change struct {
	Kind ChangeKind
	// Message is set only for ChangeAppended.
	Message *chat.Message
	// Snapshot is the full log after the mutation. Listeners own it.
	Snapshot []chat.Message
	// Seq increases with every mutation; listeners racing across goroutines
	// use it to discard stale snapshots.
	Seq uint64
}

// Listener observes log mutations. Listeners run outside the store lock and
// may call back into the store.
type Listener func(Change)

// Store holds the ordered conversation log, the unread badge counter and the
// visibility flag the counter depends on.
type Store struct {
	mu        sync.RWMutex
	messages  []chat.Message
	unread    int
	visible   bool
	clock     *Clock
	newID     func() string
	listeners []Listener
	seq       uint64
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithClock sets the time label source.
func WithClock(c *Clock) StoreOption {
	return func(s *Store) { s.clock = c }
}

// WithIDGenerator replaces uuid-based identifiers.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) { s.newID = fn }
}

// NewStore returns an empty, hidden store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		messages: make([]chat.Message, 0, 16),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = NewClock("pt-BR")
	}
	return s
}

// OnChange registers a listener for log mutations.
func (s *Store) OnChange(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Append stamps d with a fresh id and time label and appends it. An agent
// message appended while hidden bumps the unread counter.
func (s *Store) Append(d chat.Draft) chat.Message {
	msg := s.build(d)

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	if msg.Origin == chat.OriginAgent && !s.visible {
		s.unread++
	}
	change := Change{Kind: ChangeAppended, Message: &msg, Snapshot: s.snapshotLocked(), Seq: s.nextSeqLocked()}
	listeners := s.listeners
	s.mu.Unlock()

	s.notify(listeners, change)
	return msg
}

// Load replaces the log. Messages are kept as given apart from the defaults
// storage would fill in (see chat.Message.Normalized), so a saved and
// reloaded log equals the loaded one. The unread counter is left alone.
func (s *Store) Load(messages []chat.Message) {
	normalized := make([]chat.Message, len(messages))
	for i, m := range messages {
		normalized[i] = m.Normalized()
	}

	s.mu.Lock()
	s.messages = normalized
	change := Change{Kind: ChangeLoaded, Snapshot: s.snapshotLocked(), Seq: s.nextSeqLocked()}
	listeners := s.listeners
	s.mu.Unlock()

	s.notify(listeners, change)
}

// Clear empties the log. The unread counter is left alone.
func (s *Store) Clear() {
	s.mu.Lock()
	s.messages = s.messages[:0:0]
	change := Change{Kind: ChangeCleared, Snapshot: []chat.Message{}, Seq: s.nextSeqLocked()}
	listeners := s.listeners
	s.mu.Unlock()

	s.notify(listeners, change)
}

// Show marks the widget visible, appends welcome if the log is empty and
// resets the unread counter. It reports whether the welcome was appended.
func (s *Store) Show(welcome chat.Draft) bool {
	s.mu.Lock()
	s.visible = true
	s.unread = 0
	if len(s.messages) > 0 {
		s.mu.Unlock()
		return false
	}
	msg := s.build(welcome)
	s.messages = append(s.messages, msg)
	change := Change{Kind: ChangeAppended, Message: &msg, Snapshot: s.snapshotLocked(), Seq: s.nextSeqLocked()}
	listeners := s.listeners
	s.mu.Unlock()

	s.notify(listeners, change)
	return true
}

// Hide marks the widget hidden.
func (s *Store) Hide() {
	s.mu.Lock()
	s.visible = false
	s.mu.Unlock()
}

// Visible reports the visibility flag.
func (s *Store) Visible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible
}

// Unread returns the badge counter.
func (s *Store) Unread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// SetUnread overrides the badge counter; negative values clamp to zero.
func (s *Store) SetUnread(n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	s.unread = n
	s.mu.Unlock()
}

// Messages returns a copy of the log.
func (s *Store) Messages() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Len returns the number of messages in the log.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Find returns the message with the given id.
func (s *Store) Find(id string) (chat.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return chat.Message{}, false
}

// Clock exposes the label clock so locale changes reach new messages.
func (s *Store) Clock() *Clock {
	return s.clock
}

func (s *Store) build(d chat.Draft) chat.Message {
	kind := d.Kind
	if kind == "" {
		kind = chat.KindText
	}
	msg := chat.Message{
		ID:      s.newID(),
		Text:    d.Text,
		Time:    s.clock.Label(),
		Origin:  d.Origin,
		Kind:    kind,
		Actions: append([]chat.Action(nil), d.Actions...),
	}
	if kind == chat.KindImage {
		msg.Text = ""
		msg.ImagePayload = d.ImagePayload
	}
	if len(msg.Actions) == 0 {
		msg.Actions = nil
	}
	return msg
}

func (s *Store) snapshotLocked() []chat.Message {
	copied := make([]chat.Message, len(s.messages))
	copy(copied, s.messages)
	return copied
}

func (s *Store) nextSeqLocked() uint64 {
	s.seq++
	return s.seq
}

func (s *Store) notify(listeners []Listener, change Change) {
	for _, l := range listeners {
		l(change)
	}
}
