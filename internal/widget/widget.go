// Package widget is the host-facing façade of the chat widget. A Widget owns
// the message store, the response resolver, persistence and the optional
// realtime transport, and exposes the control surface hosts drive it with.
package widget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-widget/internal/model/chat"
	widgetModel "github.com/zhouzirui/chat-widget/internal/model/widget"
	chatservice "github.com/zhouzirui/chat-widget/internal/service/chat"
	"github.com/zhouzirui/chat-widget/internal/storage"
	"github.com/zhouzirui/chat-widget/internal/transport"
)

type (
	Options      = widgetModel.Options
	Presentation = widgetModel.Presentation
)

var ErrNotInitialized = errors.New("widget not initialized")

// Responder answers utterances the canned responses do not cover.
type Responder interface {
	Respond(ctx context.Context, history []chat.Message, text string) (string, error)
}

// Transport is the realtime channel to the relay.
type Transport interface {
	Connect(ctx context.Context, endpoint string) error
	PublishText(text string)
	PublishImage(dataURL string)
	OnText(fn func(string))
	OnImage(fn func(string))
	Disconnect()
}

// MessageListener is notified of every message appended to the log.
type MessageListener func(chat.Message)

// Dependencies are the collaborators a Widget is built from. Every field is
// optional.
type Dependencies struct {
	// KV backs persistence; an in-memory store is used when nil.
	KV storage.KV
	// Transport overrides the websocket client created for Options.Endpoint.
	Transport Transport
	// Responder is consulted on resolver misses before the fallback text.
	Responder Responder
	// Now and IDGenerator replace the wall clock and uuid ids.
	Now         func() time.Time
	IDGenerator func() string
}

// Widget is the façade. The zero value is not usable; call New.
type Widget struct {
	deps Dependencies

	mu          sync.Mutex
	initialized bool
	opts        Options
	pres        Presentation
	store       *chatservice.Store
	resolver    *chatservice.Resolver
	writer      *storage.WriteBehind
	transport   Transport
	commands    map[string]CommandFunc
	listeners   []MessageListener
	notifier    *notifier

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an unmounted widget.
func New(deps Dependencies) *Widget {
	return &Widget{deps: deps, commands: make(map[string]CommandFunc)}
}

// Init mounts the widget: restores the persisted log and responses, merges
// the configured responses and connects the transport when an endpoint is
// set. Calling Init on a mounted widget is a no-op.
func (w *Widget) Init(ctx context.Context, opts Options) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.initialized {
		return nil
	}

	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return err
	}

	clock := chatservice.NewClock(opts.Locale)
	if err := clock.SetLocale(opts.Locale); err != nil {
		return err
	}
	if w.deps.Now != nil {
		clock = clock.WithNow(w.deps.Now)
	}
	storeOpts := []chatservice.StoreOption{chatservice.WithClock(clock)}
	if w.deps.IDGenerator != nil {
		storeOpts = append(storeOpts, chatservice.WithIDGenerator(w.deps.IDGenerator))
	}

	kv := w.deps.KV
	if kv == nil {
		kv = storage.NewMemoryKV()
	}
	persist := storage.NewPersistence(kv, opts.StorageScope)

	store := chatservice.NewStore(storeOpts...)
	store.Load(persist.LoadLog())

	// Persisted entries win over configured ones so runtime edits survive remounts.
	resolver := chatservice.NewResolver(opts.CustomResponses)
	resolver.Merge(persist.LoadResponses())

	writer := storage.NewWriteBehind(persist)
	writer.QueueResponses(resolver.Mapping())
	store.OnChange(func(c chatservice.Change) {
		writer.QueueLog(c.Seq, c.Snapshot)
	})
	notify := newNotifier(w.messageListeners)
	store.OnChange(notify.observe)

	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.opts = opts
	w.store = store
	w.resolver = resolver
	w.writer = writer
	w.notifier = notify
	w.pres = Presentation{
		Theme:               opts.Theme,
		Position:            opts.Position,
		Dimensions:          opts.Dimensions,
		Locale:              clock.Locale(),
		AgentStatus:         widgetModel.AgentOnline,
		ButtonLayout:        widgetModel.LayoutHorizontal,
		ChatTitle:           opts.ChatTitle,
		PredefinedQuestions: append([]string(nil), opts.PredefinedQuestions...),
	}

	w.transport = w.deps.Transport
	if w.transport == nil && opts.Endpoint != "" {
		w.transport = transport.NewClient(transport.Options{SuppressEcho: opts.SuppressEcho})
	}
	if w.transport != nil && opts.Endpoint != "" {
		w.transport.OnText(w.receiveText)
		w.transport.OnImage(w.receiveImage)
		if err := w.transport.Connect(w.ctx, opts.Endpoint); err != nil {
			log.Warn().Err(err).Str("endpoint", opts.Endpoint).Msg("[widget] realtime channel unavailable, running offline")
			w.transport = nil
		}
	} else {
		w.transport = nil
	}

	w.initialized = true
	log.Info().
		Str("scope", opts.StorageScope).
		Int("restored", store.Len()).
		Int("responses", len(resolver.Mapping())).
		Bool("realtime", w.transport != nil).
		Msg("[widget] mounted")
	return nil
}

// Destroy disconnects the transport, waits for pending replies and drains
// persistence. The widget can be initialized again afterwards. It may be
// called from an OnNewMessage listener.
func (w *Widget) Destroy() {
	w.mu.Lock()
	if !w.initialized {
		w.mu.Unlock()
		return
	}
	w.initialized = false
	cancel, tr, writer, notify := w.cancel, w.transport, w.writer, w.notifier
	w.store, w.resolver, w.writer, w.transport, w.notifier = nil, nil, nil, nil, nil
	w.mu.Unlock()

	cancel()
	if tr != nil {
		tr.Disconnect()
	}
	w.wg.Wait()
	writer.Close()
	notify.stop()
	log.Info().Msg("[widget] destroyed")
}

// Online reports whether the realtime channel currently holds a connection.
func (w *Widget) Online() bool {
	w.mu.Lock()
	tr := w.transport
	w.mu.Unlock()
	if c, ok := tr.(interface{ Connected() bool }); ok {
		return c.Connected()
	}
	return false
}

// Flush blocks until every queued persistence write has been attempted.
func (w *Widget) Flush() {
	w.mu.Lock()
	writer := w.writer
	w.mu.Unlock()
	if writer != nil {
		writer.Flush()
	}
}

// mounted returns the store and resolver, or ok=false before Init.
func (w *Widget) mounted() (store *chatservice.Store, resolver *chatservice.Resolver, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store, w.resolver, w.initialized
}

// Open shows the chat panel. Becoming visible resets the badge and, on an
// empty log, appends the welcome message.
func (w *Widget) Open() {
	store, resolver, ok := w.mounted()
	if !ok || store.Visible() {
		return
	}
	w.mu.Lock()
	welcome, trigger := w.opts.WelcomeMessage, w.opts.GreetingTrigger
	w.mu.Unlock()

	draft := chat.TextDraft(chat.OriginAgent, welcome)
	if greeting, found := resolver.Lookup(chatservice.Normalize(trigger)); found {
		draft.Actions = greeting.Reply().Actions
	}
	store.Show(draft)
}

// Close hides the chat panel.
func (w *Widget) Close() {
	if store, _, ok := w.mounted(); ok {
		store.Hide()
	}
}

// Show is an alias of Open.
func (w *Widget) Show() { w.Open() }

// Hide is an alias of Close.
func (w *Widget) Hide() { w.Close() }

// IsOpen reports whether the panel is visible.
func (w *Widget) IsOpen() bool {
	store, _, ok := w.mounted()
	return ok && store.Visible()
}

// SetBadge overrides the unread counter.
func (w *Widget) SetBadge(n int) {
	if store, _, ok := w.mounted(); ok {
		store.SetUnread(n)
	}
}

// Badge returns the unread counter.
func (w *Widget) Badge() int {
	store, _, ok := w.mounted()
	if !ok {
		return 0
	}
	return store.Unread()
}

// ToggleTheme flips between light and dark and returns the new theme. Before
// Init it changes nothing and returns "".
func (w *Widget) ToggleTheme() widgetModel.Theme {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.initialized {
		return ""
	}
	if w.pres.Theme == widgetModel.ThemeDark {
		w.pres.Theme = widgetModel.ThemeLight
	} else {
		w.pres.Theme = widgetModel.ThemeDark
	}
	return w.pres.Theme
}

// SetTheme selects a theme by name.
func (w *Widget) SetTheme(theme string) error {
	t, err := widgetModel.ParseTheme(theme)
	if err != nil {
		return err
	}
	return w.updatePresentation(func(p *Presentation) { p.Theme = t })
}

// SetPosition moves the widget to another corner.
func (w *Widget) SetPosition(position string) error {
	p, err := widgetModel.ParsePosition(position)
	if err != nil {
		return err
	}
	return w.updatePresentation(func(pres *Presentation) { pres.Position = p })
}

// Resize changes the panel dimensions.
func (w *Widget) Resize(d widgetModel.Dimensions) error {
	if err := widgetModel.ValidateDimensions(d); err != nil {
		return err
	}
	return w.updatePresentation(func(p *Presentation) { p.Dimensions = d })
}

// SetAgentStatus shows the agent as online or offline.
func (w *Widget) SetAgentStatus(status string) error {
	st, err := widgetModel.ParseAgentStatus(status)
	if err != nil {
		return err
	}
	return w.updatePresentation(func(p *Presentation) { p.AgentStatus = st })
}

// SetLocale switches the locale used for new time labels. Existing labels
// are never re-derived.
func (w *Widget) SetLocale(locale string) error {
	store, _, ok := w.mounted()
	if !ok {
		return ErrNotInitialized
	}
	clock := store.Clock()
	if err := clock.SetLocale(locale); err != nil {
		return err
	}
	return w.updatePresentation(func(p *Presentation) { p.Locale = clock.Locale() })
}

// ToggleButtonLayout flips action buttons between rows and columns. Before
// Init it changes nothing and returns "".
func (w *Widget) ToggleButtonLayout() widgetModel.ButtonLayout {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.initialized {
		return ""
	}
	if w.pres.ButtonLayout == widgetModel.LayoutVertical {
		w.pres.ButtonLayout = widgetModel.LayoutHorizontal
	} else {
		w.pres.ButtonLayout = widgetModel.LayoutVertical
	}
	return w.pres.ButtonLayout
}

// SetPredefinedQuestions replaces the quick-question buttons. It is a no-op
// before Init; pass initial questions through Options instead.
func (w *Widget) SetPredefinedQuestions(questions []string) {
	_ = w.updatePresentation(func(p *Presentation) {
		p.PredefinedQuestions = append([]string(nil), questions...)
	})
}

// updatePresentation applies fn to the mounted presentation state.
func (w *Widget) updatePresentation(fn func(*Presentation)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.initialized {
		return ErrNotInitialized
	}
	fn(&w.pres)
	return nil
}

// PredefinedQuestions returns the current quick questions.
func (w *Widget) PredefinedQuestions() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.pres.PredefinedQuestions...)
}

// LoadHistory replaces the log verbatim.
func (w *Widget) LoadHistory(messages []chat.Message) {
	if store, _, ok := w.mounted(); ok {
		store.Load(messages)
	}
}

// ClearHistory empties the log.
func (w *Widget) ClearHistory() {
	if store, _, ok := w.mounted(); ok {
		store.Clear()
	}
}

// Messages returns a copy of the log.
func (w *Widget) Messages() []chat.Message {
	store, _, ok := w.mounted()
	if !ok {
		return nil
	}
	return store.Messages()
}

// SetCustomResponse adds or replaces a canned reply and persists the mapping.
func (w *Widget) SetCustomResponse(trigger string, resp chat.CustomResponse) error {
	if chatservice.Normalize(trigger) == "" {
		return fmt.Errorf("custom response trigger is empty")
	}
	w.mu.Lock()
	resolver, writer, ok := w.resolver, w.writer, w.initialized
	w.mu.Unlock()
	if !ok {
		return ErrNotInitialized
	}
	resolver.Set(trigger, resp)
	writer.QueueResponses(resolver.Mapping())
	return nil
}

// CustomResponses returns a copy of the active mapping.
func (w *Widget) CustomResponses() chat.ResponseMapping {
	_, resolver, ok := w.mounted()
	if !ok {
		return chat.ResponseMapping{}
	}
	return resolver.Mapping()
}

// OnNewMessage registers a callback for every appended message.
func (w *Widget) OnNewMessage(fn MessageListener) {
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

// State returns the presentation snapshot a renderer paints from.
func (w *Widget) State() Presentation {
	w.mu.Lock()
	pres := w.pres
	store := w.store
	w.mu.Unlock()

	pres.PredefinedQuestions = append([]string(nil), pres.PredefinedQuestions...)
	if store != nil {
		pres.Open = store.Visible()
		pres.Badge = store.Unread()
	}
	return pres
}

func (w *Widget) messageListeners() []MessageListener {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]MessageListener(nil), w.listeners...)
}
