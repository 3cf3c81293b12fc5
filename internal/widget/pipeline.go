package widget

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-widget/internal/model/chat"
	chatservice "github.com/zhouzirui/chat-widget/internal/service/chat"
)

var (
	ErrUnknownMessage = errors.New("message not found")
	ErrNoSuchAction   = errors.New("message has no such action")
)

// CommandFunc handles a slash command. args are the whitespace separated
// words after the command name.
type CommandFunc func(ctx context.Context, args []string) (string, error)

// RegisterCommand binds /name to fn, replacing any earlier binding.
func (w *Widget) RegisterCommand(name string, fn CommandFunc) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	w.mu.Lock()
	w.commands[name] = fn
	w.mu.Unlock()
}

// SendMessage runs text through the pipeline as if the user had typed it.
// Slash commands go to the command executor; anything else is appended in
// normalized form, published and answered from the canned responses, the
// responder or the fallback text.
func (w *Widget) SendMessage(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	store, resolver, ok := w.mounted()
	if !ok {
		return
	}

	if strings.HasPrefix(trimmed, "/") {
		store.Append(chat.TextDraft(chat.OriginUser, trimmed))
		reply := w.executeCommand(trimmed[1:])
		store.Append(chat.TextDraft(chat.OriginAgent, reply))
		return
	}

	normalized := chatservice.Normalize(trimmed)
	store.Append(chat.TextDraft(chat.OriginUser, normalized))
	w.publishText(normalized)

	if reply, found := resolver.Resolve(normalized); found {
		store.Append(chat.Draft{Text: reply.Text, Origin: chat.OriginAgent, Kind: chat.KindText, Actions: reply.Actions})
		return
	}

	w.mu.Lock()
	responder, ctx, live := w.deps.Responder, w.ctx, w.initialized
	if responder != nil && live {
		// Add under the lock Destroy clears initialized with, so Wait sees it.
		w.wg.Add(1)
	}
	w.mu.Unlock()
	if !live {
		return
	}
	if responder == nil {
		store.Append(chat.TextDraft(chat.OriginAgent, chatservice.FallbackReply))
		return
	}

	go func() {
		defer w.wg.Done()
		answer, err := responder.Respond(ctx, store.Messages(), normalized)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warn().Err(err).Msg("[widget] responder failed, using fallback reply")
			answer = chatservice.FallbackReply
		}
		store.Append(chat.TextDraft(chat.OriginAgent, answer))
	}()
}

// ClickAction resubmits the action of the given button as a user message.
func (w *Widget) ClickAction(messageID string, index int) error {
	store, _, ok := w.mounted()
	if !ok {
		return ErrNotInitialized
	}
	msg, found := store.Find(messageID)
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownMessage, messageID)
	}
	if msg.Origin != chat.OriginAgent || index < 0 || index >= len(msg.Actions) {
		return fmt.Errorf("%w: %s[%d]", ErrNoSuchAction, messageID, index)
	}
	w.SendMessage(msg.Actions[index].Action)
	return nil
}

func (w *Widget) executeCommand(line string) string {
	fields := strings.Fields(line)
	name := ""
	var args []string
	if len(fields) > 0 {
		name, args = fields[0], fields[1:]
	}

	w.mu.Lock()
	fn, ok := w.commands[name]
	ctx := w.ctx
	w.mu.Unlock()
	if !ok {
		return fmt.Sprintf("Comando “/%s” não reconhecido.", name)
	}

	out, err := fn(ctx, args)
	if err != nil {
		log.Warn().Err(err).Str("command", name).Msg("[widget] command failed")
		return fmt.Sprintf("Erro ao executar “/%s”: %v", name, err)
	}
	return out
}

func (w *Widget) publishText(text string) {
	w.mu.Lock()
	tr := w.transport
	w.mu.Unlock()
	if tr != nil {
		tr.PublishText(text)
	}
}

func (w *Widget) publishImage(dataURL string) {
	w.mu.Lock()
	tr := w.transport
	w.mu.Unlock()
	if tr != nil {
		tr.PublishImage(dataURL)
	}
}

func (w *Widget) receiveText(text string) {
	if store, _, ok := w.mounted(); ok {
		store.Append(chat.TextDraft(chat.OriginAgent, text))
	}
}

func (w *Widget) receiveImage(dataURL string) {
	if store, _, ok := w.mounted(); ok {
		store.Append(chat.ImageDraft(chat.OriginAgent, dataURL))
	}
}
