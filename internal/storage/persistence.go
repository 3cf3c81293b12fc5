package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-widget/internal/model/chat"
)

// Blob names, matching the keys the browser widget used in localStorage.
const (
	LogKey       = "chat-widget-messages"
	ResponsesKey = "customResponses"
)

// Persistence serializes the conversation log and the custom response
// mapping as two independent JSON blobs, namespaced by scope.
type Persistence struct {
	kv    KV
	scope string
}

// NewPersistence binds the adapter to kv under scope.
func NewPersistence(kv KV, scope string) *Persistence {
	return &Persistence{kv: kv, scope: scope}
}

func (p *Persistence) key(name string) string {
	if p.scope == "" {
		return name
	}
	return p.scope + "/" + name
}

// SaveLog writes the log snapshot.
func (p *Persistence) SaveLog(messages []chat.Message) error {
	if messages == nil {
		messages = []chat.Message{}
	}
	return p.save(LogKey, messages)
}

// LoadLog reads the log snapshot. Absent or corrupt data yields an empty log.
func (p *Persistence) LoadLog() []chat.Message {
	var messages []chat.Message
	if !p.load(LogKey, &messages) || messages == nil {
		return []chat.Message{}
	}
	return messages
}

// SaveResponses writes the custom response mapping.
func (p *Persistence) SaveResponses(mapping chat.ResponseMapping) error {
	if mapping == nil {
		mapping = chat.ResponseMapping{}
	}
	return p.save(ResponsesKey, mapping)
}

// LoadResponses reads the mapping. Absent or corrupt data yields an empty mapping.
func (p *Persistence) LoadResponses() chat.ResponseMapping {
	var mapping chat.ResponseMapping
	if !p.load(ResponsesKey, &mapping) || mapping == nil {
		return chat.ResponseMapping{}
	}
	return mapping
}

func (p *Persistence) save(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := p.kv.Set(p.key(name), data); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

func (p *Persistence) load(name string, into any) bool {
	data, err := p.kv.Get(p.key(name))
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", p.key(name)).Msg("[storage] read failed, starting empty")
		return false
	}
	if err := json.Unmarshal(data, into); err != nil {
		log.Warn().Err(err).Str("key", p.key(name)).Msg("[storage] corrupt blob, starting empty")
		return false
	}
	return true
}
