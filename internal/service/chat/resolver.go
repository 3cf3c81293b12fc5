package chat

import (
	"strings"
	"sync"

	"github.com/zhouzirui/chat-widget/internal/model/chat"
)

// FallbackReply is sent when no canned response matches.
const FallbackReply = "Desculpe, não entendi sua pergunta."

// Normalize trims and lowercases an utterance into a trigger key.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Resolver matches normalized utterances against the custom response mapping.
// Matching is exact on the normalized key.
type Resolver struct {
	mu      sync.RWMutex
	mapping chat.ResponseMapping
}

// NewResolver copies mapping, normalizing its keys.
func NewResolver(mapping chat.ResponseMapping) *Resolver {
	r := &Resolver{mapping: make(chat.ResponseMapping, len(mapping))}
	for k, v := range mapping {
		r.mapping[Normalize(k)] = v
	}
	return r
}

// Resolve returns the canned reply for raw, or false on a miss.
func (r *Resolver) Resolve(raw string) (chat.Reply, bool) {
	resp, ok := r.Lookup(Normalize(raw))
	if !ok {
		return chat.Reply{}, false
	}
	return resp.Reply(), true
}

// Lookup fetches a response by an already-normalized key.
func (r *Resolver) Lookup(key string) (chat.CustomResponse, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resp, ok := r.mapping[key]
	return resp, ok
}

// Set adds or overwrites a single trigger; the last write wins.
func (r *Resolver) Set(trigger string, resp chat.CustomResponse) {
	r.mu.Lock()
	r.mapping[Normalize(trigger)] = resp
	r.mu.Unlock()
}

// Merge applies every entry of mapping on top of the current one.
func (r *Resolver) Merge(mapping chat.ResponseMapping) {
	r.mu.Lock()
	for k, v := range mapping {
		r.mapping[Normalize(k)] = v
	}
	r.mu.Unlock()
}

// Replace swaps the whole mapping.
func (r *Resolver) Replace(mapping chat.ResponseMapping) {
	next := make(chat.ResponseMapping, len(mapping))
	for k, v := range mapping {
		next[Normalize(k)] = v
	}
	r.mu.Lock()
	r.mapping = next
	r.mu.Unlock()
}

// Mapping returns a copy of the current mapping.
func (r *Resolver) Mapping() chat.ResponseMapping {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(chat.ResponseMapping, len(r.mapping))
	for k, v := range r.mapping {
		out[k] = v
	}
	return out
}
