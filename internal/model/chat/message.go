package chat

import (
	"encoding/json"
	"errors"
)

// Origin tells who produced a message.
type Origin string

const (
	OriginUser  Origin = "user"
	OriginAgent Origin = "agent"
)

// Kind is the content type of a message.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Action is a button attached to an agent message. Clicking it resubmits
// Action as if the user had typed it.
type Action struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// UnmarshalJSON also accepts the legacy {text, action} button shape.
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw struct {
		Label  string `json:"label"`
		Text   string `json:"text"`
		Action string `json:"action"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.Label = raw.Label
	if a.Label == "" {
		a.Label = raw.Text
	}
	a.Action = raw.Action
	return nil
}

// Message is one conversational turn. Messages are immutable once appended.
type Message struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Time         string   `json:"time"`
	Origin       Origin   `json:"origin"`
	Kind         Kind     `json:"kind"`
	ImagePayload string   `json:"imagePayload,omitempty"`
	Actions      []Action `json:"actions,omitempty"`
}

// UnmarshalJSON fills defaults for records written by older widget builds:
// missing kind/origin, actions stored under "buttons", and the Portuguese
// field names (texto, hora, origem, tipo, dataUrl).
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var raw struct {
		plain
		Buttons []Action `json:"buttons"`
		Texto   string   `json:"texto"`
		Hora    string   `json:"hora"`
		Origem  string   `json:"origem"`
		Tipo    string   `json:"tipo"`
		DataURL *string  `json:"dataUrl"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Message(raw.plain)
	if len(m.Actions) == 0 && len(raw.Buttons) > 0 {
		m.Actions = raw.Buttons
	}
	if m.Text == "" {
		m.Text = raw.Texto
	}
	if m.Time == "" {
		m.Time = raw.Hora
	}
	if m.Origin == "" {
		m.Origin = legacyOrigins[raw.Origem]
	}
	if m.Kind == "" {
		m.Kind = legacyKinds[raw.Tipo]
	}
	if m.ImagePayload == "" && raw.DataURL != nil {
		m.ImagePayload = *raw.DataURL
	}
	*m = m.Normalized()
	return nil
}

var (
	legacyOrigins = map[string]Origin{"usuario": OriginUser, "agente": OriginAgent}
	legacyKinds   = map[string]Kind{"texto": KindText, "imagem": KindImage}
)

// Normalized returns m in the form it has after a storage round trip: an
// unset kind is text, an unset origin is agent and empty actions are nil.
func (m Message) Normalized() Message {
	if m.Kind == "" {
		m.Kind = KindText
	}
	if m.Origin == "" {
		m.Origin = OriginAgent
	}
	if len(m.Actions) == 0 {
		m.Actions = nil
	}
	return m
}

// Draft carries the caller-supplied part of a message; id and time label
// are assigned by the store on append.
type Draft struct {
	Text         string
	Origin       Origin
	Kind         Kind
	ImagePayload string
	Actions      []Action
}

// TextDraft builds a plain text draft.
func TextDraft(origin Origin, text string) Draft {
	return Draft{Text: text, Origin: origin, Kind: KindText}
}

// ImageDraft builds an image draft; its text is always empty.
func ImageDraft(origin Origin, dataURL string) Draft {
	return Draft{Origin: origin, Kind: KindImage, ImagePayload: dataURL}
}

// Reply is the outcome of resolving a user utterance.
type Reply struct {
	Text    string
	Actions []Action
}

var errEmptyResponse = errors.New("custom response must be a string or an object with text")

// CustomResponse is a canned reply: either a plain string or a structured
// {text, actions} object. Structured is preserved so the mapping
// round-trips through storage in the same shape it was configured with.
type CustomResponse struct {
	Text       string
	Actions    []Action
	Structured bool
}

// PlainResponse builds a string-valued response.
func PlainResponse(text string) CustomResponse {
	return CustomResponse{Text: text}
}

// StructuredResponse builds an object-valued response with optional actions.
func StructuredResponse(text string, actions ...Action) CustomResponse {
	return CustomResponse{Text: text, Actions: actions, Structured: true}
}

// Reply converts the response into a resolver outcome.
func (r CustomResponse) Reply() Reply {
	if !r.Structured {
		return Reply{Text: r.Text}
	}
	return Reply{Text: r.Text, Actions: append([]Action(nil), r.Actions...)}
}

func (r CustomResponse) MarshalJSON() ([]byte, error) {
	if !r.Structured {
		return json.Marshal(r.Text)
	}
	return json.Marshal(struct {
		Text    string   `json:"text"`
		Actions []Action `json:"actions,omitempty"`
	}{r.Text, r.Actions})
}

func (r *CustomResponse) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*r = PlainResponse(text)
		return nil
	}

	var obj struct {
		Text    string   `json:"text"`
		Actions []Action `json:"actions"`
		Buttons []Action `json:"buttons"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errEmptyResponse
	}
	actions := obj.Actions
	if len(actions) == 0 {
		actions = obj.Buttons
	}
	*r = StructuredResponse(obj.Text, actions...)
	return nil
}

// UnmarshalYAML lets widget option files use the same string-or-object shape.
func (r *CustomResponse) UnmarshalYAML(unmarshal func(any) error) error {
	var text string
	if err := unmarshal(&text); err == nil {
		*r = PlainResponse(text)
		return nil
	}

	var obj struct {
		Text    string `yaml:"text"`
		Actions []struct {
			Label  string `yaml:"label"`
			Action string `yaml:"action"`
		} `yaml:"actions"`
	}
	if err := unmarshal(&obj); err != nil {
		return errEmptyResponse
	}
	actions := make([]Action, 0, len(obj.Actions))
	for _, a := range obj.Actions {
		actions = append(actions, Action{Label: a.Label, Action: a.Action})
	}
	*r = StructuredResponse(obj.Text, actions...)
	return nil
}

// ResponseMapping maps a normalized trigger to its canned response.
type ResponseMapping map[string]CustomResponse
