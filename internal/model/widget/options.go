package widget

import (
	"errors"
	"fmt"

	"github.com/zhouzirui/chat-widget/internal/model/chat"
)

// Position anchors the widget to a viewport corner.
type Position string

const (
	BottomRight Position = "bottom-right"
	BottomLeft  Position = "bottom-left"
	TopRight    Position = "top-right"
	TopLeft     Position = "top-left"
)

// Theme selects the light or dark palette.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// AgentStatus is shown next to the chat title.
type AgentStatus string

const (
	AgentOnline  AgentStatus = "online"
	AgentOffline AgentStatus = "offline"
)

// ButtonLayout controls how action buttons are stacked under a message.
type ButtonLayout string

const (
	LayoutHorizontal ButtonLayout = "horizontal"
	LayoutVertical   ButtonLayout = "vertical"
)

var (
	ErrInvalidPosition   = errors.New("invalid widget position")
	ErrInvalidTheme      = errors.New("invalid widget theme")
	ErrInvalidStatus     = errors.New("invalid agent status")
	ErrInvalidDimensions = errors.New("width and height must be positive")
)

// Dimensions of the open chat panel in pixels.
type Dimensions struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Options is the host-supplied init configuration.
type Options struct {
	Theme               Theme                `json:"theme" yaml:"theme"`
	WelcomeMessage      string               `json:"welcomeMessage" yaml:"welcomeMessage"`
	ChatTitle           string               `json:"chatTitle" yaml:"chatTitle"`
	BotAvatarURL        string               `json:"botAvatarUrl,omitempty" yaml:"botAvatarUrl"`
	UserAvatarURL       string               `json:"userAvatarUrl,omitempty" yaml:"userAvatarUrl"`
	PredefinedQuestions []string             `json:"predefinedQuestions" yaml:"predefinedQuestions"`
	CustomResponses     chat.ResponseMapping `json:"customResponses" yaml:"customResponses"`
	Position            Position             `json:"position" yaml:"position"`
	Endpoint            string               `json:"endpoint,omitempty" yaml:"endpoint"`
	Locale              string               `json:"locale" yaml:"locale"`
	Dimensions          Dimensions           `json:"dimensions" yaml:"dimensions"`
	// StorageScope namespaces persisted blobs, standing in for the browser origin.
	StorageScope string `json:"storageScope" yaml:"storageScope"`
	// SuppressEcho drops the relay's copy of messages this widget published.
	SuppressEcho bool `json:"suppressEcho" yaml:"suppressEcho"`
	// GreetingTrigger names the custom response whose actions decorate the welcome message.
	GreetingTrigger string `json:"greetingTrigger" yaml:"greetingTrigger"`
}

const (
	DefaultWelcomeMessage  = "Olá! Como posso ajudar você hoje?"
	DefaultChatTitle       = "Atendimento Online"
	DefaultLocale          = "pt-BR"
	DefaultStorageScope    = "default"
	DefaultGreetingTrigger = "olá"
)

// Defaults returns the documented option defaults.
func Defaults() Options {
	return Options{
		Theme:           ThemeLight,
		WelcomeMessage:  DefaultWelcomeMessage,
		ChatTitle:       DefaultChatTitle,
		Position:        BottomRight,
		Locale:          DefaultLocale,
		Dimensions:      Dimensions{Width: 360, Height: 480},
		StorageScope:    DefaultStorageScope,
		GreetingTrigger: DefaultGreetingTrigger,
	}
}

// WithDefaults fills every unset option from Defaults.
func (o Options) WithDefaults() Options {
	d := Defaults()
	if o.Theme == "" {
		o.Theme = d.Theme
	}
	if o.WelcomeMessage == "" {
		o.WelcomeMessage = d.WelcomeMessage
	}
	if o.ChatTitle == "" {
		o.ChatTitle = d.ChatTitle
	}
	if o.Position == "" {
		o.Position = d.Position
	}
	if o.Locale == "" {
		o.Locale = d.Locale
	}
	if o.Dimensions.Width <= 0 || o.Dimensions.Height <= 0 {
		o.Dimensions = d.Dimensions
	}
	if o.StorageScope == "" {
		o.StorageScope = d.StorageScope
	}
	if o.GreetingTrigger == "" {
		o.GreetingTrigger = d.GreetingTrigger
	}
	return o
}

// Validate rejects enum values the widget cannot render.
func (o Options) Validate() error {
	if _, err := ParsePosition(string(o.Position)); err != nil {
		return err
	}
	if _, err := ParseTheme(string(o.Theme)); err != nil {
		return err
	}
	return ValidateDimensions(o.Dimensions)
}

// ParsePosition validates a position name.
func ParsePosition(s string) (Position, error) {
	switch p := Position(s); p {
	case BottomRight, BottomLeft, TopRight, TopLeft:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPosition, s)
	}
}

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(s); t {
	case ThemeLight, ThemeDark:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTheme, s)
	}
}

// ParseAgentStatus validates an agent status.
func ParseAgentStatus(s string) (AgentStatus, error) {
	switch st := AgentStatus(s); st {
	case AgentOnline, AgentOffline:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// ValidateDimensions requires a positive width and height.
func ValidateDimensions(d Dimensions) error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, d.Width, d.Height)
	}
	return nil
}

// Presentation is the ephemeral view state a renderer paints from.
type Presentation struct {
	Open                bool         `json:"open"`
	Theme               Theme        `json:"theme"`
	Position            Position     `json:"position"`
	Dimensions          Dimensions   `json:"dimensions"`
	Locale              string       `json:"locale"`
	AgentStatus         AgentStatus  `json:"agentStatus"`
	ButtonLayout        ButtonLayout `json:"buttonLayout"`
	Badge               int          `json:"badge"`
	ChatTitle           string       `json:"chatTitle"`
	PredefinedQuestions []string     `json:"predefinedQuestions"`
}
