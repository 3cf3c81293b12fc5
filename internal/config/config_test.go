package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chat-widget/internal/model/chat"
	"github.com/zhouzirui/chat-widget/internal/model/widget"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "RELAY_RATE_RPS", "LOG_LEVEL", "ARK_MODEL", "ARK_API_KEY", "AI_HISTORY_LIMIT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(8<<20), cfg.Relay.MaxFrameBytes)
	assert.Equal(t, 20*time.Second, cfg.Relay.PingInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10, cfg.AI.HistoryLimit)
	assert.False(t, cfg.AI.Enabled())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("RELAY_RATE_RPS", "2.5")
	t.Setenv("RELAY_RATE_BURST", "4")
	t.Setenv("RELAY_STATIC_DIR", "./web")
	t.Setenv("ARK_API_KEY", "key")
	t.Setenv("ARK_MODEL", "doubao")
	t.Setenv("ARK_TEMPERATURE", "0.3")
	t.Setenv("AI_HISTORY_LIMIT", "0")
	t.Setenv("WIDGET_ENDPOINT", "ws://localhost:9000/ws")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 2.5, cfg.Relay.RateRPS)
	assert.Equal(t, 4, cfg.Relay.RateBurst)
	assert.Equal(t, "./web", cfg.Relay.StaticDir)
	assert.True(t, cfg.AI.Enabled())
	require.NotNil(t, cfg.AI.Temperature)
	assert.InDelta(t, 0.3, *cfg.AI.Temperature, 1e-9)
	assert.Equal(t, 1, cfg.AI.HistoryLimit)
	assert.Equal(t, "ws://localhost:9000/ws", cfg.Widget.Endpoint)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "80 80")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadWidgetOptionsEmptyPath(t *testing.T) {
	opts, err := LoadWidgetOptions("")
	require.NoError(t, err)
	assert.Equal(t, widget.Defaults(), opts)
}

func TestLoadWidgetOptionsFromYAML(t *testing.T) {
	path := writeFile(t, `
theme: dark
chatTitle: Suporte
position: top-left
predefinedQuestions:
  - Horário
  - Preço
customResponses:
  preço: "A partir de R$ 10"
  horário:
    text: "Atendemos das 9h às 18h"
    actions:
      - label: Falar com atendente
        action: atendente
suppressEcho: true
`)

	opts, err := LoadWidgetOptions(path)
	require.NoError(t, err)

	assert.Equal(t, widget.ThemeDark, opts.Theme)
	assert.Equal(t, "Suporte", opts.ChatTitle)
	assert.Equal(t, widget.TopLeft, opts.Position)
	assert.Equal(t, []string{"Horário", "Preço"}, opts.PredefinedQuestions)
	assert.True(t, opts.SuppressEcho)
	// unset fields fall back to defaults
	assert.Equal(t, widget.DefaultWelcomeMessage, opts.WelcomeMessage)
	assert.Equal(t, widget.Dimensions{Width: 360, Height: 480}, opts.Dimensions)

	assert.Equal(t, chat.PlainResponse("A partir de R$ 10"), opts.CustomResponses["preço"])
	assert.Equal(t,
		chat.StructuredResponse("Atendemos das 9h às 18h", chat.Action{Label: "Falar com atendente", Action: "atendente"}),
		opts.CustomResponses["horário"])
}

func TestLoadWidgetOptionsErrors(t *testing.T) {
	_, err := LoadWidgetOptions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadWidgetOptions(writeFile(t, "theme: [unterminated"))
	assert.Error(t, err)

	_, err = LoadWidgetOptions(writeFile(t, "position: middle"))
	assert.ErrorIs(t, err, widget.ErrInvalidPosition)
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "widget.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
