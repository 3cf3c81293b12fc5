package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chat-widget/internal/model/chat"
	widgetModel "github.com/zhouzirui/chat-widget/internal/model/widget"
)

func TestMessageRendersTextAndActions(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewTerminal(&buf, widgetModel.ThemeDark)
	require.NoError(t, err)

	msg := chat.Message{
		Text:   "Atendemos das **9h às 18h**",
		Time:   "14:07",
		Origin: chat.OriginAgent,
		Kind:   chat.KindText,
		Actions: []chat.Action{
			{Label: "Falar com atendente", Action: "atendente"},
			{Label: "Preços", Action: "preço"},
		},
	}
	out := r.Message(msg, "Atendimento Online", widgetModel.LayoutHorizontal)
	assert.Contains(t, out, "Atendimento Online · 14:07")
	assert.Contains(t, out, "9h às 18h")
	assert.Contains(t, out, "[1] Falar com atendente  [2] Preços")

	vertical := r.Message(msg, "Atendimento Online", widgetModel.LayoutVertical)
	assert.Contains(t, vertical, "[1] Falar com atendente\n[2] Preços")

	r.Print(out)
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestMessageDescribesImages(t *testing.T) {
	r, err := NewTerminal(&bytes.Buffer{}, widgetModel.ThemeLight)
	require.NoError(t, err)

	out := r.Message(chat.Message{Origin: chat.OriginUser, Kind: chat.KindImage, Time: "09:00", ImagePayload: "data:image/png;base64,AAAAAAAA"}, "Bot", "")
	assert.Contains(t, out, "Você · 09:00")
	assert.Contains(t, out, "imagem image/png, 6 bytes")
}

func TestHeader(t *testing.T) {
	r, err := NewTerminal(&bytes.Buffer{}, widgetModel.ThemeLight)
	require.NoError(t, err)

	out := r.Header(widgetModel.Presentation{
		Open:                false,
		ChatTitle:           "Atendimento Online",
		AgentStatus:         widgetModel.AgentOnline,
		Position:            widgetModel.BottomRight,
		Dimensions:          widgetModel.Dimensions{Width: 360, Height: 480},
		Locale:              "pt-BR",
		Badge:               2,
		PredefinedQuestions: []string{"Horário", "Preço"},
	})
	assert.Contains(t, out, "Atendimento Online · online · fechado · bottom-right · 360x480 · pt-BR · 2 nova(s)")
	assert.Contains(t, out, "Perguntas: Horário | Preço")
}
