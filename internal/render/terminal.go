// Package render paints widget state onto a terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/zhouzirui/chat-widget/internal/model/chat"
	widgetModel "github.com/zhouzirui/chat-widget/internal/model/widget"
)

const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorDim   = "\033[2m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
	colorGray  = "\033[90m"
)

// Terminal renders messages as markdown with glamour. Colors are dropped
// when the output is not a terminal.
type Terminal struct {
	out   io.Writer
	tty   bool
	width int

	mu    sync.Mutex
	theme widgetModel.Theme
	md    *glamour.TermRenderer
}

// NewTerminal creates a renderer for out using the given theme.
func NewTerminal(out io.Writer, theme widgetModel.Theme) (*Terminal, error) {
	t := &Terminal{out: out, width: 80}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.tty = true
		t.width = TerminalWidth(int(f.Fd()))
	}
	if err := t.SetTheme(theme); err != nil {
		return nil, err
	}
	return t, nil
}

// TerminalWidth returns the column count of fd, or 80 when unknown.
func TerminalWidth(fd int) int {
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// SetTheme switches between the light and dark glamour styles.
func (t *Terminal) SetTheme(theme widgetModel.Theme) error {
	style := "notty"
	if t.tty {
		style = "light"
		if theme == widgetModel.ThemeDark {
			style = "dark"
		}
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(max(20, min(t.width, 100)-10)),
	)
	if err != nil {
		return fmt.Errorf("create markdown renderer: %w", err)
	}

	t.mu.Lock()
	t.theme, t.md = theme, md
	t.mu.Unlock()
	return nil
}

func (t *Terminal) color(code, s string) string {
	if !t.tty {
		return s
	}
	return code + s + colorReset
}

// Header describes the panel chrome: title, agent status and placement.
func (t *Terminal) Header(p widgetModel.Presentation) string {
	state := "fechado"
	if p.Open {
		state = "aberto"
	}
	var b strings.Builder
	b.WriteString(t.color(colorBold+colorCyan, p.ChatTitle))
	b.WriteString(t.color(colorGray, fmt.Sprintf(" · %s · %s · %s · %dx%d · %s",
		p.AgentStatus, state, p.Position, p.Dimensions.Width, p.Dimensions.Height, p.Locale)))
	if p.Badge > 0 {
		b.WriteString(t.color(colorGreen, fmt.Sprintf(" · %d nova(s)", p.Badge)))
	}
	if len(p.PredefinedQuestions) > 0 {
		b.WriteString("\n")
		b.WriteString(t.color(colorDim, "Perguntas: "+strings.Join(p.PredefinedQuestions, " | ")))
	}
	return b.String()
}

// Message renders one log entry with its action buttons.
func (t *Terminal) Message(m chat.Message, agentName string, layout widgetModel.ButtonLayout) string {
	who := "Você"
	if m.Origin == chat.OriginAgent {
		who = agentName
	}

	var b strings.Builder
	b.WriteString(t.color(colorGray, fmt.Sprintf("┌─ %s · %s", who, m.Time)))
	b.WriteString("\n")

	body := m.Text
	if m.Kind == chat.KindImage {
		body = describeImage(m.ImagePayload)
	}
	b.WriteString(t.markdown(body))

	if len(m.Actions) > 0 {
		sep := "  "
		if layout == widgetModel.LayoutVertical {
			sep = "\n"
		}
		buttons := make([]string, len(m.Actions))
		for i, a := range m.Actions {
			buttons[i] = t.color(colorGreen, fmt.Sprintf("[%d] %s", i+1, a.Label))
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(buttons, sep))
	}
	return b.String()
}

// Print writes s followed by a newline.
func (t *Terminal) Print(s string) {
	fmt.Fprintln(t.out, s)
}

func (t *Terminal) markdown(s string) string {
	t.mu.Lock()
	md := t.md
	t.mu.Unlock()

	out, err := md.Render(s)
	if err != nil {
		return s
	}
	return strings.Trim(out, "\n")
}

func describeImage(dataURL string) string {
	header, payload, _ := strings.Cut(dataURL, ",")
	mime := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	if mime == "" {
		mime = "desconhecida"
	}
	size := len(payload) * 3 / 4
	return fmt.Sprintf("*[imagem %s, %d bytes]*", mime, size)
}
