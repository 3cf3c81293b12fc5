package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zhouzirui/chat-widget/internal/model/chat"
	widgetModel "github.com/zhouzirui/chat-widget/internal/model/widget"
	"github.com/zhouzirui/chat-widget/internal/render"
	"github.com/zhouzirui/chat-widget/internal/widget"
)

var errQuit = errors.New("quit")

const helpText = `Comandos:
  :open | :close          abrir ou fechar o painel
  :theme [light|dark]     trocar o tema (sem argumento alterna)
  :position <pos>         bottom-right, bottom-left, top-right, top-left
  :resize <LxA>           por exemplo 400x600
  :status <online|offline>
  :locale <tag>           por exemplo en-US
  :layout                 alternar botões horizontal/vertical
  :badge <n>              definir o contador de não lidas
  :questions a|b|c        definir perguntas sugeridas
  :ask <n>                enviar a pergunta sugerida n
  :click <n>              clicar no botão n da última resposta
  :attach <arquivo>       enviar uma imagem
  :clear                  apagar o histórico
  :state                  mostrar o estado do painel
  :quit
Textos começando com / são comandos do chat (/hora, /eco, /limpar).`

// repl 读取标准输入并驱动组件。
type repl struct {
	w    *widget.Widget
	term *render.Terminal
	out  io.Writer
}

func (r *repl) run(in io.Reader) error {
	r.term.Print(r.term.Header(r.w.State()))
	r.term.Print("Digite :help para ver os comandos.")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, ":") {
			r.w.SendMessage(line)
			continue
		}
		if err := r.control(line[1:]); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(r.out, "erro: %v\n", err)
		}
	}
	return scanner.Err()
}

func (r *repl) control(line string) error {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "help":
		r.term.Print(helpText)
	case "quit", "exit":
		return errQuit
	case "open":
		r.w.Open()
	case "close":
		r.w.Close()
	case "theme":
		if arg == "" {
			r.w.ToggleTheme()
		} else if err := r.w.SetTheme(arg); err != nil {
			return err
		}
		if err := r.term.SetTheme(r.w.State().Theme); err != nil {
			return err
		}
	case "position":
		return r.w.SetPosition(arg)
	case "resize":
		d, err := parseDimensions(arg)
		if err != nil {
			return err
		}
		return r.w.Resize(d)
	case "status":
		return r.w.SetAgentStatus(arg)
	case "locale":
		return r.w.SetLocale(arg)
	case "layout":
		r.w.ToggleButtonLayout()
	case "badge":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("contador inválido %q", arg)
		}
		r.w.SetBadge(n)
	case "questions":
		var questions []string
		for _, q := range strings.Split(arg, "|") {
			if q = strings.TrimSpace(q); q != "" {
				questions = append(questions, q)
			}
		}
		r.w.SetPredefinedQuestions(questions)
	case "ask":
		questions := r.w.PredefinedQuestions()
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(questions) {
			return fmt.Errorf("pergunta %q não existe", arg)
		}
		r.w.SendMessage(questions[n-1])
	case "click":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("botão inválido %q", arg)
		}
		msg, ok := lastWithActions(r.w.Messages())
		if !ok {
			return errors.New("nenhuma resposta com botões")
		}
		return r.w.ClickAction(msg.ID, n-1)
	case "attach":
		data, err := os.ReadFile(arg)
		if err != nil {
			return err
		}
		return r.w.AttachFile(filepath.Base(arg), data)
	case "clear":
		r.w.ClearHistory()
	case "state":
		r.term.Print(r.term.Header(r.w.State()))
		return nil
	default:
		return fmt.Errorf("comando desconhecido :%s", name)
	}

	r.term.Print(r.term.Header(r.w.State()))
	return nil
}

func parseDimensions(s string) (widgetModel.Dimensions, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return widgetModel.Dimensions{}, fmt.Errorf("use LARGURAxALTURA, recebido %q", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil {
		return widgetModel.Dimensions{}, fmt.Errorf("largura inválida: %w", err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil {
		return widgetModel.Dimensions{}, fmt.Errorf("altura inválida: %w", err)
	}
	return widgetModel.Dimensions{Width: width, Height: height}, nil
}

func lastWithActions(messages []chat.Message) (chat.Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Origin == chat.OriginAgent && len(messages[i].Actions) > 0 {
			return messages[i], true
		}
	}
	return chat.Message{}, false
}
