package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/chat-widget/internal/config"
	"github.com/zhouzirui/chat-widget/internal/logging"
	"github.com/zhouzirui/chat-widget/internal/model/chat"
	"github.com/zhouzirui/chat-widget/internal/render"
	"github.com/zhouzirui/chat-widget/internal/service/ai"
	"github.com/zhouzirui/chat-widget/internal/storage"
	"github.com/zhouzirui/chat-widget/internal/widget"
)

// session 汇总一次运行所需的配置与依赖。
type session struct {
	cfg  *config.Config
	opts widget.Options
	kv   storage.KV
}

func openSession(f *flags) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("配置加载失败: %w", err)
	}

	level := cfg.Log.Level
	if f.logLevel != "" {
		level = f.logLevel
	}
	// 日志写到 stderr，避免与对话输出混在一起
	logging.SetupWriter(os.Stderr, level, cfg.Log.Pretty)

	optionsFile := firstNonEmpty(f.optionsFile, cfg.Widget.OptionsFile)
	opts, err := config.LoadWidgetOptions(optionsFile)
	if err != nil {
		return nil, err
	}
	opts.Endpoint = firstNonEmpty(f.endpoint, cfg.Widget.Endpoint, opts.Endpoint)
	opts.StorageScope = firstNonEmpty(f.scope, opts.StorageScope)

	var kv storage.KV = storage.NewMemoryKV()
	if dir := firstNonEmpty(f.dataDir, cfg.Widget.DataDir); dir != "" {
		pkv, err := storage.OpenPebble(dir)
		if err != nil {
			return nil, err
		}
		kv = pkv
	}

	return &session{cfg: cfg, opts: opts, kv: kv}, nil
}

func (s *session) Close() {
	if err := s.kv.Close(); err != nil {
		log.Warn().Err(err).Msg("[widgetcli] 关闭存储失败")
	}
}

func runChat(cmd *cobra.Command, f *flags) error {
	s, err := openSession(f)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	deps := widget.Dependencies{KV: s.kv}
	if s.cfg.AI.Enabled() {
		svc, err := ai.NewService(ctx, s.cfg.AI, ai.PromptConfig{
			ChatTitle: s.opts.ChatTitle,
			Locale:    s.opts.Locale,
			Knowledge: s.opts.CustomResponses,
		})
		if err != nil {
			log.Warn().Err(err).Msg("[widgetcli] AI 服务初始化失败，继续使用固定回复")
		} else {
			deps.Responder = svc
			log.Info().Msg("[widgetcli] AI service initialized successfully")
		}
	} else {
		log.Info().Msg("[widgetcli] Ark 凭证未配置，跳过 AI 功能初始化")
	}

	out := cmd.OutOrStdout()
	term, err := render.NewTerminal(out, s.opts.Theme)
	if err != nil {
		return err
	}

	w := widget.New(deps)
	registerCommands(w)
	w.OnNewMessage(func(m chat.Message) {
		term.Print(term.Message(m, w.State().ChatTitle, w.State().ButtonLayout))
	})

	if err := w.Init(ctx, s.opts); err != nil {
		return fmt.Errorf("组件初始化失败: %w", err)
	}
	defer w.Destroy()

	r := &repl{w: w, term: term, out: out}
	return r.run(cmd.InOrStdin())
}

func runHistory(cmd *cobra.Command, f *flags) error {
	s, err := openSession(f)
	if err != nil {
		return err
	}
	defer s.Close()

	term, err := render.NewTerminal(cmd.OutOrStdout(), s.opts.Theme)
	if err != nil {
		return err
	}

	messages := storage.NewPersistence(s.kv, s.opts.StorageScope).LoadLog()
	if len(messages) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "(sem mensagens)")
		return nil
	}
	for _, m := range messages {
		term.Print(term.Message(m, s.opts.ChatTitle, ""))
	}
	return nil
}

// registerCommands 注册示例斜杠命令。
func registerCommands(w *widget.Widget) {
	w.RegisterCommand("hora", func(context.Context, []string) (string, error) {
		return "Agora são " + time.Now().Format("15:04") + ".", nil
	})
	w.RegisterCommand("eco", func(_ context.Context, args []string) (string, error) {
		if len(args) == 0 {
			return "", fmt.Errorf("informe um texto")
		}
		return strings.Join(args, " "), nil
	})
	w.RegisterCommand("limpar", func(context.Context, []string) (string, error) {
		// 在回复追加前清空，回复会成为新记录的第一条
		w.ClearHistory()
		return "Histórico apagado.", nil
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
