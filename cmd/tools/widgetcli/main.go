package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type flags struct {
	optionsFile string
	dataDir     string
	endpoint    string
	scope       string
	logLevel    string
}

func main() {
	// 加载 .env，失败时沿用系统环境变量
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "widgetcli",
		Short: "在终端中运行聊天组件",
		Long: `widgetcli 在终端中挂载聊天组件：消息通过中继同步，
历史记录保存在本地 Pebble 数据库中，未命中预设回复时可调用 Ark 模型。`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, f)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVarP(&f.optionsFile, "options", "o", "", "组件选项 YAML 文件 (默认读取 WIDGET_OPTIONS_FILE)")
	pf.StringVarP(&f.dataDir, "data", "d", "", "Pebble 数据目录，留空则只保存在内存 (默认读取 WIDGET_DATA_DIR)")
	pf.StringVarP(&f.endpoint, "endpoint", "e", "", "中继 WebSocket 地址 (默认读取 WIDGET_ENDPOINT)")
	pf.StringVarP(&f.scope, "scope", "s", "", "存储作用域，覆盖选项文件中的 storageScope")
	pf.StringVar(&f.logLevel, "log-level", "", "日志级别 (默认读取 LOG_LEVEL)")

	root.AddCommand(newChatCmd(f), newHistoryCmd(f))
	return root
}

func newChatCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "启动交互式会话",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, f)
		},
	}
}

func newHistoryCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "打印已保存的会话记录",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, f)
		},
	}
}
