package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/chat-widget/internal/model/widget"
)

// Config 聚合中继与客户端工具的配置项。
type Config struct {
	Server ServerConfig
	Relay  RelayConfig
	Log    LogConfig
	AI     AIConfig
	Widget WidgetConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if cfg.AI.HistoryLimit < 1 {
		cfg.AI.HistoryLimit = 1
	}
	return &cfg, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	// Addr 由 Port 推导，供 http.Server 使用。
	Addr string `env:"-"`
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// RelayConfig 描述中继行为。
type RelayConfig struct {
	StaticDir     string        `env:"RELAY_STATIC_DIR"`
	RateRPS       float64       `env:"RELAY_RATE_RPS" envDefault:"0"`
	RateBurst     int           `env:"RELAY_RATE_BURST" envDefault:"0"`
	MaxFrameBytes int64         `env:"RELAY_MAX_FRAME_BYTES" envDefault:"8388608"`
	PingInterval  time.Duration `env:"RELAY_PING_INTERVAL" envDefault:"20s"`
	ReadTimeout   time.Duration `env:"RELAY_READ_TIMEOUT" envDefault:"60s"`
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty bool   `env:"LOG_PRETTY" envDefault:"true"`
}

// WidgetConfig 描述客户端工具的本地设置。
type WidgetConfig struct {
	OptionsFile string `env:"WIDGET_OPTIONS_FILE"`
	DataDir     string `env:"WIDGET_DATA_DIR"`
	Endpoint    string `env:"WIDGET_ENDPOINT"`
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey       string        `env:"ARK_API_KEY"`
	AccessKey    string        `env:"ARK_ACCESS_KEY"`
	SecretKey    string        `env:"ARK_SECRET_KEY"`
	Model        string        `env:"ARK_MODEL"`
	BaseURL      string        `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region       string        `env:"ARK_REGION" envDefault:"cn-beijing"`
	Temperature  *float64      `env:"ARK_TEMPERATURE"`
	TopP         *float64      `env:"ARK_TOP_P"`
	MaxTokens    *int          `env:"ARK_MAX_TOKENS"`
	HistoryLimit int           `env:"AI_HISTORY_LIMIT" envDefault:"10"`
	Timeout      time.Duration `env:"AI_TIMEOUT" envDefault:"30s"`
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// LoadWidgetOptions 读取 YAML 选项文件，补全默认值并校验。
// path 为空时返回默认选项。
func LoadWidgetOptions(path string) (widget.Options, error) {
	if strings.TrimSpace(path) == "" {
		return widget.Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return widget.Options{}, fmt.Errorf("widget options file %s: %w", path, err)
		}
		return widget.Options{}, fmt.Errorf("read widget options: %w", err)
	}

	var opts widget.Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return widget.Options{}, fmt.Errorf("parse widget options %s: %w", path, err)
	}

	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return widget.Options{}, fmt.Errorf("widget options %s: %w", path, err)
	}
	return opts, nil
}
