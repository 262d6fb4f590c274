package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/viper"
)

// 支持的模型提供方
const (
	ProviderGemini = "gemini"
	ProviderArk    = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	AI      AIConfig      `mapstructure:"ai"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
	Ark     ArkConfig     `mapstructure:"ark"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Voice   VoiceConfig   `mapstructure:"voice"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Addr           string   `mapstructure:"-"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
}

// AIConfig 选择模型提供方。
type AIConfig struct {
	Provider string `mapstructure:"provider"`
}

// GeminiConfig 描述 Gemini 接入配置。
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// Enabled 表示是否提供了 API key。
func (c GeminiConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// ArkConfig 描述 Ark 大模型相关配置。
type ArkConfig struct {
	APIKey      string   `mapstructure:"api_key"`
	AccessKey   string   `mapstructure:"access_key"`
	SecretKey   string   `mapstructure:"secret_key"`
	Model       string   `mapstructure:"model"`
	BaseURL     string   `mapstructure:"base_url"`
	Region      string   `mapstructure:"region"`
	Temperature *float64 `mapstructure:"temperature"`
	TopP        *float64 `mapstructure:"top_p"`
	MaxTokens   *int     `mapstructure:"max_tokens"`
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c ArkConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY + Model or an AK/SK pair")
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

// ChatConfig 对话相关配置
type ChatConfig struct {
	HistoryLimit int `mapstructure:"history_limit"`
}

// RedisConfig 为空时使用内存存储。
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// Enabled 表示是否配置了 Redis。
func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

// VoiceConfig 唤醒词配置
type VoiceConfig struct {
	WakePhrases []string `mapstructure:"wake_phrases"`
}

// BreakerConfig 模型调用熔断配置
type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

// AIEnabled 表示所选提供方是否配置了凭证。
func (c *Config) AIEnabled() bool {
	switch c.AI.Provider {
	case ProviderArk:
		return c.Ark.Enabled()
	default:
		return c.Gemini.Enabled()
	}
}

// Load 从 config.yaml（可选）和环境变量加载配置。
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RASA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 逗号分隔的环境变量需要手动拆分
	cfg.Server.AllowedOrigins = listValue(v, "server.allowed_origins")
	cfg.Voice.WakePhrases = listValue(v, "voice.wake_phrases")
	for i, p := range cfg.Voice.WakePhrases {
		cfg.Voice.WakePhrases[i] = strings.ToLower(p)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.environment", "production")
	v.SetDefault("ai.provider", ProviderGemini)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("ark.base_url", "https://ark.cn-beijing.volces.com/api/v3")
	v.SetDefault("ark.region", "cn-beijing")
	v.SetDefault("chat.history_limit", 10)
	v.SetDefault("voice.wake_phrases", []string{"ok rasa", "okay rasa"})
	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", time.Minute)
	v.SetDefault("breaker.timeout", 30*time.Second)
	v.SetDefault("breaker.consecutive_failures", 5)
}

func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"server.port":                  {"PORT"},
		"server.allowed_origins":       {"CORS_ALLOWED_ORIGINS"},
		"log.level":                    {"LOG_LEVEL"},
		"log.environment":              {"APP_ENV"},
		"ai.provider":                  {"AI_PROVIDER"},
		"gemini.api_key":               {"GEMINI_API_KEY", "API_KEY"},
		"gemini.model":                 {"GEMINI_MODEL"},
		"ark.api_key":                  {"ARK_API_KEY"},
		"ark.access_key":               {"ARK_ACCESS_KEY"},
		"ark.secret_key":               {"ARK_SECRET_KEY"},
		"ark.model":                    {"Model", "ARK_MODEL"},
		"ark.base_url":                 {"ARK_BASE_URL"},
		"ark.region":                   {"ARK_REGION"},
		"ark.temperature":              {"ARK_TEMPERATURE"},
		"ark.top_p":                    {"ARK_TOP_P"},
		"ark.max_tokens":               {"ARK_MAX_TOKENS"},
		"chat.history_limit":           {"CHAT_HISTORY_LIMIT"},
		"redis.url":                    {"REDIS_URL"},
		"voice.wake_phrases":           {"WAKE_PHRASES"},
		"breaker.max_requests":         {"BREAKER_MAX_REQUESTS"},
		"breaker.interval":             {"BREAKER_INTERVAL"},
		"breaker.timeout":              {"BREAKER_TIMEOUT"},
		"breaker.consecutive_failures": {"BREAKER_CONSECUTIVE_FAILURES"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// normalize 校验并补全派生字段。
func (c *Config) normalize() error {
	port := strings.TrimSpace(c.Server.Port)
	if port == "" {
		port = "8080"
	}
	switch {
	case strings.Contains(port, " "):
		return fmt.Errorf("invalid PORT value: %q", port)
	case strings.Contains(port, ":"):
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		c.Server.Addr = port
	default:
		c.Server.Addr = ":" + port
	}

	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	switch c.AI.Provider {
	case ProviderGemini, ProviderArk:
	default:
		return fmt.Errorf("invalid AI_PROVIDER value %q: want %s or %s", c.AI.Provider, ProviderGemini, ProviderArk)
	}

	if c.Chat.HistoryLimit < 0 {
		return fmt.Errorf("invalid CHAT_HISTORY_LIMIT value %d", c.Chat.HistoryLimit)
	}
	if len(c.Voice.WakePhrases) == 0 {
		return fmt.Errorf("WAKE_PHRASES must name at least one phrase")
	}
	if c.Breaker.ConsecutiveFailures == 0 {
		c.Breaker.ConsecutiveFailures = 5
	}
	return nil
}

func listValue(v *viper.Viper, key string) []string {
	var items []string
	switch raw := v.Get(key).(type) {
	case string:
		items = []string{raw}
	case []string:
		items = raw
	case []any:
		for _, item := range raw {
			items = append(items, fmt.Sprint(item))
		}
	}

	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
