package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/rfp-intake/internal/ai"
	"github.com/spigell/rfp-intake/internal/intake"
	"github.com/spigell/rfp-intake/internal/secrets"
)

const defaultAddr = ":4000"

type Config struct {
	Debug    bool            `mapstructure:"debug" yaml:"debug"`
	JSON     bool            `mapstructure:"json" yaml:"json"`
	Server   *ServerConfig   `mapstructure:"server" yaml:"server"`
	Database *DatabaseConfig `mapstructure:"database" yaml:"database"`
	Webhook  *WebhookConfig  `mapstructure:"webhook" yaml:"webhook"`
	AI       *AIConfig       `mapstructure:"ai" yaml:"ai"`
}

type ServerConfig struct {
	Addr         string   `mapstructure:"addr" yaml:"addr"`
	Port         string   `mapstructure:"port" yaml:"port,omitempty"`
	CORSOrigins  []string `mapstructure:"cors-origins" yaml:"cors-origins"`
	MaxBodyBytes int64    `mapstructure:"max-body-bytes" yaml:"max-body-bytes"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

type WebhookConfig struct {
	Secret          string `mapstructure:"secret" yaml:"secret,omitempty"`
	SecretFile      string `mapstructure:"secret-file" yaml:"secret-file,omitempty"`
	RequireSecret   bool   `mapstructure:"require-secret" yaml:"require-secret"`
	SignatureHeader string `mapstructure:"signature-header" yaml:"signature-header"`
	TimestampHeader string `mapstructure:"timestamp-header" yaml:"timestamp-header"`
	MinBodyLength   int    `mapstructure:"min-body-length" yaml:"min-body-length"`
}

type AIConfig struct {
	Provider     string           `mapstructure:"provider" yaml:"provider"`
	APIKey       string           `mapstructure:"api-key" yaml:"api-key,omitempty"`
	APIKeyFile   string           `mapstructure:"api-key-file" yaml:"api-key-file,omitempty"`
	Model        string           `mapstructure:"model" yaml:"model,omitempty"`
	BaseURL      string           `mapstructure:"base-url" yaml:"base-url,omitempty"`
	MaxRetries   int              `mapstructure:"max-retries" yaml:"max-retries"`
	MaxLogLength int              `mapstructure:"max-log-length" yaml:"max-log-length"`
	Timeout      time.Duration    `mapstructure:"timeout" yaml:"timeout"`
	CacheTTL     time.Duration    `mapstructure:"cache-ttl" yaml:"cache-ttl"`
	RateLimit    *RateLimitConfig `mapstructure:"rate-limit" yaml:"rate-limit"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" yaml:"rps"`
	Burst int     `mapstructure:"burst" yaml:"burst"`
}

func setDefaults() {
	viper.SetDefault("server.addr", "")
	viper.SetDefault("server.port", "")
	viper.SetDefault("server.cors-origins", []string{})
	viper.SetDefault("server.max-body-bytes", 10<<20)

	viper.SetDefault("database.url", "")

	viper.SetDefault("webhook.secret", "")
	viper.SetDefault("webhook.secret-file", "")
	viper.SetDefault("webhook.require-secret", false)
	viper.SetDefault("webhook.signature-header", intake.DefaultSignatureHeader)
	viper.SetDefault("webhook.timestamp-header", intake.DefaultTimestampHeader)
	viper.SetDefault("webhook.min-body-length", intake.DefaultMinBodyLength)

	viper.SetDefault("ai.provider", ai.ProviderGemini)
	viper.SetDefault("ai.api-key", "")
	viper.SetDefault("ai.api-key-file", "")
	viper.SetDefault("ai.model", "")
	viper.SetDefault("ai.base-url", "")
	viper.SetDefault("ai.max-retries", 3)
	viper.SetDefault("ai.max-log-length", 2000)
	viper.SetDefault("ai.timeout", 60*time.Second)
	viper.SetDefault("ai.cache-ttl", 30*time.Minute)
	viper.SetDefault("ai.rate-limit.rps", 1.0)
	viper.SetDefault("ai.rate-limit.burst", 5)
}

// ListenAddr prefers server.addr, then PORT, then the default.
func (c *ServerConfig) ListenAddr() string {
	if addr := strings.TrimSpace(c.Addr); addr != "" {
		return addr
	}
	if port := strings.TrimSpace(c.Port); port != "" {
		return ":" + port
	}
	return defaultAddr
}

// WebhookSecret resolves the shared webhook secret. An empty result means
// signature verification is off.
func (c *Config) WebhookSecret() (string, error) {
	return secrets.Load(secrets.Source{
		Name:     "webhook secret",
		Value:    c.Webhook.Secret,
		File:     c.Webhook.SecretFile,
		Env:      "SENDGRID_WEBHOOK_KEY",
		Optional: !c.Webhook.RequireSecret,
	})
}

// AIKey resolves the model provider credential. An empty result means model
// extraction and ranking are off.
func (c *Config) AIKey() (string, error) {
	env := "GOOGLE_API_KEY"
	if strings.EqualFold(c.AI.Provider, ai.ProviderOpenAI) {
		env = "OPENAI_API_KEY"
	}
	return secrets.Load(secrets.Source{
		Name:     c.AI.Provider + " api key",
		Value:    c.AI.APIKey,
		File:     c.AI.APIKeyFile,
		Env:      env,
		Optional: true,
	})
}

// Validate returns an error for settings that cannot work and warnings for
// settings that work but weaken the service.
func (c *Config) Validate() ([]string, error) {
	var (
		errs     []error
		warnings []string
	)

	switch strings.ToLower(strings.TrimSpace(c.AI.Provider)) {
	case "", ai.ProviderGemini, ai.ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("unsupported ai provider: %s", c.AI.Provider))
	}
	if c.AI.RateLimit != nil && c.AI.RateLimit.RPS < 0 {
		errs = append(errs, errors.New("ai.rate-limit.rps must not be negative"))
	}
	if c.Webhook.MinBodyLength < 0 {
		errs = append(errs, errors.New("webhook.min-body-length must not be negative"))
	}

	secret, err := c.WebhookSecret()
	switch {
	case err != nil:
		errs = append(errs, err)
	case secret == "":
		warnings = append(warnings, "webhook secret is not set, signature verification is disabled")
	}

	key, err := c.AIKey()
	switch {
	case err != nil:
		errs = append(errs, err)
	case key == "" || strings.TrimSpace(c.AI.Provider) == "":
		warnings = append(warnings, "ai is not configured, proposals are parsed and ranked heuristically")
	}

	if strings.TrimSpace(c.Database.URL) == "" {
		warnings = append(warnings, "database.url is not set (DATABASE_URL)")
	}

	return warnings, errors.Join(errs...)
}

func (c *Config) aiConfig(key string) ai.Config {
	cfg := ai.Config{
		Provider:   c.AI.Provider,
		APIKey:     key,
		Model:      c.AI.Model,
		BaseURL:    c.AI.BaseURL,
		MaxRetries: c.AI.MaxRetries,
		Timeout:    c.AI.Timeout,
	}
	if c.AI.RateLimit != nil {
		cfg.RPS = c.AI.RateLimit.RPS
		cfg.Burst = c.AI.RateLimit.Burst
	}
	return cfg
}

// redacted is a copy safe to print.
func (c *Config) redacted() Config {
	out := *c
	webhook := *c.Webhook
	aiCfg := *c.AI
	database := *c.Database

	webhook.Secret = mask(webhook.Secret)
	aiCfg.APIKey = mask(aiCfg.APIKey)
	database.URL = maskURLPassword(database.URL)

	out.Webhook = &webhook
	out.AI = &aiCfg
	out.Database = &database
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func maskURLPassword(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return url
	}
	creds := url[scheme+3 : at]
	if user, _, ok := strings.Cut(creds, ":"); ok {
		return url[:scheme+3] + user + ":********" + url[at:]
	}
	return url
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	Run: func(cmd *cobra.Command, _ []string) {
		logger := newLogger()

		config, err := getConfig()
		if err != nil {
			logger.Fatal("getting a config", zap.Error(err))
		}

		out, err := yaml.Marshal(config.redacted())
		if err != nil {
			logger.Fatal("rendering config", zap.Error(err))
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))

		warnings, err := config.Validate()
		for _, w := range warnings {
			logger.Warn(w)
		}
		if err != nil {
			logger.Fatal("invalid config", zap.Error(err))
		}
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
