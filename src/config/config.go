package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/openrouter"
	APIKeyPathEnvVar  = "API_KEY_FILE"
	EnvFileEnvVar     = "GRAMMAR_FIX_ENV"

	DefaultModel   = "gpt-4o-mini"
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultHotkey  = "CapsLock"

	// DefaultSystemPrompt is the fixed instruction sent with every correction request.
	DefaultSystemPrompt = "You are a skilled text editor. When given a piece of text, please correct any " +
		"grammatical, spelling, or punctuation errors while keeping changes to a minimum. " +
		"Do not simply return the input verbatim; only make the necessary corrections. " +
		"If the text is already correct, return it unchanged."
)

var (
	ErrMissingAPIKey = errors.New("api key is required")
	ErrMissingModel  = errors.New("model is required")
)

type LoadOptions struct {
	APIKeyPathOverride string
	HotkeyOverride     string
}

type Config struct {
	APIKey     string `env:"-"`
	APIKeyPath string `env:"-"`

	Model           string   `env:"MODEL" envDefault:"gpt-4o-mini"`
	BaseURL         string   `env:"BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	SystemPrompt    string   `env:"SYSTEM_PROMPT"`
	Providers       []string `env:"PROVIDERS" envSeparator:","`
	RequestTimeout  int      `env:"REQUEST_TIMEOUT_SEC" envDefault:"30"`
	MaxRetries      int      `env:"MAX_RETRIES" envDefault:"0"`
	VerifyOnStartup bool     `env:"VERIFY_ON_STARTUP" envDefault:"false"`

	Hotkey           string `env:"HOTKEY" envDefault:"CapsLock"`
	HotkeyBackend    string `env:"HOTKEY_BACKEND" envDefault:"hook"`
	InputBackend     string `env:"INPUT_BACKEND" envDefault:"robotgo"`
	ClipboardBackend string `env:"CLIPBOARD_BACKEND" envDefault:"native"`
	SettleDelayMs    int    `env:"SETTLE_DELAY_MS" envDefault:"200"`

	EnableFileLogging bool   `env:"ENABLE_FILE_LOGGING" envDefault:"false"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Configuration sources in priority order:
	// 1) process environment
	// 2) .env in the executable directory, or the file named by GRAMMAR_FIX_ENV
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.Providers = trimAll(cfg.Providers)
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.SettleDelayMs < 0 {
		cfg.SettleDelayMs = 0
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if override := strings.TrimSpace(opts.HotkeyOverride); override != "" {
		cfg.Hotkey = override
	}

	cfg.APIKeyPath = resolveAPIKeyPath(opts, dotenvValues)
	cfg.APIKey = resolveAPIKey(cfg.APIKeyPath)

	return cfg, nil
}

// Validate reports the settings without which the correction service cannot be used.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: checked key file %s, OPENROUTER_API_KEY and OPENAI_API_KEY", ErrMissingAPIKey, c.APIKeyPath)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: set MODEL in your .env file", ErrMissingModel)
	}
	return nil
}

func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

func (c *Config) RequestDeadline() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}

	if k := strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")); k != "" {
		return k
	}
	return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
