package botconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/jdelaire/botauth/internal/keychain"
)

// Default values applied when the config leaves them empty.
const (
	DefaultSocket    = "~/.botauth/botauth.sock"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Config is the top-level daemon configuration.
type Config struct {
	Socket            string      `json:"socket"`
	MaxAuthAgeSeconds int         `json:"max_auth_age_seconds"`
	Log               LogConfig   `json:"log"`
	Bots              []BotConfig `json:"bots"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// BotConfig names a bot and exactly one source for its token.
type BotConfig struct {
	Name     string `json:"name"`
	Token    string `json:"token,omitempty"`
	TokenEnv string `json:"token_env,omitempty"`
	Keychain string `json:"keychain,omitempty"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bot config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse bot config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.MaxAuthAgeSeconds < 0 {
		return fmt.Errorf("max_auth_age_seconds must not be negative")
	}
	seen := make(map[string]bool, len(cfg.Bots))
	for i, b := range cfg.Bots {
		name := strings.TrimSpace(b.Name)
		if name == "" {
			return fmt.Errorf("bot #%d: name cannot be empty", i+1)
		}
		if seen[name] {
			return fmt.Errorf("bot %q listed more than once", name)
		}
		seen[name] = true

		sources := 0
		for _, s := range []string{b.Token, b.TokenEnv, b.Keychain} {
			if s != "" {
				sources++
			}
		}
		if sources != 1 {
			return fmt.Errorf("bot %q must set exactly one of token, token_env, keychain", name)
		}
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("log format %q must be json or text", cfg.Log.Format)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Socket == "" {
		cfg.Socket = DefaultSocket
	}
	cfg.Socket = expandHome(cfg.Socket)
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}

// MaxAuthAge returns the freshness window; zero disables the check.
func (c *Config) MaxAuthAge() time.Duration {
	return time.Duration(c.MaxAuthAgeSeconds) * time.Second
}

// ResolveToken returns the bot's token from its configured source.
func (b BotConfig) ResolveToken() (string, error) {
	switch {
	case b.Token != "":
		return b.Token, nil
	case b.TokenEnv != "":
		token := os.Getenv(b.TokenEnv)
		if token == "" {
			return "", fmt.Errorf("bot %q: environment variable %s is empty", b.Name, b.TokenEnv)
		}
		return token, nil
	case b.Keychain != "":
		token, err := keychain.Get(b.Keychain)
		if err != nil {
			return "", fmt.Errorf("bot %q: %w", b.Name, err)
		}
		return token, nil
	default:
		return "", fmt.Errorf("bot %q has no token source", b.Name)
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
