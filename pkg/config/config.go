// Package config は起動時の設定 (.env, YAML, 環境変数) を読み込みます。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
	"github.com/shouni/gemini-prompt-kit/pkg/generator"
	"github.com/shouni/gemini-prompt-kit/pkg/imgutil"
)

// 設定に関わる環境変数名です。
const (
	EnvConfigPath     = "PROMPTKIT_CONFIG"
	EnvBackend        = "PROMPTKIT_BACKEND"
	EnvModel          = "PROMPTKIT_MODEL"
	EnvInstruction    = "PROMPTKIT_INSTRUCTION"
	EnvRequestTimeout = "PROMPTKIT_REQUEST_TIMEOUT_MS"
	EnvPreviewMaxEdge = "PROMPTKIT_PREVIEW_MAX_EDGE"
	EnvPort           = "PORT"
	EnvLogLevel       = "LOG_LEVEL"

	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvAPIKey       = "API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

const (
	DefaultPort             = "8080"
	DefaultRequestTimeoutMS = 60_000
	DefaultLogLevel         = "info"
)

// Config はアプリケーション全体の設定です。API キーは YAML からは読みません。
type Config struct {
	Backend          string `yaml:"backend"`
	Model            string `yaml:"model"`
	Instruction      string `yaml:"instruction"`
	Port             string `yaml:"port"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
	PreviewMaxEdge   int    `yaml:"preview_max_edge"`
	LogLevel         string `yaml:"log_level"`

	APIKey string `yaml:"-"`
}

// Load は .env、YAML ファイル、環境変数の順に設定を重ね、API キーを検証します。
// path が空なら PROMPTKIT_CONFIG を参照し、それも空なら YAML は読みません。
// API キーが無い場合は *domain.ConfigurationError を返します。これは起動を中断すべきエラーです。
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env の読み込みに失敗しました: %w", err)
	}

	cfg := &Config{
		Backend:          generator.BackendGemini,
		Port:             DefaultPort,
		RequestTimeoutMS: DefaultRequestTimeoutMS,
		PreviewMaxEdge:   imgutil.DefaultPreviewMaxEdge,
		LogLevel:         DefaultLogLevel,
	}

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		slog.Debug("設定ファイルを読み込みました", "path", path)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.resolveAPIKey(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイル %s の解析に失敗しました: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Backend = getEnv(EnvBackend, c.Backend)
	c.Model = getEnv(EnvModel, c.Model)
	c.Instruction = getEnv(EnvInstruction, c.Instruction)
	c.Port = getEnv(EnvPort, c.Port)
	c.LogLevel = getEnv(EnvLogLevel, c.LogLevel)

	var err error
	if c.RequestTimeoutMS, err = getEnvInt(EnvRequestTimeout, c.RequestTimeoutMS); err != nil {
		return err
	}
	if c.PreviewMaxEdge, err = getEnvInt(EnvPreviewMaxEdge, c.PreviewMaxEdge); err != nil {
		return err
	}

	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case generator.BackendGemini, generator.BackendOpenAI:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}

func (c *Config) resolveAPIKey() error {
	switch c.Backend {
	case generator.BackendOpenAI:
		c.APIKey = getEnv(EnvOpenAIAPIKey, "")
		if c.APIKey == "" {
			return &domain.ConfigurationError{Key: EnvOpenAIAPIKey}
		}
	default:
		c.APIKey = getEnv(EnvGeminiAPIKey, getEnv(EnvAPIKey, ""))
		if c.APIKey == "" {
			return &domain.ConfigurationError{Key: EnvGeminiAPIKey}
		}
	}
	return nil
}

// RequestTimeout は外部呼び出し1回あたりのタイムアウトです。
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// SlogLevel は LogLevel を slog.Level に変換します。不明な値は Info です。
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// GeneratorOptions は generator.New に渡す設定を組み立てます。
func (c *Config) GeneratorOptions() generator.Options {
	return generator.Options{
		Backend:     c.Backend,
		APIKey:      c.APIKey,
		Model:       c.Model,
		Instruction: c.Instruction,
	}
}

// Addr は HTTP サーバーの待ち受けアドレスです。
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s は整数で指定してください: %w", key, err)
	}
	return n, nil
}
