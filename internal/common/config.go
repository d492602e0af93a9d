package common

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. HOMEWORK_WATCH_DIR.
const EnvPrefix = "HOMEWORK"

// DefaultBaseURL is DashScope's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// Config holds all application configuration
type Config struct {
	WatchDir       string         `mapstructure:"watch_dir"`
	OutputDir      string         `mapstructure:"output_dir"`
	StateDB        string         `mapstructure:"state_db"`
	ArchiveDir     string         `mapstructure:"archive_dir"`
	Debounce       time.Duration  `mapstructure:"debounce"`
	InitialScan    bool           `mapstructure:"initial_scan"`
	Workers        int            `mapstructure:"workers"`
	QueueSize      int            `mapstructure:"queue_size"`
	ProcessTimeout time.Duration  `mapstructure:"process_timeout"` // per document run in the watch daemon; 0 = none
	HealthAddr     string         `mapstructure:"health_addr"`
	AI             AIConfig       `mapstructure:"ai"`
	Retry          RetryConfig    `mapstructure:"retry"`
	Dispatch       DispatchConfig `mapstructure:"dispatch"`
	Extract        ExtractConfig  `mapstructure:"extract"`
	Log            LogConfig      `mapstructure:"log"`
}

// AIConfig holds settings of the OpenAI-compatible model endpoint
type AIConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MinInterval time.Duration `mapstructure:"min_interval"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	JSONMode    bool          `mapstructure:"json_mode"`
	ImageDetail string        `mapstructure:"image_detail"`
}

// RetryConfig holds the per-major-question retry policy
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Multiplier     float64       `mapstructure:"multiplier"`
}

// DispatchConfig controls how major questions of one document are scheduled
type DispatchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// ExtractConfig bounds what the PDF extractor reads
type ExtractConfig struct {
	MaxPages      int   `mapstructure:"max_pages"`
	MaxImageBytes int64 `mapstructure:"max_image_bytes"`
	MaxImageSide  int   `mapstructure:"max_image_side"`
	JPEGQuality   int   `mapstructure:"jpeg_quality"`
	SkipImages    bool  `mapstructure:"skip_images"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// NewViper returns a viper instance with defaults and environment binding in place.
// Callers may bind CLI flags into it before LoadConfig.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("watch_dir", "")
	v.SetDefault("output_dir", "")
	v.SetDefault("state_db", "")
	v.SetDefault("archive_dir", "")
	v.SetDefault("debounce", 2*time.Second)
	v.SetDefault("initial_scan", true)
	v.SetDefault("workers", 1)
	v.SetDefault("queue_size", 256)
	v.SetDefault("process_timeout", time.Duration(0))
	v.SetDefault("health_addr", "")

	v.SetDefault("ai.base_url", DefaultBaseURL)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "qwen-vl-max")
	v.SetDefault("ai.temperature", 0.3)
	v.SetDefault("ai.timeout", 120*time.Second)
	v.SetDefault("ai.min_interval", time.Duration(0))
	v.SetDefault("ai.max_tokens", 0)
	v.SetDefault("ai.json_mode", false)
	v.SetDefault("ai.image_detail", "auto")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff", 2*time.Second)
	v.SetDefault("retry.max_backoff", 30*time.Second)
	v.SetDefault("retry.multiplier", 2.0)

	v.SetDefault("dispatch.concurrency", 1)

	v.SetDefault("extract.max_pages", 0)
	v.SetDefault("extract.max_image_bytes", 4<<20)
	v.SetDefault("extract.max_image_side", 1024)
	v.SetDefault("extract.jpeg_quality", 80)
	v.SetDefault("extract.skip_images", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Credentials are also picked up under the names other tools use.
	_ = v.BindEnv("ai.api_key", EnvPrefix+"_AI_API_KEY", "QWEN_API", "OPENAI_API_KEY")
	return v
}

// LoadConfig reads the optional YAML file at path and unmarshals everything into a Config.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, NewAppError(CodeConfig, "error reading config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, NewAppError(CodeConfig, "error unmarshaling config", err)
	}
	cfg.applyDerived()
	return &cfg, nil
}

func (c *Config) applyDerived() {
	if c.OutputDir == "" {
		if c.WatchDir != "" {
			c.OutputDir = filepath.Join(c.WatchDir, "results")
		} else {
			c.OutputDir = "results"
		}
	}
	if c.StateDB == "" {
		c.StateDB = filepath.Join(c.OutputDir, "state.db")
	}
	if c.Dispatch.Concurrency < 1 {
		c.Dispatch.Concurrency = 1
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("ai.api_key", c.AI.APIKey, Required).
		Field("ai.base_url", c.AI.BaseURL, Required).
		Field("ai.model", c.AI.Model, Required).
		Field("ai.timeout", c.AI.Timeout, Positive).
		Field("ai.min_interval", c.AI.MinInterval, NonNegative).
		Field("output_dir", c.OutputDir, Required).
		Field("debounce", c.Debounce, NonNegative).
		Field("queue_size", c.QueueSize, NonNegative).
		Field("process_timeout", c.ProcessTimeout, NonNegative).
		Field("retry.max_attempts", c.Retry.MaxAttempts, Positive).
		Field("retry.initial_backoff", c.Retry.InitialBackoff, NonNegative).
		Field("retry.max_backoff", c.Retry.MaxBackoff, NonNegative).
		Field("extract.max_pages", c.Extract.MaxPages, NonNegative).
		Field("extract.max_image_side", c.Extract.MaxImageSide, NonNegative).
		Field("ai.image_detail", c.AI.ImageDetail, OneOf("low", "high", "auto")).
		Field("log.format", c.Log.Format, OneOf("console", "json"))
	if c.Retry.Multiplier < 1 {
		v.errors = append(v.errors, ValidationError{Field: "retry.multiplier", Value: c.Retry.Multiplier, Message: "must be at least 1"})
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		v.errors = append(v.errors, ValidationError{Field: "ai.temperature", Value: c.AI.Temperature, Message: "must be within 0..2"})
	}
	if v.HasErrors() {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// ValidateWatch adds the checks needed only by the watch daemon.
func (c *Config) ValidateWatch() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.WatchDir) == "" {
		return NewAppError(CodeConfig, "watch_dir is required", ErrInvalidInput)
	}
	if c.ArchiveDir != "" && filepath.Clean(c.ArchiveDir) == filepath.Clean(c.WatchDir) {
		return NewAppError(CodeConfig, fmt.Sprintf("archive_dir must differ from watch_dir (%s)", c.WatchDir), ErrInvalidInput)
	}
	return nil
}
