package openai

import (
	"os"
	"time"
)

// Config for the OpenAI-compatible client.
type Config struct {
	APIKey      string        // if empty, falls back to env QWEN_API then OPENAI_API_KEY
	BaseURL     string        // default DashScope compatible-mode endpoint
	Model       string        // e.g., "qwen-vl-max"
	Temperature float32       // 0..2
	Timeout     time.Duration // per call
	MaxTokens   int           // 0 = provider default
	JSONMode    bool          // request response_format=json_object; not every vision model supports it
	ImageDetail string        // "low" | "high" | "auto"
}

const (
	defaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	defaultModel   = "qwen-vl-max"
)

func (c Config) withDefaults() Config {
	if c.APIKey == "" {
		c.APIKey = os.Getenv("QWEN_API")
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.ImageDetail == "" {
		c.ImageDetail = "auto"
	}
	return c
}
