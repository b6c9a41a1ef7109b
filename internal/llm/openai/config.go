package openai

import (
	"log/slog"
	"net/http"
	"time"
)

// Config for the OpenAI-compatible chat-completions client. The defaults target Groq.
type Config struct {
	APIKey      string        // checked at call time; empty fails each call with MISSING_CREDENTIAL
	BaseURL     string        // default https://api.groq.com/openai/v1
	Model       string        // default llama3-70b-8192
	Temperature float32       // 0..2
	MaxTokens   int           // default 8000
	Timeout     time.Duration // http client timeout
	JSONMode    bool          // send response_format=json_object
}

const (
	DefaultBaseURL   = "https://api.groq.com/openai/v1"
	DefaultModel     = "llama3-70b-8192"
	DefaultMaxTokens = 8000
)

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// HasCredential reports whether an API key is configured.
func (c *Client) HasCredential() bool {
	return c.cfg.APIKey != ""
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}
