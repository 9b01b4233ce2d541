package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

// DefaultSystemPrompt frames every extraction call.
const DefaultSystemPrompt = "You are a professional medical information extraction tool. Follow the user's instructions strictly and output only what is asked for."

// Config for the OpenAI-compatible client.
type Config struct {
	APIURL       string        // full chat/completions URL; default https://api.openai.com/v1/chat/completions
	APIKey       string        // if empty, falls back to env LLM_API_KEY
	Model        string        // e.g., "deepseek-r1"
	Temperature  float32       // 0..2
	Timeout      time.Duration // http client timeout; covers the whole streamed body
	SystemPrompt string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("LLM_API_KEY")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.openai.com/v1/chat/completions"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

// WithHTTPClient swaps the underlying HTTP client (tests, custom transports).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}
