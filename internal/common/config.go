package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Reader  ReaderConfig  `yaml:"reader"`
	Tasks   TasksConfig   `yaml:"tasks"`
	Archive ArchiveConfig `yaml:"archive"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds listener addresses and upload handling.
type ServerConfig struct {
	HTTPAddr   string `yaml:"http_addr"`
	GRPCAddr   string `yaml:"grpc_addr"`
	MCPAddr    string `yaml:"mcp_addr"` // empty disables the MCP listener
	UploadDir  string `yaml:"upload_dir"`
	SubmitRoot string `yaml:"submit_root"` // gRPC SubmitPath only reads below it; empty disables SubmitPath
}

// LLMConfig holds text-generation endpoint configuration
type LLMConfig struct {
	APIURL       string        `yaml:"api_url"` // full chat/completions URL
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	Temperature  float32       `yaml:"temperature"`
	Timeout      time.Duration `yaml:"timeout"`
	SystemPrompt string        `yaml:"system_prompt"`
}

// ReaderConfig holds document-to-text settings.
type ReaderConfig struct {
	Pdftotext     string `yaml:"pdftotext"`
	MaxPages      int    `yaml:"max_pages"`
	OCR           bool   `yaml:"ocr"`
	Pdftoppm      string `yaml:"pdftoppm"`
	Tesseract     string `yaml:"tesseract"`
	TesseractLang string `yaml:"tesseract_lang"`
	TessdataDir   string `yaml:"tessdata_dir"`
	DPI           int    `yaml:"dpi"`
}

// TasksConfig holds background execution settings.
type TasksConfig struct {
	Workers         int           `yaml:"workers"` // 0 = one goroutine per task
	QueueSize       int           `yaml:"queue_size"`
	Timeout         time.Duration `yaml:"timeout"` // 0 = none
	AtomConcurrency int           `yaml:"atom_concurrency"`
}

// ArchiveConfig holds the optional SQL result archive.
type ArchiveConfig struct {
	DSN string `yaml:"dsn"` // empty disables the archive
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in defaults before file and env overrides.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: ":8999",
			GRPCAddr: ":9090",
			MCPAddr:  ":8998",
		},
		LLM: LLMConfig{
			Temperature: 0.2,
			Timeout:     10 * time.Minute,
		},
		Reader: ReaderConfig{
			Pdftotext: "pdftotext",
		},
		Tasks: TasksConfig{
			QueueSize:       256,
			AtomConcurrency: 1,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig loads defaults, then the YAML file named by CONFIG_FILE (if any), then environment variables.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return NewAppError("CONFIG_ERROR", "parse "+path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.MCPAddr = getEnv("MCP_ADDR", c.Server.MCPAddr)
	c.Server.UploadDir = getEnv("UPLOAD_DIR", c.Server.UploadDir)
	c.Server.SubmitRoot = getEnv("SUBMIT_ROOT", c.Server.SubmitRoot)

	c.LLM.APIURL = getEnv("LLM_API_URL", c.LLM.APIURL)
	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.SystemPrompt = getEnv("LLM_SYSTEM_PROMPT", c.LLM.SystemPrompt)

	c.Reader.Pdftotext = getEnv("PDFTOTEXT_BIN", c.Reader.Pdftotext)
	c.Reader.MaxPages = getEnvAsInt("READER_MAX_PAGES", c.Reader.MaxPages)
	c.Reader.OCR = getEnvAsBool("READER_OCR", c.Reader.OCR)
	c.Reader.Pdftoppm = getEnv("PDFTOPPM_BIN", c.Reader.Pdftoppm)
	c.Reader.Tesseract = getEnv("TESSERACT_BIN", c.Reader.Tesseract)
	c.Reader.TesseractLang = getEnv("TESSERACT_LANG", c.Reader.TesseractLang)
	c.Reader.TessdataDir = getEnv("TESSDATA_PREFIX", c.Reader.TessdataDir)
	c.Reader.DPI = getEnvAsInt("OCR_DPI", c.Reader.DPI)

	c.Tasks.Workers = getEnvAsInt("TASK_WORKERS", c.Tasks.Workers)
	c.Tasks.QueueSize = getEnvAsInt("TASK_QUEUE_SIZE", c.Tasks.QueueSize)
	c.Tasks.Timeout = getEnvAsDuration("TASK_TIMEOUT", c.Tasks.Timeout)
	c.Tasks.AtomConcurrency = getEnvAsInt("ATOM_CONCURRENCY", c.Tasks.AtomConcurrency)

	c.Archive.DSN = getEnv("ARCHIVE_DSN", c.Archive.DSN)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.LLM.APIURL == "" {
		return NewAppError("CONFIG_ERROR", "LLM_API_URL is required", ErrInvalidInput)
	}
	if c.LLM.Model == "" {
		return NewAppError("CONFIG_ERROR", "LLM_MODEL is required", ErrInvalidInput)
	}
	if c.Tasks.Workers < 0 {
		return NewAppError("CONFIG_ERROR", "TASK_WORKERS must be >= 0", ErrInvalidInput)
	}
	return nil
}
