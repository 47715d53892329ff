package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/local/screenassist/internal/capture"
	"github.com/local/screenassist/internal/errs"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// AIConfig describes the chat-completions endpoint.
type AIConfig struct {
	Token       string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	// Vision is "auto", "true" or "false". Auto asks ai.VisionCapable.
	Vision            string
	VisionInstruction string
	TextInstruction   string
}

// CaptureConfig describes what gets captured.
type CaptureConfig struct {
	Region       *capture.Region
	Display      int
	MaxDimension int
}

// OCRConfig configures the text-mode extractor.
type OCRConfig struct {
	Enabled   bool
	Languages []string
}

// HotkeyConfig holds the four global bindings.
type HotkeyConfig struct {
	Scan   string
	Toggle string
	Region string
	Quit   string
}

// ServerConfig configures the local control surface.
type ServerConfig struct {
	Addr string
}

// Config is the top-level configuration. It is read once and never mutated.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	AI      AIConfig
	Capture CaptureConfig
	OCR     OCRConfig
	Hotkeys HotkeyConfig
	Server  ServerConfig

	// Warnings collects values that were ignored in favour of defaults.
	Warnings []string
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/screenassist.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "20"), 20),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "5"), 5),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "14"), 14),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       getEnv("AXIOM_DATASET", "dev") + "_screenassist",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.AI = AIConfig{
		Token:             strings.TrimSpace(getEnv("GITHUB_TOKEN", "")),
		BaseURL:           getEnv("AI_BASE_URL", "https://models.github.ai/inference"),
		Model:             getEnv("AI_MODEL", "openai/gpt-4o"),
		Temperature:       parseFloat(getEnv("AI_TEMPERATURE", "0.3"), 0.3),
		MaxTokens:         parseInt(getEnv("AI_MAX_TOKENS", "2000"), 2000),
		Timeout:           parseDuration(getEnv("AI_TIMEOUT", "60s"), 60*time.Second),
		Vision:            strings.ToLower(getEnv("AI_VISION", "auto")),
		VisionInstruction: getEnv("AI_VISION_INSTRUCTION", ""),
		TextInstruction:   getEnv("AI_TEXT_INSTRUCTION", ""),
	}

	region, err := capture.ParseRegion(getEnv("CAPTURE_REGION", ""))
	if err != nil {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("CAPTURE_REGION ignored: %v", err))
		region = nil
	}
	cfg.Capture = CaptureConfig{
		Region:       region,
		Display:      parseInt(getEnv("CAPTURE_DISPLAY", "0"), 0),
		MaxDimension: parseInt(getEnv("CAPTURE_MAX_DIMENSION", "0"), 0),
	}

	cfg.OCR = OCRConfig{
		Enabled:   parseBool(getEnv("OCR_ENABLED", "true")),
		Languages: parseList(getEnv("OCR_LANGUAGES", "eng,vie")),
	}

	cfg.Hotkeys = HotkeyConfig{
		Scan:   getEnv("HOTKEY_SCAN", "<ctrl>+<shift>+s"),
		Toggle: getEnv("HOTKEY_TOGGLE", "<ctrl>+<shift>+h"),
		Region: getEnv("HOTKEY_REGION", "<ctrl>+<shift>+r"),
		Quit:   getEnv("HOTKEY_QUIT", "<ctrl>+<shift>+q"),
	}

	cfg.Server = ServerConfig{
		Addr: os.Getenv("CONTROL_ADDR"),
	}
	if _, set := os.LookupEnv("CONTROL_ADDR"); !set {
		cfg.Server.Addr = "127.0.0.1:8765"
	}

	return cfg
}

// UseVision resolves AI.Vision against the model name.
func (c Config) UseVision(capable func(model string) bool) bool {
	switch c.AI.Vision {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return capable(c.AI.Model)
}

// TextOnly reports whether auto-mode runs must send OCR text. A model that
// cannot read images while OCR is disabled leaves no usable mode.
func (c Config) TextOnly(capable func(model string) bool) (bool, error) {
	textOnly := !c.UseVision(capable)
	if textOnly && !c.OCR.Enabled {
		return true, errs.Newf(errs.Configuration, "config",
			"model %s cannot read images and OCR is disabled; set AI_VISION=true or OCR_ENABLED=true", c.AI.Model)
	}
	return textOnly, nil
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	// bare numbers are seconds
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return time.Duration(f * float64(time.Second))
	}
	return def
}

func parseList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '+' || r == ' ' })
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "" || env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
