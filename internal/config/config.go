// Package config loads settings for the converse-chat binary.
//
// Precedence, lowest first: built-in defaults, a .env file in the working
// directory, the TOML file named by -config, then environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/mhpenta/converse"
)

// Config holds the chat client settings.
type Config struct {
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	ImageModel string `toml:"image_model"`

	Region       string `toml:"region"`
	Endpoint     string `toml:"endpoint"`
	APIKey       string `toml:"api_key"`
	GeminiAPIKey string `toml:"gemini_api_key"`

	SystemPrompt    string   `toml:"system_prompt"`
	MaxOutputTokens int      `toml:"max_output_tokens"`
	Temperature     *float32 `toml:"temperature"`
	TopP            *float32 `toml:"top_p"`
	TimeoutSeconds  int      `toml:"timeout_seconds"`
	AttachEveryTurn bool     `toml:"attach_every_turn"`

	StorePath string `toml:"store_path"`
	LogPath   string `toml:"log_path"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Provider:        string(converse.ProviderBedrock),
		Model:           string(converse.ModelDefault),
		ImageModel:      string(converse.ModelDefaultImage),
		Region:          "us-east-1",
		SystemPrompt:    "You are a helpful assistant.",
		MaxOutputTokens: converse.DefaultMaxOutputTokens,
		TimeoutSeconds:  120,
		StorePath:       "converse.bolt",
	}
}

// Load builds a Config from defaults, .env, the TOML file at path (if
// non-empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	if path != "" {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads path into the environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadTOML decodes the file at path over cfg.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnvOverrides applies CONVERSE_* and provider credential variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CONVERSE_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("CONVERSE_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("CONVERSE_IMAGE_MODEL"); v != "" {
		c.ImageModel = v
	}
	if v := os.Getenv("CONVERSE_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("CONVERSE_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("CONVERSE_SYSTEM_PROMPT"); v != "" {
		c.SystemPrompt = v
	}
	if v := os.Getenv("CONVERSE_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.TimeoutSeconds = secs
		}
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.Region = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.GeminiAPIKey = v
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs ValidateErrors

	switch converse.Provider(c.Provider) {
	case converse.ProviderBedrock, converse.ProviderGeminiAPI:
	case converse.ProviderHTTPEndpoint:
		if c.Endpoint == "" {
			errs = append(errs, ValidationError{Field: "endpoint", Message: "required for the http-endpoint provider"})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "provider",
			Message: fmt.Sprintf("invalid provider '%s', must be one of: bedrock, http-endpoint, gemini", c.Provider),
		})
	}

	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, ValidationError{Field: "model", Message: "must not be empty"})
	}
	if c.MaxOutputTokens <= 0 {
		errs = append(errs, ValidationError{Field: "max_output_tokens", Message: "must be positive"})
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 1) {
		errs = append(errs, ValidationError{Field: "temperature", Message: "must be between 0 and 1"})
	}
	if c.TopP != nil && (*c.TopP < 0 || *c.TopP > 1) {
		errs = append(errs, ValidationError{Field: "top_p", Message: "must be between 0 and 1"})
	}
	if c.TimeoutSeconds < 0 {
		errs = append(errs, ValidationError{Field: "timeout_seconds", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Timeout is the per-call deadline.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// InvocationConfig returns the per-call settings for the chat model.
func (c *Config) InvocationConfig() *converse.InvocationConfig {
	return &converse.InvocationConfig{
		Model:             converse.Model(c.Model),
		MaxOutputTokens:   c.MaxOutputTokens,
		Temperature:       c.Temperature,
		TopP:              c.TopP,
		SystemInstruction: c.SystemPrompt,
		Timeout:           c.Timeout(),
	}
}

// ProviderConfig returns the credentials for the configured provider.
func (c *Config) ProviderConfig() *converse.ProviderConfig {
	pc := &converse.ProviderConfig{
		Provider: converse.Provider(c.Provider),
		Region:   c.Region,
		BaseURL:  c.Endpoint,
		APIKey:   c.APIKey,
	}
	if pc.Provider == converse.ProviderGeminiAPI && c.GeminiAPIKey != "" {
		pc.APIKey = c.GeminiAPIKey
	}
	return pc
}

// Flags are the command line options of converse-chat.
type Flags struct {
	ConfigPath string
	ImagePath  string
	LogPath    string
	Dev        bool
}

// ParseFlags parses args (without the program name).
func ParseFlags(args []string, output io.Writer) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("converse-chat", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&f.ConfigPath, "config", "", "path to a TOML config file")
	fs.StringVar(&f.ImagePath, "image", "", "image to attach to the first message")
	fs.StringVar(&f.LogPath, "logPath", "", "write JSON logs to this file")
	fs.BoolVar(&f.Dev, "dev", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}
