package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mhpenta/converse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"CONVERSE_PROVIDER", "CONVERSE_MODEL", "CONVERSE_IMAGE_MODEL", "CONVERSE_ENDPOINT",
	"CONVERSE_API_KEY", "CONVERSE_SYSTEM_PROMPT", "CONVERSE_TIMEOUT", "AWS_REGION", "GEMINI_API_KEY",
}

// clearEnv unsets the variables Load reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Chdir(t.TempDir())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(name, []byte(content), 0o600))
	abs, err := filepath.Abs(name)
	require.NoError(t, err)
	return abs
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 120*time.Second, cfg.Timeout())
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)

	writeFile(t, ".env", "CONVERSE_MODEL=anthropic.claude-3-haiku-20240307-v1:0\nAWS_REGION=eu-west-1\n")
	path := writeFile(t, "chat.toml", `
provider = "bedrock"
model = "anthropic.claude-v2"
system_prompt = "Answer in French."
temperature = 0.25
timeout_seconds = 30
attach_every_turn = true
`)
	t.Setenv("CONVERSE_TIMEOUT", "45")

	cfg, err := Load(path)
	require.NoError(t, err)

	// .env values land in the environment, which overrides the file.
	assert.Equal(t, string(converse.ModelClaude3Haiku), cfg.Model)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "Answer in French.", cfg.SystemPrompt)
	assert.Equal(t, 45*time.Second, cfg.Timeout())
	assert.True(t, cfg.AttachEveryTurn)
	require.NotNil(t, cfg.Temperature)
	assert.Equal(t, float32(0.25), *cfg.Temperature)

	inv := cfg.InvocationConfig()
	assert.Equal(t, converse.ModelClaude3Haiku, inv.Model)
	assert.Equal(t, "Answer in French.", inv.SystemInstruction)
	assert.NoError(t, inv.Validate())
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	bad := writeFile(t, "bad.toml", `modle = "typo"`)
	_, err = Load(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "modle")

	invalid := writeFile(t, "invalid.toml", `
provider = "carrier-pigeon"
max_output_tokens = 0
temperature = 1.5
`)
	_, err = Load(invalid)
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 3)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"http endpoint needs a URL", func(c *Config) { c.Provider = "http-endpoint" }, "endpoint"},
		{"http endpoint with URL", func(c *Config) { c.Provider = "http-endpoint"; c.Endpoint = "http://localhost:8080" }, ""},
		{"empty model", func(c *Config) { c.Model = " " }, "model"},
		{"top_p out of range", func(c *Config) { c.TopP = converse.Float32(-0.1) }, "top_p"},
		{"negative timeout", func(c *Config) { c.TimeoutSeconds = -1 }, "timeout_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestProviderConfig(t *testing.T) {
	cfg := Default()
	cfg.Provider = string(converse.ProviderGeminiAPI)
	cfg.APIKey = "generic"
	cfg.GeminiAPIKey = "gemini"

	pc := cfg.ProviderConfig()
	assert.Equal(t, converse.ProviderGeminiAPI, pc.Provider)
	assert.Equal(t, "gemini", pc.APIKey)

	cfg.Provider = string(converse.ProviderBedrock)
	assert.Equal(t, "generic", cfg.ProviderConfig().APIKey)
}

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags([]string{"-config", "chat.toml", "-image", "chart.png", "-logPath", "chat.log", "-dev"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, &Flags{ConfigPath: "chat.toml", ImagePath: "chart.png", LogPath: "chat.log", Dev: true}, f)

	_, err = ParseFlags([]string{"-nope"}, &bytes.Buffer{})
	assert.Error(t, err)
}
