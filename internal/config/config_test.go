package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	require.Equal(t, "groq", cfg.Agent.Provider)
	require.Equal(t, "FINAL ANSWER:", cfg.Agent.AnswerMarker)
	require.Equal(t, 10, cfg.Agent.MaxRounds)
	require.Equal(t, 1, cfg.Evaluation.Workers)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[agent]
provider = "openai"
model = "gpt-4o"
max_rounds = 4

[evaluation]
workers = 3

[retriever]
allow_missing_exemplar = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "openai", cfg.Agent.Provider)
	require.Equal(t, "gpt-4o", cfg.Agent.Model)
	require.Equal(t, 4, cfg.Agent.MaxRounds)
	require.Equal(t, 3, cfg.Evaluation.Workers)
	require.True(t, cfg.Retriever.AllowMissingExemplar)
	// untouched sections keep their defaults
	require.Equal(t, 3, cfg.Tools.ArxivMaxDocs)
	require.Equal(t, ":7860", cfg.Web.Listen)
}

func TestValidateConfigCollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.Agent.Provider = "mystery"
	cfg.Agent.MaxRounds = 0
	cfg.Web.AdminUser = "admin"
	cfg.Notify.Server = "irc.example.org"

	err := ValidateConfig(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "agent.provider")
	require.Contains(t, err.Error(), "agent.max_rounds")
	require.Contains(t, err.Error(), "web.admin_user and web.admin_passhash")
	require.Contains(t, err.Error(), "notify.server does not contain a port")
	require.Contains(t, err.Error(), "notify.channel")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Agent.Provider = "google"
	cfg.Evaluation.Username = "someone"

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "google", loaded.Agent.Provider)
	require.Equal(t, "someone", loaded.Evaluation.Username)
}
