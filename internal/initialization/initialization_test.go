package initialization

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"evalbot/internal/config"
	"evalbot/internal/logger"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body = "data_dir = \"" + filepath.ToSlash(filepath.Join(dir, "data")) + "\"\n" + body
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	t.Cleanup(logger.CloseLogFile)
	return path
}

func testConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	cfg, err := LoadConfig(writeConfig(t, body))
	require.NoError(t, err)
	cfg.Evaluation.CachePath = filepath.Join(t.TempDir(), "answers.db")
	cfg.Agent.SystemPromptPath = filepath.Join(t.TempDir(), "missing-prompt.txt")
	return cfg
}

func TestLoadConfigFillsSpaceIDFromEnv(t *testing.T) {
	t.Setenv("SPACE_ID", "ada/agent")
	cfg := testConfig(t, "")
	require.Equal(t, "ada/agent", cfg.Evaluation.SpaceID)

	_, err := os.Stat(filepath.Join(cfg.DataDir, "error.log"))
	require.NoError(t, err)
}

func TestInitializeWithoutRetriever(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg := testConfig(t, `
[agent]
provider = "openai"
tools = ["multiply", "add"]

[retriever]
disabled = true
`)

	app, err := Initialize(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	status := app.Agent.Status()
	require.Equal(t, false, status["retrieval"])
	require.Equal(t, []string{"add", "multiply"}, status["availableTools"])
	require.Equal(t, "openai/gpt-4o", status["model"])
	require.NotNil(t, app.Cache)
	require.False(t, app.Announcer.Enabled())

	runner := app.Runner("")
	require.NotNil(t, runner)
}

func TestInitializeRejectsUnknownTool(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg := testConfig(t, `
[agent]
provider = "openai"
tools = ["multiply", "teleport"]

[retriever]
disabled = true
`)

	_, err := Initialize(context.Background(), cfg)
	require.ErrorContains(t, err, "teleport")
}

func TestInitializeNeedsProviderKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	cfg := testConfig(t, "[retriever]\ndisabled = true\n")

	_, err := Initialize(context.Background(), cfg)
	require.ErrorContains(t, err, "GROQ_API_KEY")
}

func TestOpenRetrieverNeedsEmbeddingKey(t *testing.T) {
	t.Setenv("EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	cfg := testConfig(t, "")

	_, err := OpenRetriever(cfg)
	require.ErrorContains(t, err, "EMBEDDING_API_KEY")
}

func TestOpenRetrieverCreatesStore(t *testing.T) {
	t.Setenv("EMBEDDING_API_KEY", "emb")
	cfg := testConfig(t, "")
	cfg.Retriever.DBPath = filepath.Join(t.TempDir(), "corpus", "exemplars.db")

	r, err := OpenRetriever(cfg)
	require.NoError(t, err)
	defer r.Store().Close()

	count, err := r.Store().Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
}
