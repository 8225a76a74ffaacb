package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, doc map[string]any) string {
	t.Helper()
	raw, err := yaml.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"webhook_secret": "s3cret",
	})

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 120*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 330*time.Second, cfg.Server.ImageRequestTimeout)
	assert.Equal(t, 5, cfg.Defaults.MaxReferences)
	assert.Equal(t, 480000, cfg.Defaults.CharBudget)
	assert.Equal(t, 2000, cfg.Defaults.BlockCharLimit)
	assert.Equal(t, 100, cfg.Defaults.BatchCeiling)
	assert.Equal(t, 5*time.Second, cfg.Defaults.PollInterval)
	assert.Equal(t, 60, cfg.Defaults.PollMaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.SystemContext.TTL)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
}

func TestLoadFileBuiltinEntryPoints(t *testing.T) {
	path := writeConfig(t, map[string]any{"webhook_secret": "s"})

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	gen, ok := cfg.EntryPoints["generate"]
	require.True(t, ok)
	assert.Equal(t, KindGenerate, gen.Kind)
	assert.True(t, gen.WriteResponseProperty)
	assert.Equal(t, DestTask, gen.Destination)
	require.NotEmpty(t, gen.Chain)
	assert.Equal(t, "moonshot/kimi-k2.5", gen.Chain[0].Model)
	require.NotNil(t, gen.Chain[0].Options.Thinking)
	assert.False(t, *gen.Chain[0].Options.Thinking)
	assert.Equal(t, 5, gen.MaxReferences, "inherits shared defaults")

	agent, ok := cfg.EntryPoints["agent"]
	require.True(t, ok)
	assert.Equal(t, 10, agent.MaxReferences)
	assert.Equal(t, 800000, agent.CharBudget)
	assert.Equal(t, PersonaKeyword, agent.PersonaStrategy)
	assert.Equal(t, DestRecord, agent.Destination)
	assert.True(t, agent.FirstRefIsPrimary)
	assert.True(t, agent.UseSystemContext)

	img, ok := cfg.EntryPoints["image"]
	require.True(t, ok)
	assert.Equal(t, KindImage, img.Kind)
	assert.Empty(t, img.Chain)
}

func TestLoadFileCustomEntryPoint(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"webhook_secret": "s",
		"entry_points": map[string]any{
			"research": map[string]any{
				"kind":             "generate",
				"max_references":   12,
				"persona_strategy": "keyword",
				"destination":      "source",
				"chain": []map[string]any{
					{"model": "moonshot/kimi-k2-turbo-preview"},
				},
			},
		},
	})

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	ep, ok := cfg.EntryPoints["research"]
	require.True(t, ok)
	assert.Equal(t, 12, ep.MaxReferences)
	assert.Equal(t, 480000, ep.CharBudget, "unset knob filled from defaults")
	assert.Equal(t, DestSource, ep.Destination)
	require.Len(t, ep.Chain, 1)
	assert.Equal(t, "moonshot/kimi-k2-turbo-preview", ep.Chain[0].Model)

	// Built-ins survive alongside custom entries.
	_, ok = cfg.EntryPoints["generate"]
	assert.True(t, ok)
}

func TestLoadFileMissingSecret(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "")
	path := writeConfig(t, map[string]any{"agent_id": "relay"})

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook_secret")
}

func TestLoadFileEnvOverrides(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "env-secret")
	t.Setenv("WORKSPACE_TOKEN", "env-token")
	t.Setenv("MOONSHOT_API_KEY", "env-moonshot")

	path := writeConfig(t, map[string]any{
		"webhook_secret": "file-secret",
		"workspace":      map[string]any{"token": "file-token"},
	})

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.WebhookSecret)
	assert.Equal(t, "env-token", cfg.Workspace.Token)
	assert.Equal(t, "env-moonshot", cfg.LLM.Providers["moonshot"].APIKey)
}

func TestLoadFileMissingFileUsesEnv(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "env-only")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.WebhookSecret)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestEntryPointValidate(t *testing.T) {
	valid := EntryPoint{Kind: KindGenerate, Chain: DefaultChain()}
	assert.NoError(t, valid.Validate())

	assert.Error(t, EntryPoint{Kind: "mystery"}.Validate())
	assert.Error(t, EntryPoint{Kind: KindGenerate}.Validate(), "generate needs a chain")
	assert.Error(t, EntryPoint{Kind: KindGenerate, Chain: DefaultChain(), PersonaStrategy: "vibes"}.Validate())
	assert.Error(t, EntryPoint{Kind: KindGenerate, Chain: DefaultChain(), Destination: "elsewhere"}.Validate())
	assert.NoError(t, EntryPoint{Kind: KindImage}.Validate(), "image needs no chain")
}

func TestLoadFileRejectsBadEntryPoint(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"webhook_secret": "s",
		"entry_points": map[string]any{
			"broken": map[string]any{"kind": "teleport"},
		},
	})

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestAnalysisChainTemperatures(t *testing.T) {
	chain := AnalysisChain()
	require.Len(t, chain, 2)
	require.NotNil(t, chain[0].Options.Temperature)
	assert.Equal(t, 1.0, *chain[0].Options.Temperature)
	require.NotNil(t, chain[1].Options.Temperature)
	assert.Equal(t, 0.7, *chain[1].Options.Temperature)
}
