package config_test

import (
	"testing"

	"github.com/CodexForgeBR/tandem/internal/config"
	"github.com/CodexForgeBR/tandem/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfigValues(t *testing.T) {
	cfg := config.NewDefaultConfig()
	require.NotNil(t, cfg)

	// Model endpoints.
	assert.Equal(t, model.Ollama, cfg.ExecutorBackend)
	assert.Equal(t, model.DefaultExecutorModel, cfg.ExecutorModel)
	assert.Equal(t, model.DefaultSupervisorModel, cfg.SupervisorModel)
	assert.Empty(t, cfg.SupervisorBackend)
	assert.Empty(t, cfg.ExecutorBaseURL)
	assert.Empty(t, cfg.APIKey)

	// Request tuning.
	assert.Zero(t, cfg.NumCtx)
	assert.Equal(t, 300, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)

	// Loop limits.
	assert.Positive(t, cfg.MaxToolSteps)
	assert.Positive(t, cfg.MaxCorrectiveSteps)
	assert.Positive(t, cfg.MaxRepairRounds)

	// Watchdog.
	assert.Positive(t, cfg.IdleThreshold)
	assert.Positive(t, cfg.MaxIdleReactivations)
	assert.Positive(t, cfg.PauseAutoResume)

	// Capabilities.
	assert.False(t, cfg.Autonomous)
	assert.Equal(t, "python3", cfg.Python)
	assert.Equal(t, "logs", cfg.AuditDir)
	assert.Equal(t, "notes/startup.md", cfg.StartupNotes)

	// CLI-only flags default to zero values.
	assert.Equal(t, ".", cfg.WorkDir)
	assert.Empty(t, cfg.ConfigFile)
	assert.Empty(t, cfg.Prompt)
	assert.False(t, cfg.Resume)
	assert.False(t, cfg.ResumeForce)
	assert.False(t, cfg.Clean)
	assert.False(t, cfg.ColdStart)
	assert.False(t, cfg.Status)
	assert.False(t, cfg.Cancel)
}

func TestWhitelistedVarsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, v := range config.WhitelistedVars {
		assert.NotEmpty(t, v)
		assert.False(t, seen[v], "duplicate whitelisted var %s", v)
		seen[v] = true
	}
}

func TestEveryWhitelistedVarIsApplied(t *testing.T) {
	defaults := config.NewDefaultConfig()
	for _, key := range config.WhitelistedVars {
		t.Run(key, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			config.ApplyMapToConfig(cfg, map[string]string{key: "7"})
			if *cfg == *defaults {
				// Bool fields only change on truthy values.
				config.ApplyMapToConfig(cfg, map[string]string{key: "true"})
			}
			assert.NotEqual(t, *defaults, *cfg, "key %s did not change the config", key)
		})
	}
}
