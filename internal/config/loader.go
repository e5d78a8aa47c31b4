package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// whitelistSet is a precomputed lookup table for fast whitelist membership checks.
var whitelistSet map[string]bool

func init() {
	whitelistSet = make(map[string]bool, len(WhitelistedVars))
	for _, v := range WhitelistedVars {
		whitelistSet[v] = true
	}
}

// GlobalConfigPath returns ~/.config/tandem/config.toml, or "" when the
// user config dir is unknown.
func GlobalConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tandem", "config.toml")
}

// ProjectConfigPath returns the env-file config inside workDir.
func ProjectConfigPath(workDir string) string {
	return filepath.Join(workDir, ".tandem", "config")
}

// LoadDotEnv loads workDir/.env into the process environment. A missing
// file is not an error; variables already set are kept.
func LoadDotEnv(workDir string) error {
	err := godotenv.Load(filepath.Join(workDir, ".env"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// LoadFile parses a config file. Files ending in .toml are read as TOML;
// anything else is a KEY=VALUE env-file (comments, quotes and "export"
// prefixes allowed).
//
// Keys not present in WhitelistedVars are silently ignored.
func LoadFile(path string) (map[string]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return LoadTOML(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	raw, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return filterWhitelisted(raw), nil
}

// LoadTOML reads a TOML config. Keys are matched case-insensitively and
// tables are flattened with "_", so
//
//	[executor]
//	model = "qwen3:14b"
//
// sets EXECUTOR_MODEL.
func LoadTOML(path string) (map[string]string, error) {
	var doc map[string]any
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("decode toml config: %w", err)
	}
	raw := make(map[string]string)
	flattenTOML("", doc, raw)
	return filterWhitelisted(raw), nil
}

func flattenTOML(prefix string, doc map[string]any, out map[string]string) {
	for k, v := range doc {
		key := strings.ToUpper(strings.ReplaceAll(k, "-", "_"))
		if prefix != "" {
			key = prefix + "_" + key
		}
		switch t := v.(type) {
		case map[string]any:
			flattenTOML(key, t, out)
		default:
			out[key] = fmt.Sprint(t)
		}
	}
}

func filterWhitelisted(raw map[string]string) map[string]string {
	result := make(map[string]string)
	for key, value := range raw {
		key = strings.TrimSpace(key)
		if whitelistSet[key] {
			result[key] = strings.TrimSpace(value)
		}
	}
	return result
}

// LoadEnv returns the whitelisted variables set in the process environment
// with EnvPrefix.
func LoadEnv() map[string]string {
	result := make(map[string]string)
	for _, key := range WhitelistedVars {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			result[key] = strings.TrimSpace(v)
		}
	}
	return result
}

// LoadWithPrecedence assembles a Config by merging sources in order of
// increasing priority:
//
//  1. Built-in defaults
//  2. Global config file (globalPath)
//  3. Project config file (projectPath)
//  4. Explicit config file (explicitPath)
//  5. TANDEM_* environment variables
//  6. CLI overrides (cliOverrides map)
//
// Any path that is empty is silently skipped. Missing global and project
// files are skipped too; an explicit file must exist.
func LoadWithPrecedence(globalPath, projectPath, explicitPath string, cliOverrides map[string]string) (*Config, error) {
	cfg := NewDefaultConfig()

	if globalPath != "" {
		m, err := LoadFile(globalPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("global config: %w", err)
			}
		} else {
			ApplyMapToConfig(cfg, m)
		}
	}

	if projectPath != "" {
		m, err := LoadFile(projectPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("project config: %w", err)
			}
		} else {
			ApplyMapToConfig(cfg, m)
		}
	}

	if explicitPath != "" {
		m, err := LoadFile(explicitPath)
		if err != nil {
			return nil, fmt.Errorf("explicit config: %w", err)
		}
		ApplyMapToConfig(cfg, m)
	}

	ApplyMapToConfig(cfg, LoadEnv())

	if len(cliOverrides) > 0 {
		ApplyMapToConfig(cfg, cliOverrides)
	}

	return cfg, nil
}

// ApplyMapToConfig sets fields on cfg from the key-value pairs in m.
// Keys must use the WhitelistedVars naming convention (e.g., "EXECUTOR_MODEL").
// Unknown keys are silently ignored. Integer fields that fail to parse
// are silently ignored (the previous value is preserved).
func ApplyMapToConfig(cfg *Config, m map[string]string) {
	ints := map[string]*int{
		"NUM_CTX":                     &cfg.NumCtx,
		"REQUEST_TIMEOUT":             &cfg.RequestTimeout,
		"MAX_RETRIES":                 &cfg.MaxRetries,
		"MAX_TOOL_STEPS":              &cfg.MaxToolSteps,
		"MAX_CORRECTIVE_STEPS":        &cfg.MaxCorrectiveSteps,
		"MAX_REPAIR_ROUNDS":           &cfg.MaxRepairRounds,
		"IDLE_THRESHOLD":              &cfg.IdleThreshold,
		"MAX_IDLE_REACTIVATIONS":      &cfg.MaxIdleReactivations,
		"PAUSE_AUTO_RESUME":           &cfg.PauseAutoResume,
		"ADMISSION_WAIT_MS":           &cfg.AdmissionWaitMS,
		"SUPERVISOR_MIN_FREE_VRAM_MB": &cfg.SupervisorMinFreeVRAMMB,
	}
	bools := map[string]*bool{
		"AUTONOMOUS": &cfg.Autonomous,
		"JOURNAL":    &cfg.Journal,
		"VERBOSE":    &cfg.Verbose,
		"TUI":        &cfg.TUI,
	}
	strs := map[string]*string{
		"EXECUTOR_BACKEND":    &cfg.ExecutorBackend,
		"EXECUTOR_MODEL":      &cfg.ExecutorModel,
		"EXECUTOR_BASE_URL":   &cfg.ExecutorBaseURL,
		"SUPERVISOR_BACKEND":  &cfg.SupervisorBackend,
		"SUPERVISOR_MODEL":    &cfg.SupervisorModel,
		"SUPERVISOR_BASE_URL": &cfg.SupervisorBaseURL,
		"API_KEY":             &cfg.APIKey,
		"SHELL_POLICY_FILE":   &cfg.ShellPolicyFile,
		"PYTHON":              &cfg.Python,
		"NOTIFY_COMMAND":      &cfg.NotifyCommand,
		"AUDIT_DIR":           &cfg.AuditDir,
		"STARTUP_NOTES":       &cfg.StartupNotes,
	}

	for key, value := range m {
		if p, ok := strs[key]; ok {
			*p = value
			continue
		}
		if p, ok := ints[key]; ok {
			if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				*p = v
			}
			continue
		}
		if p, ok := bools[key]; ok {
			*p = parseBool(value)
		}
	}
}

// parseBool interprets common boolean representations.
// "true", "1", "yes" (case-insensitive) return true; everything else returns false.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
