package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// LLM contains the text completion connection settings.
type LLM struct {
	// Provider selects the completion backend: "openrouter" (any
	// OpenAI-compatible endpoint) or "gemini".
	Provider        string  `toml:"provider"`
	APIKey          string  `toml:"api_key"`
	BaseURL         string  `toml:"base_url"`
	Model           string  `toml:"model"`
	Referer         string  `toml:"referer"`
	Title           string  `toml:"title"`
	Temperature     float64 `toml:"temperature"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
	CacheTTLSeconds int     `toml:"cache_ttl_seconds"`
}

// Storyboard contains generation defaults applied when a request leaves
// them unset.
type Storyboard struct {
	MaxRepairPasses       int      `toml:"max_repair_passes"`
	AttemptTimeoutSeconds int      `toml:"attempt_timeout_seconds"`
	FocalPoints           []string `toml:"focal_points"`
	AnimationStyle        string   `toml:"animation_style"`
	Setting               string   `toml:"setting"`
}

// Server contains HTTP API settings.
type Server struct {
	Bind     string `toml:"bind"`
	APIToken string `toml:"api_token"`
}

// Batch contains settings for concurrent multi-transcript runs.
type Batch struct {
	Concurrency       int `toml:"concurrency"`
	RequestsPerMinute int `toml:"requests_per_minute"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for storyboarder.
//
// Configuration sections by subsystem:
//   - Paths: job database and log locations
//   - LLM: completion provider credentials and transport limits
//   - Storyboard: repair budget, attempt deadline, creative defaults
//   - Server: HTTP API bind address and token
//   - Batch: parallelism and request pacing
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	LLM        LLM        `toml:"llm"`
	Storyboard Storyboard `toml:"storyboard"`
	Server     Server     `toml:"server"`
	Batch      Batch      `toml:"batch"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("storyboarder.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the job database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// LockPath returns the single-instance server lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "storyboarder.lock")
}

// AttemptTimeout returns the per-attempt completion deadline. Zero disables it.
func (c *Config) AttemptTimeout() time.Duration {
	if c.Storyboard.AttemptTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Storyboard.AttemptTimeoutSeconds) * time.Second
}

// CacheTTL returns how long successful completions are memoised. Zero disables caching.
func (c *Config) CacheTTL() time.Duration {
	if c.LLM.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.LLM.CacheTTLSeconds) * time.Second
}

// RequireLLM reports whether completion credentials are present. Planning
// works offline; generation commands call this before building a client.
func (c *Config) RequireLLM() error {
	if strings.TrimSpace(c.LLM.APIKey) != "" {
		return nil
	}
	env := "OPENROUTER_API_KEY"
	if c.LLM.Provider == ProviderGemini {
		env = "GEMINI_API_KEY"
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("llm.api_key is required. Set %s env var or edit %s (create with 'storyboarder config init')", env, defaultPath)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
