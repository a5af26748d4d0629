package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and template location configuration.
type Paths struct {
	SourceDir     string `toml:"source_dir"`
	TargetDir     string `toml:"target_dir"`
	ITCTemplate   string `toml:"itc_template"`
	SalesTemplate string `toml:"sales_template"`
	LogDir        string `toml:"log_dir"`
	LedgerDir     string `toml:"ledger_dir"`
}

// Organizer contains folder-naming and placement behavior.
type Organizer struct {
	IncludeClientName  bool `toml:"include_client_name"`
	ClientKeyMaxLength int  `toml:"client_key_max_length"`
	MinFreeSpaceGiB    int  `toml:"min_free_space_gib"`
}

// Reports contains report generation behavior.
type Reports struct {
	RefreshConnections bool `toml:"refresh_connections"`
}

// TemplateMapping designates the sheet and cell addresses a report template
// exposes for link data. Cells maps a cell address to the field it receives.
type TemplateMapping struct {
	Sheet string            `toml:"sheet"`
	Cells map[string]string `toml:"cells"`
}

// Templates holds the cell mappings for both report templates.
type Templates struct {
	ITC   TemplateMapping `toml:"itc"`
	Sales TemplateMapping `toml:"sales"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the complete application configuration.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Organizer Organizer `toml:"organizer"`
	Reports   Reports   `toml:"reports"`
	Templates Templates `toml:"templates"`
	Logging   Logging   `toml:"logging"`
}

// LogLevelValue implements logging.LogConfig.
func (c *Config) LogLevelValue() string { return c.Logging.Level }

// LogFormatValue implements logging.LogConfig.
func (c *Config) LogFormatValue() string { return c.Logging.Format }

// LogDirValue implements logging.LogConfig.
func (c *Config) LogDirValue() string { return c.Paths.LogDir }

// DefaultConfigPath returns the conventional config location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "annualstatement", "config.toml"), nil
}

// Load reads configuration from the given path, falling back to the default
// location when path is empty. It returns the config, the resolved path, and
// whether a file was actually found; a missing file yields defaults.
func Load(path string) (*Config, string, bool, error) {
	resolved, found, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if found {
		data, readErr := os.ReadFile(resolved)
		if readErr != nil {
			return nil, resolved, true, fmt.Errorf("read config %s: %w", resolved, readErr)
		}
		if unmarshalErr := toml.Unmarshal(data, &cfg); unmarshalErr != nil {
			return nil, resolved, true, fmt.Errorf("parse config %s: %w", resolved, unmarshalErr)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, resolved, found, err
	}
	return &cfg, resolved, found, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed != "" {
		expanded, err := ExpandPath(trimmed)
		if err != nil {
			return "", false, err
		}
		if _, statErr := os.Stat(expanded); statErr != nil {
			if errors.Is(statErr, fs.ErrNotExist) {
				return expanded, false, fmt.Errorf("config file not found at %s", expanded)
			}
			return expanded, false, fmt.Errorf("stat config %s: %w", expanded, statErr)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if _, statErr := os.Stat(defaultPath); statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			return defaultPath, false, nil
		}
		return defaultPath, false, fmt.Errorf("stat config %s: %w", defaultPath, statErr)
	}
	return defaultPath, true, nil
}

// EnsureDirectories creates the directories the organizer owns. The target
// folder is created by preflight so a dry classification never mutates it.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.LedgerDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ExpandPath resolves a leading ~ against the current user's home directory.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Clean(trimmed), nil
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}
