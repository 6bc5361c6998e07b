package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Default values.
const (
	DefaultHashBlockSize    = 64 * 1024
	MaxHashBlockSize        = 16 * 1024 * 1024
	DefaultQuarantinePrefix = "duplicates-"
)

// Config holds application configuration.
type Config struct {
	// BaseDir is the directory the config was loaded from (~/.dupsweep in production).
	// Plan files default to BaseDir/plans. Not read from JSON.
	BaseDir string `json:"-"`

	// HashBlockSize is the read buffer size used while hashing file contents.
	HashBlockSize int `json:"hash_block_size"`

	// MinSize ignores files smaller than this many bytes. 0 includes empty files.
	MinSize int64 `json:"min_size,omitempty"`

	// ExcludePatterns are doublestar globs matched against slash-separated paths
	// relative to the scan root. A matching directory is not descended into.
	ExcludePatterns []string `json:"exclude_patterns,omitempty"`

	// QuarantinePrefix names the default quarantine directory:
	// <source_root>/<prefix><YYYYmmdd_HHMMSS>.
	QuarantinePrefix string `json:"quarantine_prefix,omitempty"`

	// UseHashCache reuses digests recorded in the database for files whose
	// path, size and modification time are unchanged since they were hashed.
	UseHashCache bool `json:"use_hash_cache,omitempty"`

	// AllowedPaths is an allowlist of directories for plan files.
	// Paths outside BaseDir/plans require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for plan files.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of type names to disable entirely.
	// Known types: "dupes".
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		HashBlockSize:    DefaultHashBlockSize,
		QuarantinePrefix: DefaultQuarantinePrefix,
		ExcludePatterns:  []string{DefaultQuarantinePrefix + "*/**"},
	}
}

// PlansDir returns the default plan directory (BaseDir/plans), or "" if BaseDir is unset.
func (c *Config) PlansDir() string {
	if c == nil || c.BaseDir == "" {
		return ""
	}
	return filepath.Join(c.BaseDir, "plans")
}

// Validate checks values that cannot be repaired by falling back to defaults.
func (c *Config) Validate() error {
	if c.HashBlockSize <= 0 || c.HashBlockSize > MaxHashBlockSize {
		return fmt.Errorf("hash_block_size must be between 1 and %d, got %d", MaxHashBlockSize, c.HashBlockSize)
	}
	if c.MinSize < 0 {
		return fmt.Errorf("min_size must be non-negative, got %d", c.MinSize)
	}
	if strings.ContainsAny(c.QuarantinePrefix, `/\`) {
		return fmt.Errorf("quarantine_prefix must not contain path separators: %q", c.QuarantinePrefix)
	}
	return nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.dupsweep.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	cfg.BaseDir = baseDir
	return cfg, nil
}

// LoadWithRepo loads configuration from both global (~/.dupsweep) and repo (.dupsweep) directories.
// Repo config is found by walking upward from startDir to find the nearest .dupsweep/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repoConfigPath := FindRepoConfig(startDir)
	repo, err := loadFileRaw(repoConfigPath)
	if err != nil {
		return nil, err
	}

	cfg := Merge(Merge(DefaultConfig(), global), repo)
	cfg.BaseDir = globalDir
	return cfg, nil
}

// FindRepoConfig walks upward from startDir to find the nearest .dupsweep/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".dupsweep", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configPath, err)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.BaseDir = overlay.BaseDir
	if result.BaseDir == "" {
		result.BaseDir = base.BaseDir
	}

	result.HashBlockSize = overlay.HashBlockSize
	if result.HashBlockSize == 0 {
		result.HashBlockSize = base.HashBlockSize
	}

	result.MinSize = overlay.MinSize
	if result.MinSize == 0 {
		result.MinSize = base.MinSize
	}

	result.QuarantinePrefix = overlay.QuarantinePrefix
	if result.QuarantinePrefix == "" {
		result.QuarantinePrefix = base.QuarantinePrefix
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths
	result.UseHashCache = base.UseHashCache || overlay.UseHashCache

	result.ExcludePatterns = mergeStringSlice(base.ExcludePatterns, overlay.ExcludePatterns)
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
