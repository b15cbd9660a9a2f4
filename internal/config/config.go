// Package config implements the process-wide settings value described in
// the Config component: a precedence-based string map plus an immutable
// log level and a set of derived filesystem paths.
package config

import (
	"os"
	"path/filepath"
	"strings"

	m3errors "github.com/m3-mcp/m3/internal/errors"
)

// RequiredEnvVar describes one env var a Tool needs, with an optional
// default value. An empty Default with Required=true means there is no
// fallback and GetRequired (and so ValidateForTools) errors if the key is
// unset everywhere.
type RequiredEnvVar struct {
	Key      string
	Default  string
	Required bool
}

// ToolRequirements is the subset of the Tool contract Config needs to
// validate env vars: a name (used to build the TOOLNAME_KEY prefix) and its
// required env vars.
type ToolRequirements interface {
	Name() string
	RequiredEnvVars() []RequiredEnvVar
}

// Config is an immutable-by-convention value: the one method that would
// "change" it (Merge) mutates the EnvVars map in place and returns only an
// error (merge is idempotent for identical values, an error for
// conflicting ones); callers that want builder-style chaining should
// construct a new Config via New and Merge into it before sharing it.
type Config struct {
	LogLevel string
	EnvVars  map[string]string

	ProjectRoot   string
	DataDir       string
	DatabasesDir  string
	RawFilesDir   string
}

// New constructs a Config, deriving project_root/data_dir/databases_dir/
// raw_files_dir per §3. logLevel must be one of DEBUG/INFO/WARNING/ERROR/
// CRITICAL (case-insensitive); envVars may be nil.
func New(logLevel string, envVars map[string]string) (*Config, error) {
	if envVars == nil {
		envVars = map[string]string{}
	}
	c := &Config{LogLevel: strings.ToUpper(logLevel), EnvVars: envVars}
	if err := validateLogLevel(c.LogLevel); err != nil {
		return nil, err
	}
	c.setPaths()
	return c, nil
}

func validateLogLevel(level string) error {
	switch level {
	case "DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL":
		return nil
	default:
		return m3errors.Config("invalid log level %q: must be one of DEBUG, INFO, WARNING, ERROR, CRITICAL", level)
	}
}

func (c *Config) setPaths() {
	c.ProjectRoot = c.projectRoot()
	c.DataDir = c.dataDir()
	c.DatabasesDir = filepath.Join(c.DataDir, "databases")
	c.RawFilesDir = filepath.Join(c.DataDir, "raw_files")
}

func (c *Config) projectRoot() string {
	wd, err := os.Getwd()
	if err == nil {
		if _, statErr := os.Stat(filepath.Join(wd, "go.mod")); statErr == nil {
			return wd
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func (c *Config) dataDir() string {
	if v := c.Get("M3_DATA_DIR", "", false); v != "" {
		return v
	}
	return filepath.Join(c.ProjectRoot, "m3_data")
}

// Get resolves key by precedence: explicit in-map value > process
// environment > caller-supplied default. Get never fails: a key unset
// everywhere with no default yields "" whether or not required is set;
// GetRequired is the variant that returns an error in that case.
func (c *Config) Get(key, defaultValue string, required bool) string {
	if v, ok := c.EnvVars[key]; ok {
		return v
	}
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	if required && defaultValue == "" {
		return ""
	}
	return defaultValue
}

// GetRequired behaves like Get but returns a Config error if the key is
// unset everywhere and has no default.
func (c *Config) GetRequired(key, defaultValue string) (string, error) {
	if v, ok := c.EnvVars[key]; ok {
		return v, nil
	}
	if v, ok := os.LookupEnv(key); ok {
		return v, nil
	}
	if defaultValue != "" {
		return defaultValue, nil
	}
	return "", m3errors.Config("missing required env var: %s", key)
}

// ValidateForTools collects each tool's required keys, checking each first
// under a TOOLNAME_KEY prefix then unprefixed (first hit wins), aggregating
// every failure into one MultiValidationError before returning.
func (c *Config) ValidateForTools(tools []ToolRequirements) error {
	var agg m3errors.MultiValidationError
	for _, tool := range tools {
		prefix := strings.ToUpper(tool.Name()) + "_"
		for _, req := range tool.RequiredEnvVars() {
			prefixedKey := prefix + req.Key
			key := req.Key
			if _, ok := c.EnvVars[prefixedKey]; ok {
				key = prefixedKey
			} else if _, ok := os.LookupEnv(prefixedKey); ok {
				key = prefixedKey
			}
			if req.Required && req.Default == "" {
				if _, err := c.GetRequired(key, ""); err != nil {
					agg.Add("Config validation failed for tool '%s': %v", tool.Name(), err)
				}
			}
		}
	}
	return agg.AsError()
}

// Merge adds new keys from other, prefixing each with prefix. It is an
// error to merge a key with a value different from one already set;
// merging the same value is idempotent.
func (c *Config) Merge(other map[string]string, prefix string) error {
	for key, value := range other {
		prefixedKey := key
		if prefix != "" {
			prefixedKey = prefix + key
		}
		if existing, ok := c.EnvVars[prefixedKey]; ok && existing != value {
			return m3errors.Config("env conflict: %s (%s vs %s)", prefixedKey, existing, value)
		}
		c.EnvVars[prefixedKey] = value
	}
	return nil
}

// ToDict returns the serializable form of Config, matching the persisted
// pipeline file's {"log_level":..., "env_vars":{...}} shape.
func (c *Config) ToDict() map[string]any {
	envCopy := make(map[string]string, len(c.EnvVars))
	for k, v := range c.EnvVars {
		envCopy[k] = v
	}
	return map[string]any{
		"log_level": c.LogLevel,
		"env_vars":  envCopy,
	}
}

// FromDict reconstructs a Config from its serialized form.
func FromDict(data map[string]any) (*Config, error) {
	logLevel, _ := data["log_level"].(string)
	envVars := map[string]string{}
	if raw, ok := data["env_vars"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				envVars[k] = s
			}
		}
	} else if raw, ok := data["env_vars"].(map[string]string); ok {
		for k, v := range raw {
			envVars[k] = v
		}
	}
	return New(logLevel, envVars)
}

// DatasetDataDir resolves the per-dataset raw/database directory override
// supplemented from the original implementation's
// get_default_database_path/get_dataset_raw_files_path: M3_<DATASET>_DATA_DIR
// takes precedence over the derived default.
func (c *Config) DatasetDataDir(dataset string) string {
	envKey := "M3_" + strings.ToUpper(dataset) + "_DATA_DIR"
	if v := c.Get(envKey, "", false); v != "" {
		return v
	}
	return filepath.Join(c.DatabasesDir, dataset)
}

// DatasetRawFilesDir resolves the per-dataset raw-files directory override.
func (c *Config) DatasetRawFilesDir(dataset string) string {
	envKey := "M3_" + strings.ToUpper(dataset) + "_RAW_DIR"
	if v := c.Get(envKey, "", false); v != "" {
		return v
	}
	return filepath.Join(c.RawFilesDir, strings.ToLower(dataset))
}

// DatasetParquetRoot resolves the per-dataset Parquet root override, the
// destination Convert writes into and Register reads views from.
func (c *Config) DatasetParquetRoot(dataset string) string {
	envKey := "M3_" + strings.ToUpper(dataset) + "_PARQUET_DIR"
	if v := c.Get(envKey, "", false); v != "" {
		return v
	}
	return filepath.Join(c.DataDir, "parquet", strings.ToLower(dataset))
}
