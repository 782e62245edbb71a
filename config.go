package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// MigrationConfig holds the full TOML-driven migration configuration.
type MigrationConfig struct {
	Source             SourceConfig `toml:"source"`
	Target             TargetConfig `toml:"target"`
	Schemas            []string     `toml:"schemas"`
	TablesFile         string       `toml:"tables_file"`
	TranslationsFile   string       `toml:"translations_file"`
	CustomizationsFile string       `toml:"customizations_file"`
	NormalizationsFile string       `toml:"normalizations_file"`
	ViewErrorReport    string       `toml:"view_error_report"`
	BatchSize          int          `toml:"batch_size"`
	SampleSize         int          `toml:"sample_size"`
	Validate           bool         `toml:"validate"`
	Hooks              HooksConfig  `toml:"hooks"`

	// configDir is the directory containing the TOML file, used to resolve
	// relative file paths.
	configDir string
}

// SourceConfig identifies the MSSQL source connection.
type SourceConfig struct {
	DSN string `toml:"dsn"`
}

// TargetConfig identifies the PostgreSQL target connection.
type TargetConfig struct {
	DSN string `toml:"dsn"`
}

// HooksConfig lists SQL script files run between phases. Scripts are
// tracked in migration_history and skipped when already applied.
type HooksConfig struct {
	AfterData         []string `toml:"after_data"`
	BeforeConstraints []string `toml:"before_constraints"`
	AfterAll          []string `toml:"after_all"`
}

// loadConfig reads a TOML config file and returns a MigrationConfig with
// defaults applied.
func loadConfig(path string) (*MigrationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := MigrationConfig{
		ViewErrorReport: "view_errors.json",
		BatchSize:       1000,
		SampleSize:      10,
		Validate:        true,
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	if cfg.Source.DSN == "" {
		return nil, fmt.Errorf("source.dsn is required")
	}
	if cfg.Target.DSN == "" {
		return nil, fmt.Errorf("target.dsn is required")
	}
	if len(cfg.Schemas) == 0 {
		return nil, fmt.Errorf("schemas must list at least one source schema")
	}
	for _, s := range cfg.Schemas {
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("schemas must not contain empty entries")
		}
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch_size must be positive")
	}
	if cfg.SampleSize < 0 {
		return nil, fmt.Errorf("sample_size must not be negative")
	}

	return &cfg, nil
}

// resolvePath resolves a path relative to the config file directory.
func (c *MigrationConfig) resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}

// loadTranslationDict reads the JSON translation dictionary: a flat object
// mapping bare identifiers (table names or underscore-delimited column
// fragments) to their translated form. An empty path yields an empty
// dictionary, which puts the translator in no-op mode.
func loadTranslationDict(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read translations: %w", err)
	}
	dict := make(map[string]string)
	if err := json.Unmarshal(data, &dict); err != nil {
		return nil, fmt.Errorf("parse translations %s: %w", path, err)
	}
	return dict, nil
}

// loadTablesFile reads an optional list of tables to migrate, one
// schema.TableName per line. Blank lines are skipped.
func loadTablesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read tables file: %w", err)
	}
	defer f.Close()

	var tables []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.Contains(line, ".") {
			return nil, fmt.Errorf("invalid table reference %q: expected schema.table", line)
		}
		tables = append(tables, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tables file: %w", err)
	}
	return tables, nil
}
