package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	formchimp "github.com/goliatone/go-formchimp"
	"github.com/goliatone/go-formchimp/core"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

const (
	driverSQLite   = "sqlite3"
	driverPostgres = "postgres"

	configFileName = "formchimp.toml"
	configEnvVar   = "FORMCHIMP_CONFIG"
)

type Database struct {
	Driver             string `toml:"driver"`
	DSN                string `toml:"dsn"`
	Debug              bool   `toml:"debug"`
	PingTimeoutSeconds int    `toml:"ping_timeout_seconds"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Mailchimp struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	PageSize       int    `toml:"page_size"`
}

type Activity struct {
	Channel       string `toml:"channel"`
	RetentionDays int    `toml:"retention_days"`
	RowCap        int    `toml:"row_cap"`
	BufferSize    int    `toml:"buffer_size"`
}

type Cache struct {
	// Zero disables the form configuration cache.
	FormConfigTTLSeconds int `toml:"form_config_ttl_seconds"`
}

type FormField struct {
	Name  string `toml:"name"`
	Label string `toml:"label"`
	Type  string `toml:"type"`
}

type Form struct {
	Name   string      `toml:"name"`
	Fields []FormField `toml:"fields"`
}

// Config is the CLI configuration file.
type Config struct {
	Database  Database          `toml:"database"`
	Logging   Logging           `toml:"logging"`
	Mailchimp Mailchimp         `toml:"mailchimp"`
	Activity  Activity          `toml:"activity"`
	Cache     Cache             `toml:"cache"`
	Pages     map[string]string `toml:"pages"`
	Forms     []Form            `toml:"forms"`
}

func defaultConfig() Config {
	defaults := formchimp.DefaultConfig()
	return Config{
		Database: Database{
			Driver:             driverSQLite,
			DSN:                "file:formchimp.db?cache=shared&_foreign_keys=on",
			PingTimeoutSeconds: 5,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
		Mailchimp: Mailchimp{
			BaseURL:        defaults.Mailchimp.BaseURL,
			TimeoutSeconds: int(defaults.Mailchimp.Timeout / time.Second),
			PageSize:       defaults.Mailchimp.PageSize,
		},
		Activity: Activity{
			Channel:       defaults.ActivityChannel,
			RetentionDays: int(defaults.Activity.RetentionTTL / (24 * time.Hour)),
			RowCap:        defaults.Activity.RowCap,
			BufferSize:    64,
		},
		Cache: Cache{FormConfigTTLSeconds: 300},
		Pages: map[string]string{},
	}
}

// loadConfig reads path, or the default location when path is empty. A
// missing default file yields the defaults.
func loadConfig(path string) (Config, string, bool, error) {
	cfg := defaultConfig()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return Config{}, "", false, err
	}
	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return Config{}, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, "", false, err
	}
	return cfg, resolved, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	explicit := strings.TrimSpace(path)
	if explicit == "" {
		explicit = strings.TrimSpace(os.Getenv(configEnvVar))
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file %s not found", explicit)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return explicit, true, nil
	}

	candidate, err := defaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(candidate); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return candidate, true, nil
}

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "formchimp", configFileName), nil
}

func createSampleConfig(path string) error {
	return os.WriteFile(path, []byte(sampleConfig), 0o600)
}

func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "sqlite" {
		c.Database.Driver = driverSQLite
	}
	if c.Database.Driver == "postgresql" {
		c.Database.Driver = driverPostgres
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Pages == nil {
		c.Pages = map[string]string{}
	}
	for i := range c.Forms {
		c.Forms[i].Name = strings.TrimSpace(c.Forms[i].Name)
	}
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case driverSQLite, driverPostgres:
	default:
		return fmt.Errorf("database.driver: unsupported value %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Activity.BufferSize < 0 {
		return fmt.Errorf("activity.buffer_size must not be negative")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	seen := map[string]struct{}{}
	for _, form := range c.Forms {
		if form.Name == "" {
			return fmt.Errorf("forms: name is required")
		}
		if _, ok := seen[form.Name]; ok {
			return fmt.Errorf("forms: duplicate form %q", form.Name)
		}
		seen[form.Name] = struct{}{}
	}
	return c.ServiceConfig().Validate()
}

// ServiceConfig maps the file sections onto the service configuration.
func (c Config) ServiceConfig() formchimp.Config {
	cfg := formchimp.DefaultConfig()
	if channel := strings.TrimSpace(c.Activity.Channel); channel != "" {
		cfg.ActivityChannel = channel
	}
	if baseURL := strings.TrimSpace(c.Mailchimp.BaseURL); baseURL != "" {
		cfg.Mailchimp.BaseURL = baseURL
	}
	if c.Mailchimp.TimeoutSeconds > 0 {
		cfg.Mailchimp.Timeout = time.Duration(c.Mailchimp.TimeoutSeconds) * time.Second
	}
	if c.Mailchimp.PageSize > 0 {
		cfg.Mailchimp.PageSize = c.Mailchimp.PageSize
	}
	if c.Activity.RetentionDays > 0 {
		cfg.Activity.RetentionTTL = time.Duration(c.Activity.RetentionDays) * 24 * time.Hour
	}
	if c.Activity.RowCap > 0 {
		cfg.Activity.RowCap = c.Activity.RowCap
	}
	return cfg
}

// Form returns the catalog entry for name as a form definition.
func (c Config) Form(name string) (formchimp.Form, error) {
	name = strings.TrimSpace(name)
	for _, form := range c.Forms {
		if form.Name != name {
			continue
		}
		out := formchimp.Form{Name: form.Name, Fields: make([]formchimp.FormField, 0, len(form.Fields))}
		for _, field := range form.Fields {
			out.Fields = append(out.Fields, formchimp.FormField{
				Name:  strings.TrimSpace(field.Name),
				Label: strings.TrimSpace(field.Label),
				Type:  strings.TrimSpace(field.Type),
			})
		}
		return out, nil
	}
	return formchimp.Form{}, fmt.Errorf("form %q is not defined in the configuration", name)
}

// pageCatalog resolves Page field references from the [pages] table.
type pageCatalog map[string]string

func (p pageCatalog) PageTitle(_ context.Context, reference string) (string, error) {
	title, ok := p[strings.TrimSpace(reference)]
	if !ok {
		return "", fmt.Errorf("page %q is not defined in the configuration", reference)
	}
	return title, nil
}

var _ core.PageResolver = pageCatalog(nil)
