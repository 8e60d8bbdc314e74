package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/eagraph/internal/governance"
	"github.com/roach88/eagraph/internal/repo"
)

// Config is the on-disk policy file.
type Config struct {
	Governance Governance `yaml:"governance"`
	Rules      Rules      `yaml:"rules"`
	History    History    `yaml:"history"`
	Archive    Archive    `yaml:"archive"`
	Metrics    Metrics    `yaml:"metrics"`
}

// Governance holds the repository policy.
type Governance struct {
	Mode              string `yaml:"mode" validate:"required,oneof=Strict Advisory"`
	LifecycleCoverage string `yaml:"lifecycleCoverage" validate:"required,oneof=AsIs ToBe Both"`
}

// Rules points at a CUE endpoint table. Empty means the built-in table.
type Rules struct {
	Path string `yaml:"path"`
}

// History bounds the undo stack.
type History struct {
	Limit int `yaml:"limit" validate:"gte=1,lte=10000"`
}

// Archive locates the SQLite baseline archive.
type Archive struct {
	Path string `yaml:"path"`
}

// Metrics names the prometheus namespace.
type Metrics struct {
	Namespace string `yaml:"namespace" validate:"required,excludesall=- ."`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	p := governance.DefaultPolicy()
	return &Config{
		Governance: Governance{
			Mode:              string(p.Mode),
			LifecycleCoverage: string(p.LifecycleCoverage),
		},
		History: History{Limit: repo.DefaultHistoryLimit},
		Metrics: Metrics{Namespace: "eagraph"},
	}
}

// Load reads path over Default. Unknown keys are rejected. Relative rules
// and archive paths resolve against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	cfg.Rules.Path = resolve(dir, cfg.Rules.Path)
	cfg.Archive.Path = resolve(dir, cfg.Archive.Path)
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}

	// Accept any casing on input, store the canonical spelling.
	if mode, err := governance.ParseMode(cfg.Governance.Mode); err == nil {
		cfg.Governance.Mode = string(mode)
	}
	if cov, err := governance.ParseLifecycleCoverage(cfg.Governance.LifecycleCoverage); err == nil {
		cfg.Governance.LifecycleCoverage = string(cov)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// Policy returns the governance policy. The config must be valid.
func (c *Config) Policy() governance.Policy {
	return governance.Policy{
		Mode:              governance.Mode(c.Governance.Mode),
		LifecycleCoverage: governance.LifecycleCoverage(c.Governance.LifecycleCoverage),
	}
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := fieldPath(e.Namespace())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "excludesall":
		return fmt.Sprintf("%s must not contain any of %q", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// fieldPath turns "Config.Governance.Mode" into "governance.mode".
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = strings.ToLower(p[:1]) + p[1:]
	}
	return strings.Join(parts, ".")
}
