// Package config handles fieldhook.toml project configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// FileName is the name of the configuration file.
const FileName = "fieldhook.toml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FIELDHOOK_"

// Config represents a fieldhook.toml configuration.
type Config struct {
	// Field is the reserved interceptor field name.
	Field string `toml:"field"`

	// Method is the by-convention notification method name.
	Method string `toml:"method"`

	// ForceTypes lists type names rewritten even without the reserved field.
	ForceTypes []string `toml:"force_types"`

	// Exclude lists import path prefixes that are never rewritten.
	Exclude []string `toml:"exclude"`

	// Verbose enables per-file rewrite reporting.
	Verbose bool `toml:"verbose"`

	// Concurrency bounds the number of files rewritten at once.
	Concurrency int `toml:"concurrency"`

	// Dir is the directory containing fieldhook.toml (set at load time,
	// empty when no file was found).
	Dir string `toml:"-"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Field:       "instanceInterceptor",
		Method:      "SetField",
		Concurrency: runtime.GOMAXPROCS(0),
	}
}

// Load parses fieldhook.toml from dir. Missing keys keep their defaults.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if _, err := toml.Decode(string(data), c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return c, c.Validate()
}

// FindAndLoad walks up from startDir to find fieldhook.toml and loads it.
// Without a file the defaults are returned. In both cases a .env file next
// to the configuration (or in startDir) and FIELDHOOK_* environment
// variables are applied on top.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	c := Default()
	envDir := dir
	for d := dir; ; {
		if _, err := os.Stat(filepath.Join(d, FileName)); err == nil {
			if c, err = Load(d); err != nil {
				return nil, err
			}
			envDir = d
			break
		}
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}

	if err := loadDotEnv(filepath.Join(envDir, ".env")); err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

// loadDotEnv sets variables from path that are not already set.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("cannot load %s: %w", path, err)
}

// ApplyEnv overrides fields from FIELDHOOK_* variables returned by lookup.
// List values are comma separated.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "FIELD"); ok && v != "" {
		c.Field = v
	}
	if v, ok := lookup(EnvPrefix + "METHOD"); ok && v != "" {
		c.Method = v
	}
	if v, ok := lookup(EnvPrefix + "FORCE_TYPES"); ok {
		c.ForceTypes = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "EXCLUDE"); ok {
		c.Exclude = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "VERBOSE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sVERBOSE: %w", EnvPrefix, err)
		}
		c.Verbose = b
	}
	if v, ok := lookup(EnvPrefix + "CONCURRENCY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sCONCURRENCY: %w", EnvPrefix, err)
		}
		c.Concurrency = n
	}
	return nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if !isIdent(c.Field) {
		return fmt.Errorf("field %q is not a Go identifier", c.Field)
	}
	if !isIdent(c.Method) {
		return fmt.Errorf("method %q is not a Go identifier", c.Method)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z':
		case i > 0 && '0' <= r && r <= '9':
		default:
			return false
		}
	}
	return true
}
