package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ResolverConfig configures the layered config resolver.
type ResolverConfig struct {
	// Path is the configuration file. It must exist.
	Path string

	// EnvPrefix is prepended to key names for environment variable lookup.
	// With EnvPrefix "INGESTFLOW_", key "aws.region" maps to
	// INGESTFLOW_AWS_REGION.
	EnvPrefix string

	// Defaults provides the default values for configuration keys.
	Defaults map[string]string

	// EnvKeys lists keys that may be set from the environment only. Keys
	// present in Defaults or the file are always looked up.
	EnvKeys []string

	// ErrWriter is where warnings are written.
	// Defaults to os.Stderr if nil.
	ErrWriter io.Writer
}

// Resolver handles layered configuration resolution.
type Resolver struct {
	config ResolverConfig

	// Warnings collects non-fatal issues during resolution.
	Warnings []string
}

// NewResolver creates a new configuration resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.ErrWriter == nil {
		cfg.ErrWriter = os.Stderr
	}
	return &Resolver{config: cfg}
}

// warn adds a warning and optionally prints it.
func (r *Resolver) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
	if r.config.ErrWriter != nil {
		fmt.Fprintf(r.config.ErrWriter, "Warning: %s\n", msg)
	}
}

// Resolved holds the final merged configuration. Keys are "section.key".
type Resolved struct {
	values  map[string]string
	sources map[string]Source
}

// Get returns the value for a key, or empty string if not set.
func (c *Resolved) Get(key string) string {
	return c.values[key]
}

// Has reports whether key has a non-empty value.
func (c *Resolved) Has(key string) bool {
	return c.values[key] != ""
}

// Source returns the source of a key's value.
func (c *Resolved) Source(key string) Source {
	return c.sources[key]
}

// GetWithSource returns both the value and its source.
func (c *Resolved) GetWithSource(key string) (string, Source) {
	return c.values[key], c.sources[key]
}

// Bool parses a boolean value; unset or unparsable values yield def.
func (c *Resolved) Bool(key string, def bool) bool {
	v, ok := c.values[key]
	if !ok || v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

// Int64 parses an integer value.
func (c *Resolved) Int64(key string) (int64, error) {
	v := c.values[key]
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// Duration parses a Go duration such as "72h". Unset values yield zero.
func (c *Resolved) Duration(key string) (time.Duration, error) {
	v := c.values[key]
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", key, v)
	}
	return d, nil
}

// Section returns the keys of one section with the section prefix removed.
func (c *Resolved) Section(name string) map[string]string {
	result := make(map[string]string)
	prefix := name + "."
	for k, v := range c.values {
		if rest, ok := strings.CutPrefix(k, prefix); ok {
			result[rest] = v
		}
	}
	return result
}

// All returns a copy of all key-value pairs.
func (c *Resolved) All() map[string]string {
	result := make(map[string]string, len(c.values))
	for k, v := range c.values {
		result[k] = v
	}
	return result
}

// Keys returns all configuration keys, sorted.
func (c *Resolved) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Require checks that every key has a non-empty value. The first missing
// key is reported, in the order given.
func (c *Resolved) Require(keys ...string) error {
	for _, key := range keys {
		if !c.Has(key) {
			return &MissingKeyError{Key: key}
		}
	}
	return nil
}

// Resolve builds the final config by merging all sources.
// Priority (highest to lowest): env > file > defaults.
func (r *Resolver) Resolve() (*Resolved, error) {
	cfg := &Resolved{
		values:  make(map[string]string),
		sources: make(map[string]Source),
	}

	r.applyDefaults(cfg)
	if err := r.applyFile(cfg); err != nil {
		return nil, err
	}
	r.applyEnv(cfg)

	return cfg, nil
}

// ResolveWithFlags resolves config and applies flag overrides.
func (r *Resolver) ResolveWithFlags(flags map[string]string) (*Resolved, error) {
	cfg, err := r.Resolve()
	if err != nil {
		return nil, err
	}

	for key, value := range flags {
		if value != "" {
			cfg.values[key] = value
			cfg.sources[key] = SourceFlag
		}
	}

	return cfg, nil
}

func (r *Resolver) applyDefaults(cfg *Resolved) {
	for key, value := range r.config.Defaults {
		cfg.values[key] = value
		cfg.sources[key] = SourceDefault
	}
}

func (r *Resolver) applyFile(cfg *Resolved) error {
	if r.config.Path == "" {
		return &FileError{Path: "", Err: errors.New("no configuration file given")}
	}

	data, err := os.ReadFile(r.config.Path)
	if err != nil {
		return &FileError{Path: r.config.Path, Err: err}
	}

	var parsed map[string]interface{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return &FileError{Path: r.config.Path, Err: err}
	}

	flat := make(map[string]string)
	for section, value := range parsed {
		body, ok := value.(map[string]interface{})
		if !ok {
			r.warn(fmt.Sprintf("%s: top-level key %q is not a section, ignored", r.config.Path, section))
			continue
		}
		flatten(section, body, flat, r)
	}

	for key, value := range flat {
		cfg.values[key] = value
		cfg.sources[key] = SourceFile
	}
	return nil
}

func flatten(prefix string, body map[string]interface{}, out map[string]string, r *Resolver) {
	for key, value := range body {
		full := prefix + "." + key
		if nested, ok := value.(map[string]interface{}); ok {
			flatten(full, nested, out, r)
			continue
		}
		strVal, ok := toString(value)
		if !ok {
			r.warn(fmt.Sprintf("%s: unsupported value for %s, ignored", r.config.Path, full))
			continue
		}
		out[full] = strVal
	}
}

func (r *Resolver) applyEnv(cfg *Resolved) {
	if r.config.EnvPrefix == "" {
		return
	}

	allKeys := make(map[string]bool)
	for k := range r.config.Defaults {
		allKeys[k] = true
	}
	for k := range cfg.values {
		allKeys[k] = true
	}
	for _, k := range r.config.EnvKeys {
		allKeys[k] = true
	}

	for key := range allKeys {
		if value, ok := os.LookupEnv(EnvName(r.config.EnvPrefix, key)); ok && value != "" {
			cfg.values[key] = value
			cfg.sources[key] = SourceEnv
		}
	}
}

// EnvName returns the environment variable consulted for key.
func EnvName(prefix, key string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return prefix + strings.ToUpper(r.Replace(key))
}

func toString(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case int, int64, uint64, float64:
		return fmt.Sprintf("%v", val), true
	case nil:
		return "", true
	default:
		return "", false
	}
}
