// Package config loads bloom settings from TOML or YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Output formats accepted by `bloom parse`.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCBOR = "cbor"
)

// Config holds the complete bloom configuration
type Config struct {
	Arena  ArenaConfig  `toml:"arena" yaml:"arena"`
	Parser ParserConfig `toml:"parser" yaml:"parser"`
	Output OutputConfig `toml:"output" yaml:"output"`
}

// ArenaConfig sizes the arena each job runs in. Zero means "size from the
// input".
type ArenaConfig struct {
	Size int `toml:"size" yaml:"size"`
}

// ParserConfig mirrors the parser options.
type ParserConfig struct {
	ErrorCapacity int  `toml:"error_capacity" yaml:"error_capacity"`
	AbortOnError  bool `toml:"abort_on_error" yaml:"abort_on_error"`
}

// OutputConfig controls how results are rendered.
type OutputConfig struct {
	Color  bool   `toml:"color" yaml:"color"`
	Format string `toml:"format" yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Parser: ParserConfig{ErrorCapacity: 16},
		Output: OutputConfig{Color: true, Format: FormatText},
	}
}

// Load reads path over the defaults. The format is chosen by extension:
// .toml, or .yaml / .yml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%w: unknown key %q in %s", ErrInvalid, undecoded[0].String(), path)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported config extension %q", ErrInvalid, ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Arena.Size < 0 {
		return fmt.Errorf("%w: arena.size must be non-negative, got %d", ErrInvalid, c.Arena.Size)
	}
	if c.Parser.ErrorCapacity < 0 {
		return fmt.Errorf("%w: parser.error_capacity must be non-negative, got %d", ErrInvalid, c.Parser.ErrorCapacity)
	}
	switch c.Output.Format {
	case FormatText, FormatJSON, FormatYAML, FormatCBOR:
	default:
		return fmt.Errorf("%w: output.format %q is not one of text, json, yaml, cbor", ErrInvalid, c.Output.Format)
	}
	return nil
}
