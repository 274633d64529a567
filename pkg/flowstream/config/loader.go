package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format names a configuration encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// ErrUnsupportedFormat is returned for unknown formats and file extensions.
var ErrUnsupportedFormat = errors.New("unsupported config format")

var decoders = map[Format]func([]byte, any) error{
	FormatYAML: yaml.Unmarshal,
	FormatJSON: json.Unmarshal,
	FormatTOML: toml.Unmarshal,
}

var extensions = map[string]Format{
	".yaml": FormatYAML,
	".yml":  FormatYAML,
	".json": FormatJSON,
	".toml": FormatTOML,
}

// Parse decodes data in the given format. Every format must decode to a
// table at the top level.
func Parse(format Format, data []byte) (Config, error) {
	decode, ok := decoders[format]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	var tree map[string]any
	if err := decode(data, &tree); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", format, err)
	}
	return New(tree), nil
}

// FromFile reads path and parses it in the format implied by its extension
// (.yaml, .yml, .json or .toml, any case).
func FromFile(path string) (Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	format, ok := extensions[ext]
	if !ok {
		return Config{}, fmt.Errorf("%w: unsupported config file extension %q", ErrUnsupportedFormat, ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(format, data)
}

// FromYAML parses YAML data.
func FromYAML(data []byte) (Config, error) { return Parse(FormatYAML, data) }

// FromJSON parses JSON data.
func FromJSON(data []byte) (Config, error) { return Parse(FormatJSON, data) }

// FromTOML parses TOML data.
func FromTOML(data []byte) (Config, error) { return Parse(FormatTOML, data) }
