package bundle

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a manifest encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat accepts json, yaml/yml and toml.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("bundle: unknown format %q", s)
}

// Encode writes the manifest in the given format.
func (m *Manifest) Encode(w io.Writer, format Format) error {
	return encode(w, format, m)
}

// EncodeEntries writes a plain entry map (the shape a bundler's entry option
// takes) in the given format.
func EncodeEntries(w io.Writer, format Format, entries map[string]string) error {
	return encode(w, format, entries)
}

func encode(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		return toml.NewEncoder(w).Encode(v)
	default:
		return fmt.Errorf("bundle: unknown format %q", format)
	}
}
