package facts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for file extensions with no decoder.
var ErrUnsupportedFormat = errors.New("unsupported facts format")

// LoadSnapshot reads a facts snapshot from disk. The format is chosen by file
// extension: .json, .yaml/.yml or .toml.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading facts: %w", err)
	}
	snap, err := Decode(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return snap, nil
}

// SaveSnapshot writes a snapshot to disk as indented JSON.
func SaveSnapshot(path string, snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for facts: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling facts: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing facts: %w", err)
	}

	return nil
}

// Decode parses data in the given format ("json", "yaml", "yml" or "toml").
//
// YAML and TOML documents are normalized through a generic map and then
// decoded with the JSON field names, so all three formats share one schema.
func Decode(data []byte, format string) (*Snapshot, error) {
	var raw []byte
	switch strings.ToLower(format) {
	case "json", "":
		raw = data
	case "yaml", "yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("normalizing yaml: %w", err)
		}
		raw = b
	case "toml":
		var doc map[string]any
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("parsing toml: %w", err)
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("normalizing toml: %w", err)
		}
		raw = b
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling facts: %w", err)
	}
	return &snap, nil
}
