package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/tailscale/hujson"
)

// Parse decodes a single JSONC document without resolving extends.
// Unknown keys are an error.
func Parse(data []byte) (*Config, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, errors.Wrap(err, "invalid JSONC")
	}
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(std))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads the config file at path and resolves its extends chain:
// depth-first, parent-first, so later entries and finally the file
// itself override earlier ones. Objects merge key by key; arrays and
// scalars are replaced whole.
func Load(path string) (*Config, error) {
	merged, err := loadMerged(path, map[string]bool{})
	if err != nil {
		return nil, err
	}

	// Re-encode the merged tree and decode strictly, so unknown keys
	// anywhere in the chain are rejected.
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", path)
	}
	return cfg, nil
}

func loadMerged(path string, seen map[string]bool) (map[string]any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if seen[abs] {
		return nil, errors.Errorf("extends cycle through %s", path)
	}
	seen[abs] = true

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid JSONC in %s", path)
	}
	var raw map[string]any
	if err := json.Unmarshal(std, &raw); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	base := map[string]any{}
	if ext, ok := raw["extends"].([]any); ok {
		for _, e := range ext {
			name, ok := e.(string)
			if !ok {
				return nil, errors.Errorf("%s: extends entries must be strings", path)
			}
			parent, err := loadMerged(filepath.Join(filepath.Dir(abs), name), seen)
			if err != nil {
				return nil, err
			}
			mergeInto(base, parent)
		}
	}
	mergeInto(base, raw)
	delete(base, "extends")
	return base, nil
}

// mergeInto overlays src onto dst. Objects merge recursively; any other
// value replaces the existing one.
func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if sm, ok := v.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				mergeInto(dm, sm)
				continue
			}
			cp := map[string]any{}
			mergeInto(cp, sm)
			dst[k] = cp
			continue
		}
		dst[k] = v
	}
}
