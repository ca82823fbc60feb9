package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/qvarnd-io/qvarnd/internal/schema"
)

// schemaFile is the on-disk YAML shape of one resource-type declaration.
// Subpaths whose entry is marked `file: true` get a Files entry instead of
// a JSON prototype.
type schemaFile struct {
	Type     string                    `yaml:"type"`
	Path     string                    `yaml:"path"`
	Versions []string                  `yaml:"versions"`
	Prototype map[string]any           `yaml:"prototype"`
	Subpaths map[string]subpathFile    `yaml:"subpaths"`
}

type subpathFile struct {
	File      bool           `yaml:"file"`
	Prototype map[string]any `yaml:"prototype"`
}

// LoadSchemaDir reads every *.yaml/*.yml file in dir, in lexical filename
// order, registers each as a resource type on reg, and returns a content
// hash of the directory (internal/localdb's schema-hash bookkeeping, spec
// §10.4, uses it to skip a no-op EnsureSchema pass on restart). reg must
// already be bootstrapped (the listener type registered first).
func LoadSchemaDir(dir string, reg *schema.Registry) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("config: read schema dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasSuffix(n, ".yaml") || strings.HasSuffix(n, ".yml") {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		path := filepath.Join(dir, name)
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("config: read %s: %w", path, err)
		}
		fmt.Fprintf(h, "%s\x00", name)
		h.Write(b)

		var sf schemaFile
		if err := yaml.Unmarshal(b, &sf); err != nil {
			return "", fmt.Errorf("config: parse %s: %w", path, err)
		}
		rts, err := toResourceTypeSchema(sf)
		if err != nil {
			return "", fmt.Errorf("config: %s: %w", path, err)
		}
		if err := reg.Register(rts); err != nil {
			return "", fmt.Errorf("config: %s: %w", path, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func toResourceTypeSchema(sf schemaFile) (schema.ResourceTypeSchema, error) {
	if sf.Type == "" {
		return schema.ResourceTypeSchema{}, fmt.Errorf("missing type")
	}
	if sf.Path == "" {
		return schema.ResourceTypeSchema{}, fmt.Errorf("missing path")
	}
	rts := schema.ResourceTypeSchema{
		Type:      sf.Type,
		Path:      sf.Path,
		Versions:  sf.Versions,
		Prototype: normalizeYAML(sf.Prototype).(map[string]any),
		Subpaths:  map[string]map[string]any{},
		Files:     map[string]bool{},
	}
	for name, sp := range sf.Subpaths {
		if sp.File {
			rts.Files[name] = true
			continue
		}
		rts.Subpaths[name] = normalizeYAML(sp.Prototype).(map[string]any)
	}
	return rts, nil
}

// normalizeYAML recursively converts the map[interface{}]interface{} nodes
// gopkg.in/yaml.v2 produces into map[string]any, matching the JSON-native
// document shape the rest of the system works with (docval.Doc).
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case []interface{}:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = normalizeYAML(el)
		}
		return out
	case int:
		return float64(t)
	default:
		return v
	}
}
