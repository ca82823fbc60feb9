// Package schema models resource-type declarations: the prototype that
// fixes each field's type, named JSON sub-paths, and file sub-paths.
package schema

import "github.com/qvarnd-io/qvarnd/internal/docval"

// LeafType is the declared scalar type of a prototype leaf.
type LeafType int

const (
	LeafString LeafType = iota
	LeafInteger
	LeafFloat
	LeafBool
)

func (t LeafType) String() string {
	switch t {
	case LeafString:
		return "string"
	case LeafInteger:
		return "integer"
	case LeafFloat:
		return "float"
	case LeafBool:
		return "bool"
	default:
		return "unknown"
	}
}

// ListenerType is the built-in type name of the always-registered
// listener resource.
const ListenerType = "listener"

// ResourceTypeSchema is an immutable resource-type declaration.
type ResourceTypeSchema struct {
	Type      string            // identifier, unique
	Path      string            // URL segment, unique
	Versions  []string          // ordered; only the latest is active
	Prototype docval.Doc        // JSON skeleton; leaf values fix field types
	Subpaths  map[string]docval.Doc // sub-path name -> its own prototype
	Files     map[string]bool   // sub-path names whose payload is opaque bytes
}

// LatestVersion returns the last entry of Versions, or "" if none declared.
func (s ResourceTypeSchema) LatestVersion() string {
	if len(s.Versions) == 0 {
		return ""
	}
	return s.Versions[len(s.Versions)-1]
}

// IsFile reports whether subpath is a file sub-path. A name in Files
// overrides any JSON sub-path with the same name.
func (s ResourceTypeSchema) IsFile(subpath string) bool {
	return s.Files[subpath]
}

// JSONSubpaths returns sub-path names that are NOT file sub-paths, i.e.
// need a data_<subpath> column.
func (s ResourceTypeSchema) JSONSubpaths() []string {
	out := make([]string, 0, len(s.Subpaths))
	for name := range s.Subpaths {
		if !s.IsFile(name) {
			out = append(out, name)
		}
	}
	return out
}

// ListenerPrototype is the fixed prototype for the built-in listener type.
// listen_on_type/notify_of_new/notify_on_all/listen_on mirror spec §3/§4.7.
func ListenerPrototype() docval.Doc {
	return docval.Doc{
		"listen_on_type": "",
		"notify_of_new":  false,
		"notify_on_all":  false,
		"listen_on":      []any{""},
	}
}

// ListenerSchema returns the always-first built-in resource type.
func ListenerSchema() ResourceTypeSchema {
	return ResourceTypeSchema{
		Type:      ListenerType,
		Path:      "listeners",
		Versions:  []string{"v1"},
		Prototype: ListenerPrototype(),
	}
}
