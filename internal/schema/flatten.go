package schema

import (
	"sort"

	"github.com/qvarnd-io/qvarnd/internal/docval"
)

// Occurrence records one place a leaf name appears in a prototype.
type Occurrence struct {
	Path   []string // field path from the document root (or sub-path root)
	Type   LeafType
	InList bool // true if path passes through a list
}

// FlatFieldMap maps a leaf name to every occurrence of it across the
// prototype and all sub-path prototypes. A search predicate against a leaf
// name is evaluated against the union of its occurrences (spec §4.2).
type FlatFieldMap map[string][]Occurrence

// Flatten walks s.Prototype and every sub-path prototype, building the flat
// field map used by the validator and the search compiler.
func Flatten(s ResourceTypeSchema) FlatFieldMap {
	out := FlatFieldMap{}
	walkPrototype(s.Prototype, nil, false, out)
	for _, proto := range s.Subpaths {
		walkPrototype(proto, nil, false, out)
	}
	return out
}

func walkPrototype(v any, path []string, inList bool, out FlatFieldMap) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkPrototype(t[k], append(append([]string{}, path...), k), inList, out)
		}
	case []any:
		for _, el := range t {
			walkPrototype(el, path, true, out)
		}
	default:
		if len(path) == 0 {
			return
		}
		leaf := path[len(path)-1]
		occ := Occurrence{Path: append([]string{}, path...), Type: leafTypeOf(v), InList: inList}
		out[leaf] = append(out[leaf], occ)
	}
}

func leafTypeOf(v any) LeafType {
	switch t := v.(type) {
	case bool:
		return LeafBool
	case string:
		return LeafString
	case float64:
		if t == float64(int64(t)) {
			return LeafInteger
		}
		return LeafFloat
	case int, int64:
		return LeafInteger
	default:
		_ = docval.KindOf(v)
		return LeafString
	}
}

// Lookup returns all occurrences of leaf name across the schema, and
// whether the leaf is declared at all.
func (m FlatFieldMap) Lookup(leaf string) ([]Occurrence, bool) {
	occs, ok := m[leaf]
	return occs, ok
}

// IsNumeric reports whether any occurrence of leaf is declared integer or
// float; used by the search compiler to decide whether to parse query
// values numerically before binding (spec §4.6).
func (m FlatFieldMap) IsNumeric(leaf string) bool {
	for _, occ := range m[leaf] {
		if occ.Type == LeafInteger || occ.Type == LeafFloat {
			return true
		}
	}
	return false
}
