// Package shred transforms a JSON document into the two derived forms the
// store persists: the containment ("search") form consumed by the GIN
// index, and the list (auxiliary row) form consumed by range/prefix/
// substring predicates (spec §4.2).
package shred

import (
	"sort"
	"strings"
)

// leafOccurrence is one scalar leaf found while walking a document, tagged
// with the list-nesting depth it was found at.
type leafOccurrence struct {
	name  string
	value any
	depth int
}

// Containment returns the containment form: one single-key object per
// scalar leaf anywhere in the document (including nested lists and any
// sub-path documents passed in subpathDocs), with string values lowercased.
func Containment(data map[string]any, subpathDocs map[string]map[string]any) []map[string]any {
	var out []map[string]any
	walkContainment(data, 0, &out)
	// sub-path leaves follow the main data's leaves, one sub-path at a
	// time in sub-path name order, for determinism.
	names := make([]string, 0, len(subpathDocs))
	for name := range subpathDocs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		walkContainment(subpathDocs[name], 0, &out)
	}
	return out
}

func walkContainment(v any, depth int, out *[]map[string]any) {
	switch t := v.(type) {
	case map[string]any:
		keys := sortedKeys(t)
		for _, k := range keys {
			walkLeafOrRecurse(k, t[k], depth, out)
		}
	case []any:
		for _, el := range t {
			walkContainment(el, depth+1, out)
		}
	}
}

func walkLeafOrRecurse(key string, v any, depth int, out *[]map[string]any) {
	switch t := v.(type) {
	case map[string]any:
		walkContainment(t, depth+1, out)
	case []any:
		for _, el := range t {
			walkLeafOrRecurse(key, el, depth+1, out)
		}
	default:
		*out = append(*out, map[string]any{key: lowercase(t)})
	}
}

func lowercase(v any) any {
	if s, ok := v.(string); ok {
		return strings.ToLower(s)
	}
	return v
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AuxRow is one denormalized row of the auxiliary list table: a flat
// object gathering scalar siblings that co-occurred within the same list
// element occurrence (spec §4.2's List form).
type AuxRow map[string]any

// Lists returns the list form: depth-grouped rows preserving per-list-
// element co-occurrence of sibling scalar fields, so correlated predicates
// on sibling fields (e.g. gov_org_ids[i].org_id_type and
// gov_org_ids[i].gov_org_id) can be satisfied by a single aux row.
//
// Algorithm: collect every scalar leaf with its name and the depth of list
// nesting it was found under; order leaves by name then by depth; assign
// each leaf to the i-th row among leaves sharing its name (i.e. the i-th
// occurrence of that name becomes part of aux row i). This mirrors the
// source's flatten-for-lists grouping policy (spec §4.2).
func Lists(data map[string]any) []AuxRow {
	var leaves []leafOccurrence
	collectLeaves(data, 0, &leaves)

	sort.SliceStable(leaves, func(i, j int) bool {
		if leaves[i].name != leaves[j].name {
			return leaves[i].name < leaves[j].name
		}
		return leaves[i].depth < leaves[j].depth
	})

	seenOrdinal := map[string]int{}
	var rows []AuxRow
	for _, leaf := range leaves {
		idx := seenOrdinal[leaf.name]
		seenOrdinal[leaf.name]++
		for len(rows) <= idx {
			rows = append(rows, AuxRow{})
		}
		rows[idx][leaf.name] = lowercase(leaf.value)
	}
	return rows
}

func collectLeaves(v any, depth int, out *[]leafOccurrence) {
	switch t := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(t) {
			collectLeavesNamed(k, t[k], depth, out)
		}
	case []any:
		for _, el := range t {
			collectLeaves(el, depth+1, out)
		}
	}
}

func collectLeavesNamed(name string, v any, depth int, out *[]leafOccurrence) {
	switch t := v.(type) {
	case map[string]any:
		collectLeaves(t, depth+1, out)
	case []any:
		for _, el := range t {
			collectLeavesNamed(name, el, depth+1, out)
		}
	default:
		*out = append(*out, leafOccurrence{name: name, value: t, depth: depth})
	}
}
