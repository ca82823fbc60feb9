package schema

import (
	"fmt"
	"sort"

	"github.com/qvarnd-io/qvarnd/internal/docval"
)

// Registry is an immutable, read-only-after-init collection of resource
// type schemas, safely shared by reference across goroutines (spec §9:
// "Global-ish schema registry").
type Registry struct {
	byType map[string]ResourceTypeSchema
	byPath map[string]string // URL path segment -> type name
	flat   map[string]FlatFieldMap
	order  []string // registration order, listener first
}

// NewRegistry builds an empty registry. Call Bootstrap before registering
// caller-declared types so the built-in listener type is always first
// (spec §4.1).
func NewRegistry() *Registry {
	return &Registry{
		byType: map[string]ResourceTypeSchema{},
		byPath: map[string]string{},
		flat:   map[string]FlatFieldMap{},
	}
}

// Bootstrap registers the built-in listener type. Must be called before
// any other Register call on a fresh registry.
func (r *Registry) Bootstrap() error {
	return r.Register(ListenerSchema())
}

// Register adds a resource type schema. Returns an error on duplicate type
// name or path.
func (r *Registry) Register(s ResourceTypeSchema) error {
	if _, exists := r.byType[s.Type]; exists {
		return fmt.Errorf("schema: duplicate resource type %q", s.Type)
	}
	if owner, exists := r.byPath[s.Path]; exists {
		return fmt.Errorf("schema: path %q already used by type %q", s.Path, owner)
	}
	r.byType[s.Type] = s
	r.byPath[s.Path] = s.Type
	r.flat[s.Type] = Flatten(s)
	r.order = append(r.order, s.Type)
	return nil
}

// Lookup returns the schema for a resource type name.
func (r *Registry) Lookup(resourceType string) (ResourceTypeSchema, bool) {
	s, ok := r.byType[resourceType]
	return s, ok
}

// LookupByPath resolves a URL path segment to a resource type.
func (r *Registry) LookupByPath(path string) (ResourceTypeSchema, bool) {
	t, ok := r.byPath[path]
	if !ok {
		return ResourceTypeSchema{}, false
	}
	return r.Lookup(t)
}

// FlatFields returns the flattened field map for a resource type.
func (r *Registry) FlatFields(resourceType string) (FlatFieldMap, bool) {
	m, ok := r.flat[resourceType]
	return m, ok
}

// Types returns all registered resource type names in registration order
// (listener always first).
func (r *Registry) Types() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// SortedTypes returns all registered type names alphabetically; used by
// /version, where deterministic, not registration, ordering is wanted.
func (r *Registry) SortedTypes() []string {
	out := r.Types()
	sort.Strings(out)
	return out
}

// Validate runs the document through the named type's prototype validator.
func (r *Registry) Validate(resourceType string, data docval.Doc) (docval.Doc, error) {
	s, ok := r.Lookup(resourceType)
	if !ok {
		return nil, fmt.Errorf("schema: unknown resource type %q", resourceType)
	}
	return Validate(s.Prototype, data)
}

// ValidateSubpath validates data against the named sub-path's prototype.
func (r *Registry) ValidateSubpath(resourceType, subpath string, data docval.Doc) (docval.Doc, error) {
	s, ok := r.Lookup(resourceType)
	if !ok {
		return nil, fmt.Errorf("schema: unknown resource type %q", resourceType)
	}
	proto, ok := s.Subpaths[subpath]
	if !ok {
		return nil, fmt.Errorf("schema: unknown subpath %q on type %q", subpath, resourceType)
	}
	return Validate(proto, data)
}
