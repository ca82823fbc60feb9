package schema

import "testing"

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	if err := r.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	err := r.Register(ResourceTypeSchema{
		Type:     "org",
		Path:     "orgs",
		Versions: []string{"v1"},
		Prototype: map[string]any{
			"names":   []any{""},
			"country": "",
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return r
}

func TestBootstrap_ListenerFirst(t *testing.T) {
	r := newTestRegistry(t)
	types := r.Types()
	if len(types) == 0 || types[0] != ListenerType {
		t.Fatalf("expected listener type registered first, got %v", types)
	}
}

func TestRegister_DuplicateTypeRejected(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Register(ResourceTypeSchema{Type: "org", Path: "orgs2", Versions: []string{"v1"}})
	if err == nil {
		t.Fatalf("expected error on duplicate type")
	}
}

func TestRegister_DuplicatePathRejected(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Register(ResourceTypeSchema{Type: "org2", Path: "orgs", Versions: []string{"v1"}})
	if err == nil {
		t.Fatalf("expected error on duplicate path")
	}
}

func TestValidate_StripsUnknownKeys(t *testing.T) {
	r := newTestRegistry(t)
	out, err := r.Validate("org", map[string]any{
		"country": "FI",
		"bogus":   "nope",
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, present := out["bogus"]; present {
		t.Fatalf("expected unknown key stripped, got %v", out)
	}
	if out["country"] != "FI" {
		t.Fatalf("country = %v", out["country"])
	}
}

func TestValidate_RejectsWrongType(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Validate("org", map[string]any{"country": 123})
	if err == nil {
		t.Fatalf("expected validation error for wrong type")
	}
}

func TestLookupByPath(t *testing.T) {
	r := newTestRegistry(t)
	s, ok := r.LookupByPath("orgs")
	if !ok || s.Type != "org" {
		t.Fatalf("LookupByPath(orgs) = %v, %v", s, ok)
	}
}
