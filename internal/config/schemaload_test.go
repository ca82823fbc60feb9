package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qvarnd-io/qvarnd/internal/schema"
)

const orgYAML = `
type: org
path: orgs
versions: [v1]
prototype:
  names: [""]
  country: ""
subpaths:
  photo:
    file: true
`

func TestLoadSchemaDir_RegistersTypeAndSubpaths(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "org.yaml"), []byte(orgYAML), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	reg := schema.NewRegistry()
	if err := reg.Bootstrap(); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	hash, err := LoadSchemaDir(dir, reg)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty schema hash")
	}

	rts, ok := reg.Lookup("org")
	if !ok {
		t.Fatalf("expected org type registered")
	}
	if rts.Path != "orgs" {
		t.Fatalf("path = %q", rts.Path)
	}
	if !rts.IsFile("photo") {
		t.Fatalf("expected photo registered as file subpath")
	}
	if _, ok := rts.Prototype["country"]; !ok {
		t.Fatalf("expected country in prototype, got %v", rts.Prototype)
	}
}

func TestLoadSchemaDir_MissingTypeFieldErrors(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("path: orgs\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	reg := schema.NewRegistry()
	_ = reg.Bootstrap()
	if _, err := LoadSchemaDir(dir, reg); err == nil {
		t.Fatalf("expected error for missing type field")
	}
}

func TestLoadSchemaDir_HashStableAcrossIdenticalDirs(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	for _, dir := range []string{dirA, dirB} {
		if err := os.WriteFile(filepath.Join(dir, "org.yaml"), []byte(orgYAML), 0o600); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}

	regA := schema.NewRegistry()
	_ = regA.Bootstrap()
	hashA, err := LoadSchemaDir(dirA, regA)
	if err != nil {
		t.Fatalf("load A: %v", err)
	}

	regB := schema.NewRegistry()
	_ = regB.Bootstrap()
	hashB, err := LoadSchemaDir(dirB, regB)
	if err != nil {
		t.Fatalf("load B: %v", err)
	}

	if hashA != hashB {
		t.Fatalf("expected identical hashes for identical schema dirs, got %q != %q", hashA, hashB)
	}
}
