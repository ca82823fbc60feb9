package config

import (
	"os"
	"testing"
)

func withEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		old, had := os.LookupEnv(k)
		if v == "" {
			os.Unsetenv(k)
		} else {
			os.Setenv(k, v)
		}
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			} else {
				os.Unsetenv(k)
			}
		})
	}
}

func TestApplyEnv_OverridesDefaults(t *testing.T) {
	withEnv(t, map[string]string{
		"QVARND_LISTEN_ADDR":  "127.0.0.1:8080",
		"QVARND_DATABASE_URL": "postgres://x/y",
		"QVARND_INITDB":       "true",
	})
	c := Default()
	applyEnv(&c)
	if c.ListenAddr != "127.0.0.1:8080" {
		t.Fatalf("ListenAddr = %q", c.ListenAddr)
	}
	if c.DatabaseURL != "postgres://x/y" {
		t.Fatalf("DatabaseURL = %q", c.DatabaseURL)
	}
	if !c.InitDB {
		t.Fatalf("expected InitDB true")
	}
}

func TestValidate_RequiresDatabaseURL(t *testing.T) {
	c := Default()
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error without database_url")
	}
	c.DatabaseURL = "postgres://x/y"
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_RejectsPortlessListenAddr(t *testing.T) {
	c := Default()
	c.DatabaseURL = "postgres://x/y"
	c.ListenAddr = "localhost"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing port")
	}
}

func TestLoad_GeneratesAndPersistsNodeID(t *testing.T) {
	withEnv(t, map[string]string{"QVARND_CONFIG": t.TempDir() + "/config.json"})

	c1, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c1.NodeID == "" {
		t.Fatalf("expected a generated node_id")
	}

	c2, err := Load()
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if c2.NodeID != c1.NodeID {
		t.Fatalf("node_id changed across loads: %q != %q", c2.NodeID, c1.NodeID)
	}
}
