package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Run.Rows != 1_000_000 {
		t.Errorf("Run.Rows = %d, want 1000000", cfg.Run.Rows)
	}
	if cfg.Run.Chunks != 8 {
		t.Errorf("Run.Chunks = %d, want 8", cfg.Run.Chunks)
	}
	if cfg.Cast.Policy != "safe" {
		t.Errorf("Cast.Policy = %q, want %q", cfg.Cast.Policy, "safe")
	}
	if cfg.Cast.OutScale != 2 {
		t.Errorf("Cast.OutScale = %d, want 2", cfg.Cast.OutScale)
	}
	if cfg.Extract.Part != "Hour" {
		t.Errorf("Extract.Part = %q, want %q", cfg.Extract.Part, "Hour")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ARROWCOMPUTE_RUN_ROWS", "500")
	t.Setenv("ARROWCOMPUTE_CAST_POLICY", "strict")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Run.Rows != 500 {
		t.Errorf("Run.Rows = %d, want 500", cfg.Run.Rows)
	}
	if cfg.Cast.Policy != "strict" {
		t.Errorf("Cast.Policy = %q, want %q", cfg.Cast.Policy, "strict")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("ARROWCOMPUTE_RUN_ROWS", "0")
	if _, err := Load(); err == nil {
		t.Error("Load() with run.rows=0 should fail")
	}

	t.Setenv("ARROWCOMPUTE_RUN_ROWS", "10")
	t.Setenv("ARROWCOMPUTE_CAST_POLICY", "lenient")
	if _, err := Load(); err == nil {
		t.Error("Load() with unknown cast.policy should fail")
	}
}
