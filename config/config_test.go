package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Hart.RegisterWidth != 64 {
		t.Errorf("expected RegisterWidth=64, got %d", cfg.Hart.RegisterWidth)
	}
	if len(cfg.Hart.SupportedModes) != 3 {
		t.Errorf("expected 3 supported modes, got %v", cfg.Hart.SupportedModes)
	}
	if cfg.Trigger.Count != 4 {
		t.Errorf("expected Trigger.Count=4, got %d", cfg.Trigger.Count)
	}
	if cfg.Mcm.MergeBufferLineSize != 64 {
		t.Errorf("expected MergeBufferLineSize=64, got %d", cfg.Mcm.MergeBufferLineSize)
	}
	if cfg.Mcm.EnableIo {
		t.Error("expected EnableIo=false by default")
	}
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()
	if path == "" {
		t.Fatal("GetConfigPath returned empty string")
	}
	if filepath.Base(path) != "config.toml" {
		t.Errorf("expected path to end with config.toml, got %s", path)
	}
}

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("expected no error for a missing file, got %v", err)
	}
	if cfg.Hart.RegisterWidth != DefaultConfig().Hart.RegisterWidth {
		t.Fatal("expected defaults when config file is missing")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Api.ListenAddr = "0.0.0.0:9999"
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Api.ListenAddr != "0.0.0.0:9999" {
		t.Fatalf("got %q, want 0.0.0.0:9999", loaded.Api.ListenAddr)
	}
}

func TestExpandRanges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Csr.Ranges = []CsrRange{{First: 0xB03, Last: 0xB05, WriteMask: 0xFFFF_FFFF_FFFF_FFFF}}
	out := cfg.ExpandRanges()
	if len(out) != 3 {
		t.Fatalf("expected 3 expanded entries, got %d", len(out))
	}
	if out[0].Number != 0xB03 || out[2].Number != 0xB05 {
		t.Fatalf("unexpected expanded numbers: %+v", out)
	}
}
