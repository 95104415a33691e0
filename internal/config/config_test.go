package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DATABASE_URL", "")
	t.Setenv("VT_POLL_INTERVAL", "")
	t.Setenv("ALLOWED_FILE_TYPES", "")

	cfg, err := Load()
	if !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("Load() error = %v, want ErrNoDatabase", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.VTPollInterval != 2*time.Second || cfg.VTMaxAttempts != 10 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if len(cfg.AllowedTypes) == 0 {
		t.Error("default allowlist should not be empty")
	}
}

func TestLoad_Env(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://localhost/threatlens")
	t.Setenv("SCAN_WORKERS", "4")
	t.Setenv("VT_POLL_INTERVAL", "500ms")
	t.Setenv("SIM_SEED", "42")
	t.Setenv("ALLOWED_FILE_TYPES", ".APK, ipa")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ScanWorkers != 4 || cfg.VTPollInterval != 500*time.Millisecond || cfg.SimSeed != 42 {
		t.Errorf("env not applied: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.AllowedTypes, []string{"apk", "ipa"}) {
		t.Errorf("AllowedTypes = %v", cfg.AllowedTypes)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")
	t.Setenv("ALLOWED_FILE_TYPES", "")
	os.Unsetenv("ALLOWED_FILE_TYPES")

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("DATABASE_URL=postgres://dotenv/db\nALLOWED_FILE_TYPES=*\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DatabaseURL != "postgres://dotenv/db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.AllowedTypes != nil {
		t.Errorf("* should disable the allowlist, got %v", cfg.AllowedTypes)
	}
}

func TestLoad_InvalidIsNotWarning(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DATABASE_URL", "")
	t.Setenv("VT_MAX_ATTEMPTS", "0")

	_, err := Load()
	if err == nil || errors.Is(err, ErrNoDatabase) {
		t.Fatalf("Load() error = %v, want a config error distinct from ErrNoDatabase", err)
	}
}

// chdir changes the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which needs go1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
