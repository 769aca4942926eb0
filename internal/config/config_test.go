package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/castellan-io/castellan/pkg/consts"
	cerrors "github.com/castellan-io/castellan/pkg/errors"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.ModeFile != "/tmp/bastion-mode" {
		t.Errorf("Expected default mode file, got %q", cfg.ModeFile)
	}
	if cfg.User != "bastion" {
		t.Errorf("Expected default user bastion, got %q", cfg.User)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults must validate: %v", err)
	}
}

func TestLoad_FileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "media_dir: /srv/media\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(consts.EnvConfigFile, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MediaDir != "/srv/media" {
		t.Errorf("Expected media_dir override, got %q", cfg.MediaDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log_level override, got %q", cfg.LogLevel)
	}
	// untouched fields keep defaults
	if cfg.CertsDir != "/certs" {
		t.Errorf("Expected default certs_dir, got %q", cfg.CertsDir)
	}
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	t.Setenv(consts.EnvConfigFile, filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	if err == nil {
		t.Fatal("Expected error for missing explicit config file")
	}
	if cerrors.Code(err) != cerrors.ErrCodeConfigInvalid {
		t.Errorf("Expected config error code, got %v", cerrors.Code(err))
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(consts.EnvModeFile, "/tmp/other-mode")
	t.Setenv(consts.EnvTextfileDir, "/var/lib/textfile")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ModeFile != "/tmp/other-mode" {
		t.Errorf("Expected mode file env override, got %q", cfg.ModeFile)
	}
	if cfg.TextfileDir != "/var/lib/textfile" {
		t.Errorf("Expected textfile dir env override, got %q", cfg.TextfileDir)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.ManageEntry = nil
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for empty manage_entry")
	}

	cfg = Default()
	cfg.MediaDir = "media"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for relative media_dir")
	}

	cfg = Default()
	cfg.User = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for empty user")
	}
}

func TestManage(t *testing.T) {
	cfg := Default()
	argv := cfg.Manage("worker-status", "--json")
	want := []string{"bastion-manage", "worker-status", "--json"}
	if len(argv) != len(want) {
		t.Fatalf("Expected %v, got %v", want, argv)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, argv)
		}
	}
}
