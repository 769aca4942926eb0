// Package config holds the container-image contracts castellan operates
// against: fixed paths, the unprivileged account, and the external programs
// it hands off to. Everything has a compiled-in default matching the Bastion
// image; a yaml file and a handful of environment variables can override
// individual values for development images.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/castellan-io/castellan/pkg/consts"
	cerrors "github.com/castellan-io/castellan/pkg/errors"
)

// DefaultFile is consulted when CASTELLAN_CONFIG is unset. Its absence is
// normal; the compiled defaults are the production configuration.
const DefaultFile = "/etc/castellan/config.yaml"

type Config struct {
	// ModeFile is where the active role is recorded for later healthcheck
	// invocations. Lives under tmp: the record is scoped to the container
	// instance, not to any single process.
	ModeFile string `yaml:"mode_file"`

	// DockerSocket is the shared socket whose group ownership is reconciled
	// before the privilege drop, when it exists.
	DockerSocket string `yaml:"docker_socket"`

	// MediaDir and CertsDir are the two data directories whose ownership is
	// normalized on privileged startup. Media is read-write for the app;
	// certs are consumed, never produced.
	MediaDir string `yaml:"media_dir"`
	CertsDir string `yaml:"certs_dir"`

	// User is the unprivileged account the long-running roles drop to.
	User string `yaml:"user"`
	// Home overrides $HOME after the drop.
	Home string `yaml:"home"`

	// ManageEntry is the generic management entry point of the application;
	// the catch-all role and most short-lived roles forward to it.
	ManageEntry []string `yaml:"manage_entry"`

	// ServerBinary is the installed server target. When absent the server
	// role falls back to the manage entry point (development images).
	ServerBinary   string   `yaml:"server_binary"`
	ServerFallback []string `yaml:"server_fallback"`

	// Shell is the interactive-shell target.
	Shell string `yaml:"shell"`

	// TextfileDir, when set, receives boot metrics in node-exporter
	// textfile format. Empty disables the flush.
	TextfileDir string `yaml:"textfile_dir"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the production contracts of the Bastion image.
func Default() *Config {
	return &Config{
		ModeFile:       "/tmp/bastion-mode",
		DockerSocket:   "/var/run/docker.sock",
		MediaDir:       "/media",
		CertsDir:       "/certs",
		User:           "bastion",
		Home:           "/opt/bastion",
		ManageEntry:    []string{"bastion-manage"},
		ServerBinary:   "/opt/bastion/bin/bastion-server",
		ServerFallback: []string{"bastion-manage", "runserver"},
		Shell:          "/bin/bash",
		LogLevel:       "info",
	}
}

// Load builds the effective configuration: defaults, then the yaml file if
// one exists, then environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	path := os.Getenv(consts.EnvConfigFile)
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, cerrors.New(cerrors.ErrCodeConfigInvalid, "LoadConfig",
				fmt.Sprintf("parsing %s", path), err)
		}
	case os.IsNotExist(err) && !explicit:
		// defaults only
	default:
		return nil, cerrors.New(cerrors.ErrCodeConfigInvalid, "LoadConfig",
			fmt.Sprintf("reading %s", path), err)
	}

	if v := os.Getenv(consts.EnvModeFile); v != "" {
		cfg.ModeFile = v
	}
	if v := os.Getenv(consts.EnvTextfileDir); v != "" {
		cfg.TextfileDir = v
	}
	if v := os.Getenv(consts.EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the boot sequence cannot act on.
func (c *Config) Validate() error {
	if len(c.ManageEntry) == 0 {
		return cerrors.New(cerrors.ErrCodeConfigInvalid, "ValidateConfig", "manage_entry must not be empty", nil)
	}
	if c.User == "" {
		return cerrors.New(cerrors.ErrCodeConfigInvalid, "ValidateConfig", "user must not be empty", nil)
	}
	for name, p := range map[string]string{
		"mode_file": c.ModeFile,
		"media_dir": c.MediaDir,
		"certs_dir": c.CertsDir,
	} {
		if !filepath.IsAbs(p) {
			return cerrors.New(cerrors.ErrCodeConfigInvalid, "ValidateConfig",
				fmt.Sprintf("%s must be an absolute path, got %q", name, p), nil)
		}
	}
	return nil
}

// Manage builds an argv for the management entry point.
func (c *Config) Manage(args ...string) []string {
	argv := make([]string, 0, len(c.ManageEntry)+len(args))
	argv = append(argv, c.ManageEntry...)
	argv = append(argv, args...)
	return argv
}
