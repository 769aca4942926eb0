package launch

import (
	"errors"
	"os"
	"testing"

	"github.com/castellan-io/castellan/internal/config"
	cerrors "github.com/castellan-io/castellan/pkg/errors"
)

func testReplacer() (*Replacer, *execRecord) {
	rec := &execRecord{installed: map[string]bool{}, onPath: map[string]bool{}}
	r := &Replacer{
		lookPath: func(file string) (string, error) {
			if rec.onPath[file] {
				return "/usr/bin/" + file, nil
			}
			return "", errors.New("not found in $PATH")
		},
		stat: func(name string) (os.FileInfo, error) {
			if rec.installed[name] {
				return nil, nil
			}
			return nil, os.ErrNotExist
		},
		execve: func(argv0 string, argv []string, envv []string) error {
			rec.execArgv0 = argv0
			rec.execArgv = argv
			return nil
		},
		setcred: func(cred *Credential) error {
			rec.cred = cred
			return nil
		},
	}
	return r, rec
}

type execRecord struct {
	installed map[string]bool
	onPath    map[string]bool
	execArgv0 string
	execArgv  []string
	cred      *Credential
}

func TestExec_ArgvAndEnv(t *testing.T) {
	r, rec := testReplacer()
	rec.onPath["bastion-manage"] = true

	err := r.Exec([]string{"bastion-manage", "worker"}, nil, map[string]string{"HOME": "/opt/bastion"})
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if rec.execArgv0 != "/usr/bin/bastion-manage" {
		t.Errorf("Expected resolved path, got %q", rec.execArgv0)
	}
	if len(rec.execArgv) != 2 || rec.execArgv[1] != "worker" {
		t.Errorf("Expected argv passthrough, got %v", rec.execArgv)
	}
	if os.Getenv("HOME") != "/opt/bastion" {
		t.Errorf("Expected HOME override, got %q", os.Getenv("HOME"))
	}
	if rec.cred != nil {
		t.Error("No credential given, none should be applied")
	}
}

func TestExec_AppliesCredentialBeforeExec(t *testing.T) {
	r, rec := testReplacer()
	rec.onPath["bastion-server"] = true

	cred := &Credential{UID: 1000, GID: 1000, Groups: []int{1000, 998}, Spec: "bastion:docker"}
	if err := r.Exec([]string{"bastion-server"}, cred, nil); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if rec.cred != cred {
		t.Error("Credential was not applied")
	}
}

func TestExec_TargetNotFound(t *testing.T) {
	r, rec := testReplacer()
	err := r.Exec([]string{"missing-program"}, nil, nil)
	if err == nil {
		t.Fatal("Expected error for missing target")
	}
	if cerrors.Code(err) != cerrors.ErrCodeTargetNotFound {
		t.Errorf("Expected target-not-found code, got %v", cerrors.Code(err))
	}
	if rec.execArgv0 != "" {
		t.Error("execve must not run for a missing target")
	}
}

func TestResolveServer_PrefersInstalledBinary(t *testing.T) {
	r, rec := testReplacer()
	cfg := config.Default()
	rec.installed[cfg.ServerBinary] = true
	rec.onPath["bastion-manage"] = true

	argv, err := r.ResolveServer(cfg)
	if err != nil {
		t.Fatalf("ResolveServer failed: %v", err)
	}
	if len(argv) != 1 || argv[0] != cfg.ServerBinary {
		t.Errorf("Expected installed binary, got %v", argv)
	}
}

func TestResolveServer_FallbackWhenBinaryAbsent(t *testing.T) {
	r, rec := testReplacer()
	cfg := config.Default()
	rec.onPath["bastion-manage"] = true

	argv, err := r.ResolveServer(cfg)
	if err != nil {
		t.Fatalf("ResolveServer failed: %v", err)
	}
	if len(argv) != 2 || argv[0] != "bastion-manage" || argv[1] != "runserver" {
		t.Errorf("Expected manage fallback, got %v", argv)
	}
}

func TestResolveServer_NeitherTarget(t *testing.T) {
	r, _ := testReplacer()
	_, err := r.ResolveServer(config.Default())
	if err == nil {
		t.Fatal("Expected error when both targets are absent")
	}
	if cerrors.Code(err) != cerrors.ErrCodeTargetNotFound {
		t.Errorf("Expected target-not-found code, got %v", cerrors.Code(err))
	}
}
