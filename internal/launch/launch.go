// Package launch is the terminal step of every long-running role: it
// replaces the current process image with the target program. After a
// successful Exec no castellan code is running anymore; signals, exit codes
// and I/O all belong to the replaced program.
package launch

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/opencontainers/runc/libcontainer/system"

	"github.com/castellan-io/castellan/internal/config"
	cerrors "github.com/castellan-io/castellan/pkg/errors"
	"github.com/castellan-io/castellan/pkg/logger"
)

// Credential is the identity the process assumes immediately before the
// exec. Groups is the full supplementary list, already including the
// reconciled shared-socket group when one exists.
type Credential struct {
	UID    int
	GID    int
	Groups []int
	// Home is exported as $HOME after the drop.
	Home string
	// Spec is the "user:group" label for logs, using the resolved group
	// name rather than a guessed one.
	Spec string
}

// Execer replaces the process image. cred may be nil (keep current
// identity); env entries are exported on top of the inherited environment.
type Execer interface {
	Exec(argv []string, cred *Credential, env map[string]string) error
}

// Replacer is the real Execer. The syscall hooks are fields so tests can
// observe an exec that must never actually happen in-process.
type Replacer struct {
	lookPath func(file string) (string, error)
	stat     func(name string) (os.FileInfo, error)
	execve   func(argv0 string, argv []string, envv []string) error
	setcred  func(cred *Credential) error
}

func New() *Replacer {
	return &Replacer{
		lookPath: exec.LookPath,
		stat:     os.Stat,
		execve:   syscall.Exec,
		setcred:  applyCredential,
	}
}

// Exec resolves argv[0], applies cred, exports env and replaces the process
// image. It only ever returns an error; on success it does not return.
func (r *Replacer) Exec(argv []string, cred *Credential, env map[string]string) error {
	if len(argv) == 0 {
		return cerrors.New(cerrors.ErrCodeTargetNotFound, "Exec", "empty argv", nil)
	}
	path, err := r.lookPath(argv[0])
	if err != nil {
		return cerrors.New(cerrors.ErrCodeTargetNotFound, "Exec",
			"target not found: "+argv[0], err)
	}

	if cred != nil {
		if err := r.setcred(cred); err != nil {
			return cerrors.New(cerrors.ErrCodeDropFailed, "Exec",
				"dropping privileges to "+cred.Spec, err)
		}
	}
	for k, v := range env {
		if err := os.Setenv(k, v); err != nil {
			return cerrors.New(cerrors.ErrCodeExecFailed, "Exec", "setting "+k, err)
		}
	}

	spec := "current identity"
	if cred != nil {
		spec = cred.Spec
	}
	logger.Log.Info("replacing process image", "target", path, "argv", argv, "identity", spec)
	if err := r.execve(path, argv, os.Environ()); err != nil {
		return cerrors.New(cerrors.ErrCodeExecFailed, "Exec", "execve "+path, err)
	}
	return nil
}

// ResolveServer picks the server target: the installed binary when present,
// otherwise the from-source fallback (a development-mode path, not an
// error). Neither existing is fatal; no further fallback is attempted.
func (r *Replacer) ResolveServer(cfg *config.Config) ([]string, error) {
	if _, err := r.stat(cfg.ServerBinary); err == nil {
		return []string{cfg.ServerBinary}, nil
	}
	if len(cfg.ServerFallback) > 0 {
		if _, err := r.lookPath(cfg.ServerFallback[0]); err == nil {
			logger.Log.Info("installed server binary absent, using fallback",
				"binary", cfg.ServerBinary, "fallback", cfg.ServerFallback)
			return append([]string{}, cfg.ServerFallback...), nil
		}
	}
	return nil, cerrors.New(cerrors.ErrCodeTargetNotFound, "ResolveServer",
		"neither installed binary nor fallback available", nil)
}

// applyCredential is the actual drop: supplementary groups, then gid, then
// uid, in that order — setgroups and setgid require root and must precede
// setuid. HOME is overridden last so the replaced program sees it.
func applyCredential(cred *Credential) error {
	if err := syscall.Setgroups(cred.Groups); err != nil {
		return err
	}
	if err := system.Setgid(cred.GID); err != nil {
		return err
	}
	if err := system.Setuid(cred.UID); err != nil {
		return err
	}
	if cred.Home != "" {
		if err := os.Setenv("HOME", cred.Home); err != nil {
			return err
		}
	}
	return nil
}
