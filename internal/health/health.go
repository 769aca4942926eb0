// Package health implements the healthcheck role. It is a separate,
// short-lived invocation that discovers the container's active role from the
// mode record and replaces itself with the application's health probe for
// that role, so the probe's exit status is the container's verdict.
package health

import (
	"github.com/castellan-io/castellan/internal/config"
	"github.com/castellan-io/castellan/internal/launch"
	"github.com/castellan-io/castellan/pkg/consts"
	cerrors "github.com/castellan-io/castellan/pkg/errors"
	"github.com/castellan-io/castellan/pkg/logger"
)

// ModeSource reports the recorded role, if any.
type ModeSource interface {
	Current() (consts.Role, bool)
}

type Prober struct {
	cfg   *config.Config
	modes ModeSource
	exec  launch.Execer
}

func New(cfg *config.Config, modes ModeSource, exec launch.Execer) *Prober {
	return &Prober{cfg: cfg, modes: modes, exec: exec}
}

// Probe execs the application healthcheck for the recorded role. An absent
// record is a caller error — the container was never started with a
// long-running role — and fails deterministically without running any probe.
func (p *Prober) Probe() error {
	role, ok := p.modes.Current()
	if !ok {
		return cerrors.New(cerrors.ErrCodeModeUnknown, "HealthProbe",
			"no role recorded; container was not started with a long-running role", nil)
	}
	logger.Log.Debug("probing health", "role", string(role))
	return p.exec.Exec(p.cfg.Manage("healthcheck", string(role)), nil, nil)
}
