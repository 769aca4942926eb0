// Package gate blocks startup until the backing store is reachable and
// schema migrations are applied. Both steps are external collaborators with
// their own retry policies; the gate only sequences them and turns their
// failures fatal.
package gate

import (
	"strings"

	"github.com/castellan-io/castellan/internal/config"
	"github.com/castellan-io/castellan/internal/subproc"
	cerrors "github.com/castellan-io/castellan/pkg/errors"
	"github.com/castellan-io/castellan/pkg/logger"
)

type Gate struct {
	runner      subproc.Runner
	waitArgv    []string
	migrateArgv []string
}

func New(cfg *config.Config) *Gate {
	return NewWithRunner(cfg, subproc.Inherit())
}

func NewWithRunner(cfg *config.Config, r subproc.Runner) *Gate {
	return &Gate{
		runner:      r,
		waitArgv:    cfg.Manage("wait-for-db"),
		migrateArgv: cfg.Manage("migrate"),
	}
}

// Wait blocks until the store accepts connections, then applies pending
// migrations. The store wait always completes before the migration starts;
// failure of either aborts startup with no partial-success state.
func (g *Gate) Wait() error {
	if err := g.runner.Run(g.waitArgv); err != nil {
		return cerrors.New(cerrors.ErrCodeStoreUnready, "ReadinessGate",
			"backing store did not become reachable ("+strings.Join(g.waitArgv, " ")+")", err)
	}
	if err := g.runner.Run(g.migrateArgv); err != nil {
		return cerrors.New(cerrors.ErrCodeMigrateFailed, "ReadinessGate",
			"schema migrations failed ("+strings.Join(g.migrateArgv, " ")+")", err)
	}
	logger.Log.Info("readiness gate passed", "store", "reachable", "migrations", "applied")
	return nil
}
