// Package cli is the role dispatcher. The first argument selects exactly one
// startup procedure; everything after it is forwarded verbatim. A token that
// matches no fixed role is not an error — it falls through to the root
// command, which forwards the whole argument list to the Bastion manage
// entry point.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/castellan-io/castellan/internal/boot"
	"github.com/castellan-io/castellan/internal/config"
	"github.com/castellan-io/castellan/pkg/consts"
	"github.com/castellan-io/castellan/pkg/logger"
)

// Booter is the boot sequence surface the dispatcher drives; tests inject a
// recording fake.
type Booter interface {
	Server(extra []string) error
	Worker(extra []string) error
	Gated(argv []string) error
	Direct(argv []string) error
	Probe() error
}

func newRootCmd(cfg *config.Config, b Booter) *cobra.Command {
	root := &cobra.Command{
		Use:   "castellan [role] [args...]",
		Short: "Startup orchestrator for the Bastion container image",
		Args:  cobra.ArbitraryArgs,
		// Arguments belong to the replaced program, not to castellan:
		// nothing here parses flags.
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return b.Direct(cfg.Manage(args...))
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	sub := func(role consts.Role, short string, run func(args []string) error) {
		root.AddCommand(&cobra.Command{
			Use:                string(role),
			Short:              short,
			Args:               cobra.ArbitraryArgs,
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(args)
			},
		})
	}

	sub(consts.RoleServer, "Start the application server", b.Server)
	sub(consts.RoleWorker, "Start the task-queue worker", b.Worker)
	sub(consts.RoleWorkerStatus, "Show worker status", func(args []string) error {
		return b.Direct(cfg.Manage(append([]string{"worker-status"}, args...)...))
	})
	sub(consts.RoleShell, "Open an interactive shell", func(args []string) error {
		return b.Direct(append([]string{cfg.Shell}, args...))
	})
	sub(consts.RoleTest, "Run the application test suite", func(args []string) error {
		return b.Gated(cfg.Manage(append([]string{"test"}, args...)...))
	})
	sub(consts.RoleHealthcheck, "Probe the active role's health", func(args []string) error {
		return b.Probe()
	})
	sub(consts.RoleDumpConfig, "Dump the application configuration", func(args []string) error {
		return b.Direct(cfg.Manage(append([]string{"dump-config"}, args...)...))
	})
	sub(consts.RoleDebug, "Keep the container alive for debugging", func(args []string) error {
		logger.Log.Info("debug role: holding container open")
		return b.Direct([]string{"sleep", "infinity"})
	})

	return root
}

func Execute() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "castellan: %v\n", err)
		os.Exit(1)
	}
	logger.InitLogger(cfg.LogLevel)

	root := newRootCmd(cfg, boot.New(cfg))
	if err := root.Execute(); err != nil {
		logger.Log.Error("startup failed", "err", err)
		os.Exit(1)
	}
}
