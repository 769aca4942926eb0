// Package boot strings the startup components together per role. The order
// is load-bearing — the gate must pass before anything is recorded, the mode
// must be recorded before privileges change, and the exec is always last —
// so the sequence runs through a phase machine: firing a phase out of order
// is an invalid transition, not a silent reordering.
package boot

import (
	"os"
	"time"

	"github.com/castellan-io/castellan/internal/config"
	"github.com/castellan-io/castellan/internal/gate"
	"github.com/castellan-io/castellan/internal/health"
	"github.com/castellan-io/castellan/internal/launch"
	"github.com/castellan-io/castellan/internal/modestate"
	"github.com/castellan-io/castellan/internal/monitor"
	"github.com/castellan-io/castellan/internal/privdrop"
	"github.com/castellan-io/castellan/internal/subproc"
	"github.com/castellan-io/castellan/pkg/consts"
	cerrors "github.com/castellan-io/castellan/pkg/errors"
	"github.com/castellan-io/castellan/pkg/fsm"
	"github.com/castellan-io/castellan/pkg/logger"
)

const (
	phasePending     fsm.State = "pending"
	phaseGated       fsm.State = "gated"
	phaseRecorded    fsm.State = "recorded"
	phaseProvisioned fsm.State = "provisioned"
	phaseNormalized  fsm.State = "normalized"
	phaseHandoff     fsm.State = "handoff"
)

const (
	evGate      fsm.Event = "gate"
	evRecord    fsm.Event = "record"
	evProvision fsm.Event = "provision"
	evNormalize fsm.Event = "normalize"
	evExec      fsm.Event = "exec"
)

// Gate blocks until the backing store is ready.
type Gate interface {
	Wait() error
}

// Modes records the active role for later healthcheck invocations.
type Modes interface {
	Record(role consts.Role) error
	Cleanup()
}

// Normalizer prepares the drop credential, or nil when already unprivileged.
type Normalizer interface {
	Normalize() (*launch.Credential, error)
}

// Prober runs the healthcheck role.
type Prober interface {
	Probe() error
}

// Sequence wires the components for one invocation.
type Sequence struct {
	cfg     *config.Config
	gate    Gate
	modes   Modes
	priv    Normalizer
	exec    launch.Execer
	runner  subproc.Runner
	metrics *monitor.Boot
	prober  Prober

	resolveServer func() ([]string, error)
	getenv        func(string) string
}

func New(cfg *config.Config) *Sequence {
	replacer := launch.New()
	store := modestate.New(cfg.ModeFile)
	return &Sequence{
		cfg:     cfg,
		gate:    gate.New(cfg),
		modes:   store,
		priv:    privdrop.New(cfg),
		exec:    replacer,
		runner:  subproc.Inherit(),
		metrics: monitor.NewBoot(),
		prober:  health.New(cfg, store, replacer),
		resolveServer: func() ([]string, error) {
			return replacer.ResolveServer(cfg)
		},
		getenv: os.Getenv,
	}
}

// Server runs the full sequence for the server role. Extra arguments are
// appended to the resolved server target.
func (s *Sequence) Server(extra []string) error {
	argv, err := s.resolveServer()
	if err != nil {
		return err
	}
	argv = append(argv, extra...)
	return s.longRunning(consts.RoleServer, argv, true)
}

// Worker runs the full sequence for the worker role.
func (s *Sequence) Worker(extra []string) error {
	return s.longRunning(consts.RoleWorker, s.cfg.Manage(append([]string{"worker"}, extra...)...), false)
}

// Gated passes the readiness gate, then hands off — for short-lived roles
// that need a migrated store but record no mode and keep their identity.
func (s *Sequence) Gated(argv []string) error {
	m := fsm.New(phasePending)
	m.AddTransition(phasePending, phaseGated, evGate, s.gateHandler())
	m.AddTransition(phaseGated, phaseHandoff, evExec, func(fsm.Event, ...interface{}) error {
		return s.exec.Exec(argv, nil, nil)
	})
	for _, ev := range []fsm.Event{evGate, evExec} {
		if err := m.Fire(ev); err != nil {
			return err
		}
	}
	return nil
}

// Direct hands off immediately under the current identity.
func (s *Sequence) Direct(argv []string) error {
	return s.exec.Exec(argv, nil, nil)
}

// Probe runs the healthcheck role.
func (s *Sequence) Probe() error {
	return s.prober.Probe()
}

func (s *Sequence) longRunning(role consts.Role, argv []string, withBootstrap bool) error {
	var (
		cred     *launch.Credential
		recorded bool
	)

	m := fsm.New(phasePending)
	m.AddTransition(phasePending, phaseGated, evGate, s.gateHandler())
	m.AddTransition(phaseGated, phaseRecorded, evRecord, func(fsm.Event, ...interface{}) error {
		if err := s.modes.Record(role); err != nil {
			return err
		}
		recorded = true
		return nil
	})
	m.AddTransition(phaseRecorded, phaseProvisioned, evProvision, func(fsm.Event, ...interface{}) error {
		if !withBootstrap {
			return nil
		}
		return s.maybeBootstrap()
	})
	m.AddTransition(phaseProvisioned, phaseNormalized, evNormalize, func(fsm.Event, ...interface{}) error {
		var err error
		cred, err = s.priv.Normalize()
		return err
	})
	m.AddTransition(phaseNormalized, phaseHandoff, evExec, func(fsm.Event, ...interface{}) error {
		s.metrics.MarkHandoff(role)
		s.metrics.Flush(s.cfg.TextfileDir)
		return s.exec.Exec(argv, cred, nil)
	})

	// Runs only when the process was not replaced: the exec cuts every
	// deferred call off. A startup that fails after recording clears the
	// record so later probes see "unknown" rather than a role that never
	// came up.
	defer func() {
		if recorded {
			s.modes.Cleanup()
		}
	}()

	logger.Log.Info("boot sequence starting", "role", string(role))
	for _, ev := range []fsm.Event{evGate, evRecord, evProvision, evNormalize, evExec} {
		if err := m.Fire(ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequence) gateHandler() fsm.Handler {
	return func(fsm.Event, ...interface{}) error {
		start := time.Now()
		if err := s.gate.Wait(); err != nil {
			return err
		}
		s.metrics.ObserveGate(time.Since(start))
		return nil
	}
}

// maybeBootstrap runs the one-shot bootstrap task when either credential
// variable is present. Presence is the whole contract — the values go to the
// application untouched.
func (s *Sequence) maybeBootstrap() error {
	if s.getenv(consts.EnvBootstrapPassword) == "" && s.getenv(consts.EnvBootstrapToken) == "" {
		logger.Log.Debug("no bootstrap credentials present, skipping bootstrap task")
		return nil
	}
	logger.Log.Info("bootstrap credentials present, running one-shot bootstrap task")
	if err := s.runner.Run(s.cfg.Manage("bootstrap-tasks")); err != nil {
		return cerrors.New(cerrors.ErrCodeBootstrapFailed, "Bootstrap",
			"one-shot bootstrap task failed", err)
	}
	return nil
}
