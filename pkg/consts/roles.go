package consts

// Role selects the startup procedure for a single castellan invocation.
// It is fixed once the dispatcher has matched the first argument; the only
// way a role crosses a process boundary is through the recorded mode file.
type Role string

const (
	RoleServer       Role = "server"
	RoleWorker       Role = "worker"
	RoleWorkerStatus Role = "worker-status"
	RoleShell        Role = "interactive-shell"
	RoleTest         Role = "run-tests"
	RoleHealthcheck  Role = "healthcheck"
	RoleDumpConfig   Role = "dump-config"
	RoleDebug        Role = "debug"

	// RoleDefault is the permissive catch-all: any unmatched token is
	// forwarded verbatim to the manage entry point, never rejected.
	RoleDefault Role = "default"
)

// Known reports whether r is one of the fixed role tokens. RoleDefault is
// not a token a caller passes; it is what every unknown token becomes.
func Known(r Role) bool {
	switch r {
	case RoleServer, RoleWorker, RoleWorkerStatus, RoleShell, RoleTest,
		RoleHealthcheck, RoleDumpConfig, RoleDebug:
		return true
	}
	return false
}

// Environment variables honored by the orchestrator itself. The bootstrap
// pair triggers a one-shot task by presence alone; their values are passed
// through to the application untouched and never inspected here.
const (
	EnvBootstrapPassword = "BASTION_BOOTSTRAP_PASSWORD"
	EnvBootstrapToken    = "BASTION_BOOTSTRAP_TOKEN"
	EnvConfigFile        = "CASTELLAN_CONFIG"
	EnvTextfileDir       = "CASTELLAN_TEXTFILE_DIR"
	EnvLogLevel          = "CASTELLAN_LOG_LEVEL"
	EnvModeFile          = "CASTELLAN_MODE_FILE"
)
