// Package subproc runs castellan's external collaborators — the migration
// tool, the bootstrap one-shot, the group management commands. Every
// collaborator is a blocking subprocess with inherited standard streams;
// castellan imposes no timeout of its own on any of them.
package subproc

import (
	"os"
	"os/exec"

	"github.com/castellan-io/castellan/pkg/logger"
)

// Runner runs one external command to completion. Components take a Runner
// so tests can substitute a recording fake.
type Runner interface {
	Run(argv []string) error
}

type inheritRunner struct{}

// Inherit returns a Runner that wires the child to this process's stdin,
// stdout and stderr and waits for it to exit.
func Inherit() Runner {
	return inheritRunner{}
}

func (inheritRunner) Run(argv []string) error {
	if len(argv) == 0 {
		return nil
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	logger.Log.Debug("running external command", "argv", argv)
	return cmd.Run()
}
