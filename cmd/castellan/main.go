package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/castellan-io/castellan/internal/cli"
	"github.com/castellan-io/castellan/pkg/logger"
)

func init() {
	// Single OS thread: the setgid/setuid drop must apply to the same
	// thread that later performs the exec.
	runtime.GOMAXPROCS(1)
	runtime.LockOSThread()
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			if logger.Log != nil {
				logger.Log.Error("panic recovered", "panic", r)
			} else {
				fmt.Fprintf(os.Stderr, "panic recovered: %v\n", r)
			}
			os.Exit(1)
		}
	}()

	cli.Execute()
}
