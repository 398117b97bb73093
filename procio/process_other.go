//go:build !windows && !linux

package procio

import (
	"runtime"

	"github.com/fkie-cad/ahkdump/arch"
)

// ExecutableSuffix is the file name suffix of executables on this platform.
const ExecutableSuffix = ""

func errNotImplemented() error {
	return &arch.ErrNotImplemented{Feature: "process access", GOOS: runtime.GOOS}
}

func open(pid int) (Process, error) {
	return nil, errNotImplemented()
}

func processExists(pid int) bool {
	return false
}

func listProcesses() ([]*ProcessEntry, error) {
	return nil, errNotImplemented()
}

func terminate(pid int) error {
	return errNotImplemented()
}
