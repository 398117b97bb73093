package procio

import (
	"os/exec"

	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
)

// StartProcess launches the executable at path with the given arguments
// and returns its PID. The child is reaped in the background so that
// its exit is observable through ProcessTable.Exists.
func StartProcess(path string, args []string) (int, error) {
	cmd := exec.Command(path, args...)
	err := cmd.Start()
	if err != nil {
		return 0, errors.Newf("could not start \"%s\", reason: %w", path, err)
	}

	pid := cmd.Process.Pid
	go func() {
		err := cmd.Wait()
		logrus.WithFields(logrus.Fields{
			"pid":  pid,
			"path": path,
		}).WithError(err).Debug("Started process exited.")
	}()
	return pid, nil
}
