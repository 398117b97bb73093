package app

import (
	"fmt"

	"github.com/fkie-cad/ahkdump/procio"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

func terminateProcessTree(c *cli.Context) error {
	err := initAppAction(c)
	if err != nil {
		return err
	}

	if c.NArg() != 1 {
		return errors.Newf("expected exactly one argument, got %d", c.NArg())
	}
	pid, err := pidFromArgs(c)
	if err != nil {
		return err
	}

	table := procio.NativeTable()
	children, err := table.Children(pid)
	if err != nil {
		return errors.Newf("could not list children of process %d, reason: %w", pid, err)
	}

	// Deepest descendants first, the root last.
	pids := make([]int, 0, len(children)+1)
	for i := len(children) - 1; i >= 0; i-- {
		pids = append(pids, children[i].PID)
	}
	pids = append(pids, pid)

	var errs error
	for _, p := range pids {
		err := table.Terminate(p)
		if err != nil {
			errs = errors.NewMultiError(errs, errors.Newf("could not terminate process %d, reason: %w", p, err))
			continue
		}
		fmt.Printf("Terminated process %d.\n", p)
	}
	return errs
}
