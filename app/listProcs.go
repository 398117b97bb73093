package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fkie-cad/ahkdump/procio"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

func listProcesses(c *cli.Context) error {
	err := initAppAction(c)
	if err != nil {
		return err
	}

	entries, err := procio.GetRunningProcesses()
	if err != nil {
		return errors.Newf("could not enumerate processes, reason: %w", err)
	}

	if c.IsSet("children-of") {
		parent := c.Int("children-of")
		entries, err = procio.Descendants(entries, parent)
		if err != nil {
			return errors.Newf("could not list children of process %d, reason: %w", parent, err)
		}
	}

	maxPidlen := 5
	maxNamelen := 4
	for _, e := range entries {
		pidLen := len(strconv.Itoa(e.PID))
		if maxPidlen < pidLen {
			maxPidlen = pidLen
		}
		if maxNamelen < len(e.Name) {
			maxNamelen = len(e.Name)
		}
	}

	headerFmt := fmt.Sprintf("%%%ds %%%ds %%-%ds\n", maxPidlen, maxPidlen, maxNamelen)
	rowFmt := fmt.Sprintf("%%%dd %%%dd %%-%ds\n", maxPidlen, maxPidlen, maxNamelen)
	fmt.Printf(headerFmt, "PID", "PPID", "Name")
	fmt.Println(strings.Repeat("-", maxPidlen) + "+" + strings.Repeat("-", maxPidlen) + "+" + strings.Repeat("-", maxNamelen))
	for _, e := range entries {
		fmt.Printf(rowFmt, e.PID, e.ParentPID, e.Name)
	}

	return nil
}
