package app

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fkie-cad/ahkdump/procio"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

func pidFromArgs(c *cli.Context) (int, error) {
	pid_, err := strconv.ParseUint(c.Args().Get(0), 10, 64)
	if err != nil {
		return 0, errors.Newf("\"%s\" is not a pid", c.Args().Get(0))
	}
	return int(pid_), nil
}

func listMemory(c *cli.Context) error {
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

	f, err := filterFromArgs(c)
	if err != nil {
		return err
	}

	proc, err := procio.OpenProcess(pid)
	if err != nil {
		return errors.Newf("could not open process with pid %d, reason: %w", pid, err)
	}
	defer proc.Close()

	it, err := proc.MemorySegments()
	if err != nil {
		return errors.Newf("could not enumerate memory segments of process %d, reason: %w", pid, err)
	}
	segments, err := procio.CollectSegments(it)
	if err != nil {
		return errors.Newf("could not enumerate memory segments of process %d, reason: %w", pid, err)
	}

	format := "%19s %8s %4s %13s %7s %s\n"
	fmt.Printf(format, "Address", "Size", "", "Type", "State", "Path")
	fmt.Printf("-------------------+--------+----+-------------+-------+------\n")

	for _, seg := range segments {
		fRes := f.Filter(seg)
		if !fRes.Result {
			continue
		}

		perm := seg.CurrentPermissions.String()
		if seg.Guarded {
			perm += "g"
		}
		fmt.Printf(format, procio.FormatMemorySegmentAddress(seg), humanize.Bytes(uint64(seg.Size)), perm, seg.Type, seg.State, seg.MappedFile)
	}

	return nil
}
