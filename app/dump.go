package app

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fkie-cad/ahkdump/procio"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

func dumpMemory(c *cli.Context) error {
	err := initAppAction(c)
	if err != nil {
		return err
	}

	filter, err := filterFromArgs(c)
	if err != nil {
		return err
	}

	var dumper io.WriteCloser
	if c.Bool("raw") {
		dumper = os.Stdout
	} else {
		dumper = hex.Dumper(os.Stdout)
		defer dumper.Close()
	}

	if c.NArg() != 1 && c.NArg() != 2 {
		return errors.Newf("expected exactly one or two arguments, got %d", c.NArg())
	}
	pid, err := pidFromArgs(c)
	if err != nil {
		return err
	}

	var addr uintptr
	allSegments := c.NArg() < 2
	if !allSegments {
		_, err = fmt.Sscan(c.Args().Get(1), &addr)
		if err != nil {
			return errors.Newf("\"%s\" is not an address", c.Args().Get(1))
		}
	}

	proc, err := procio.OpenProcess(pid)
	if err != nil {
		return errors.Newf("could not open process %d, reason: %w", pid, err)
	}
	defer proc.Close()

	it, err := proc.MemorySegments()
	if err != nil {
		return errors.Newf("could not retrieve memory segments of process %d, reason: %w", pid, err)
	}
	segments, err := procio.CollectSegments(it)
	if err != nil {
		return errors.Newf("could not retrieve memory segments of process %d, reason: %w", pid, err)
	}

	readContiguous := c.Int("contiguous")
	found := false
	for i, seg := range segments {
		if seg.BaseAddress == addr || allSegments {
			found = true
		}
		if !found {
			continue
		}
		fmt.Printf("%s: ", procio.FormatMemorySegmentAddress(seg))
		match := filter.Filter(seg)
		if allSegments && !match.Result {
			fmt.Println("skipping, " + match.Reason)
			continue
		}
		if !seg.IsReadable() {
			fmt.Println("skipping, segment is not readable")
		} else {
			data := procio.ReadSegment(proc, seg)

			if c.Bool("store") {
				fname := fmt.Sprintf("%d_%s_0x%X.bin", pid, seg.CurrentPermissions.String(), seg.BaseAddress)
				path := filepath.Join(c.String("storage-dir"), fname)
				err = os.WriteFile(path, data, 0644)
				if err != nil {
					fmt.Println(errors.Newf("could not dump segment to file \"%s\", reason: %w", path, err))
					continue
				}
				fmt.Printf("dumped to \"%s\"\n", path)
			} else {
				fmt.Println()
				_, err = dumper.Write(data)
				if err != nil {
					return errors.Newf("could not dump memory of process %d at address %s, reason %w", pid, procio.FormatMemorySegmentAddress(seg), err)
				}
			}
		}

		if !allSegments &&
			(readContiguous == 0 || (i+1 < len(segments) && segments[i+1].BaseAddress != seg.End())) {
			// Next segment is not contiguous
			break
		}
		readContiguous--
	}
	if !found {
		return errors.Newf("process %d has no memory segment starting with address %s", pid, procio.FormatAddress(addr))
	}
	return nil
}
