package app

import (
	"fmt"
	"os"

	"github.com/fkie-cad/ahkdump"
	"github.com/fkie-cad/ahkdump/output"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

func extractResources(c *cli.Context) error {
	err := initAppAction(c)
	if err != nil {
		return err
	}

	if c.NArg() != 1 {
		return errors.Newf("expected exactly one argument, got %d", c.NArg())
	}

	storage, err := ahkdump.NewDirectoryStorage(c.String("output-dir"))
	if err != nil {
		return err
	}
	defer storage.Close()

	observer := ahkdump.NewMultiObserver(
		ahkdump.NewLogrusObserver(nil),
		output.NewConsoleReporter(os.Stdout, false),
	)
	n, err := ahkdump.NewResourceExtractor(storage, observer).ExtractFile(c.Args().First())
	if err != nil {
		return err
	}
	fmt.Printf("Extracted %d script(s), %s.\n", n, storage.Hint())
	return nil
}
