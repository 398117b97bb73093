package app

import (
	"fmt"

	"github.com/fkie-cad/ahkdump/report"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

func validateReport(c *cli.Context) error {
	err := initAppAction(c)
	if err != nil {
		return err
	}

	if c.NArg() != 1 {
		return errors.Newf("expected exactly one argument, got %d", c.NArg())
	}

	encryption, err := pgpOptionsFromArgs(c, "")
	if err != nil {
		return err
	}
	data, err := report.ReadFile(c.Args().First(), encryption)
	if err != nil {
		return err
	}

	validator, err := report.NewValidator()
	if err != nil {
		return err
	}
	err = validator.Validate(data)
	if err != nil {
		return errors.Errorf("report is invalid, reason: %w", err)
	}

	rprt, err := report.Parse(data)
	if err != nil {
		return err
	}

	fmt.Printf("Report %s is valid.\n", rprt.Meta.ReportID)
	fmt.Printf("Written by ahkdump %s, format %s.\n", rprt.Meta.AhkdumpVersion, rprt.Meta.FormatVersion)
	if rprt.Stats != nil {
		fmt.Printf("%d process(es), %d script(s) extracted in %.3fs.\n", rprt.Stats.Processes, rprt.Stats.TotalScripts, rprt.Stats.Duration.Seconds())
	}
	if rprt.Error != nil {
		fmt.Printf("Run failed: %s\n", rprt.Error.Message)
	}
	return nil
}
