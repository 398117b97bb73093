package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Velocidex/ordereddict"
	"github.com/dustin/go-humanize"
	"github.com/fkie-cad/ahkdump/pefile"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

func analysisToDict(a *pefile.Analysis) *ordereddict.Dict {
	sections := make([]*ordereddict.Dict, 0, len(a.Sections))
	for _, s := range a.Sections {
		sections = append(sections, ordereddict.NewDict().
			Set("Name", s.Name).
			Set("VirtualAddress", fmt.Sprintf("0x%X", s.VirtualAddress)).
			Set("VirtualSize", s.VirtualSize).
			Set("SizeOfRawData", s.SizeOfRawData).
			Set("Entropy", fmt.Sprintf("%.3f", s.Entropy)))
	}

	packer := ordereddict.NewDict().
		Set("Name", a.Packer.Packer).
		Set("Version", a.Packer.Version).
		Set("Confidence", a.Packer.Confidence)

	return ordereddict.NewDict().
		Set("Path", a.Path).
		Set("FileSize", a.FileSize).
		Set("Bitness", a.Bitness.String()).
		Set("EntryPoint", fmt.Sprintf("0x%X", a.EntryPoint)).
		Set("ImageBase", fmt.Sprintf("0x%X", a.ImageBase)).
		Set("IsAutoHotkey", a.IsAutoHotkey).
		Set("AutoHotkeyVersion", a.AutoHotkeyVersion).
		Set("Compiler", a.Compiler).
		Set("CompilerVersion", a.CompilerVersion).
		Set("Packer", packer).
		Set("HighEntropySections", a.HighEntropySections()).
		Set("OverlaySize", a.OverlaySize).
		Set("RCDataResources", a.RCDataResources).
		Set("Sections", sections)
}

func printAnalysis(a *pefile.Analysis) {
	fmt.Printf("Path:                %s\n", a.Path)
	fmt.Printf("File size:           %s\n", humanize.IBytes(uint64(a.FileSize)))
	fmt.Printf("Bitness:             %s\n", a.Bitness)
	fmt.Printf("Entry point:         0x%X\n", a.EntryPoint)
	fmt.Printf("Image base:          0x%X\n", a.ImageBase)
	if a.IsAutoHotkey {
		fmt.Printf("AutoHotkey:          yes %s\n", a.AutoHotkeyVersion)
	} else {
		fmt.Printf("AutoHotkey:          no\n")
	}
	fmt.Printf("Compiler:            %s %s\n", a.Compiler, a.CompilerVersion)
	if a.IsPacked() {
		fmt.Printf("Packer:              %s %s (%.0f%%)\n", a.Packer.Packer, a.Packer.Version, a.Packer.Confidence*100)
	} else {
		fmt.Printf("Packer:              none\n")
	}
	fmt.Printf("Overlay:             %s\n", humanize.IBytes(uint64(a.OverlaySize)))
	fmt.Printf("RCDATA resources:    %d\n", a.RCDataResources)
	fmt.Println()

	format := "%-8s %10s %10s %10s %7s\n"
	fmt.Printf(format, "Section", "VAddr", "VSize", "RawSize", "Entropy")
	fmt.Println(strings.Repeat("-", 8) + "+" + strings.Repeat("-", 10) + "+" + strings.Repeat("-", 10) + "+" + strings.Repeat("-", 10) + "+" + strings.Repeat("-", 7))
	for _, s := range a.Sections {
		fmt.Printf(format, s.Name, fmt.Sprintf("0x%X", s.VirtualAddress), humanize.IBytes(uint64(s.VirtualSize)), humanize.IBytes(uint64(s.SizeOfRawData)), fmt.Sprintf("%.3f", s.Entropy))
	}
}

func analyze(c *cli.Context) error {
	err := initAppAction(c)
	if err != nil {
		return err
	}

	if c.NArg() != 1 {
		return errors.Newf("expected exactly one argument, got %d", c.NArg())
	}

	a, err := pefile.Analyze(c.Args().First())
	if err != nil {
		return err
	}

	if !c.Bool("json") {
		printAnalysis(a)
		return nil
	}

	out, err := json.MarshalIndent(analysisToDict(a), "", "  ")
	if err != nil {
		return errors.Errorf("could not encode analysis, reason: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
