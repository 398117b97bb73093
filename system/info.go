// Package system gathers information about the host an extraction run
// is performed on.
package system

import (
	"os"
	"runtime"

	"github.com/fkie-cad/ahkdump/arch"
	"github.com/targodan/go-errors"
)

// Info describes the analysis host.
type Info struct {
	OSName    string       `json:"osName"`
	OSVersion string       `json:"osVersion"`
	OSArch    arch.T       `json:"-"`
	Bitness   arch.Bitness `json:"bitness"`
	Hostname  string       `json:"hostname"`
	NumCPUs   int          `json:"numCPUs"`
	TotalRAM  uint64       `json:"totalRAM"`
}

// GetInfo collects the host information. Fields which could not be
// determined are left empty and the first error is returned alongside
// the partial result.
func GetInfo() (*Info, error) {
	info := &Info{
		OSArch:  arch.Native(),
		NumCPUs: runtime.NumCPU(),
	}
	info.Bitness = info.OSArch.Bitness()

	var err error
	info.OSName, info.OSVersion, err = getOSInfo()
	if err != nil {
		return info, errors.Errorf("could not determine OS info, reason: %w", err)
	}
	info.TotalRAM, err = TotalRAM()
	if err != nil {
		return info, errors.Errorf("could not determine total RAM, reason: %w", err)
	}
	info.Hostname, err = os.Hostname()
	if err != nil {
		return info, errors.Errorf("could not determine hostname, reason: %w", err)
	}
	return info, nil
}
