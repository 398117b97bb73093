package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fkie-cad/ahkdump"
	"github.com/fkie-cad/ahkdump/procio"
	"github.com/fkie-cad/ahkdump/system"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
	"github.com/urfave/cli/v2"
)

func BuildFilterState(fStr []string) (ahkdump.MemorySegmentFilter, error) {
	if len(fStr) == 0 {
		return nil, nil
	}

	states := make([]procio.State, 0, len(fStr))
	for _, s := range fStr {
		if s == "" {
			continue
		}
		state, err := procio.ParseState(s)
		if err != nil {
			return nil, fmt.Errorf("could not parse state \"%s\", reason: %w", s, err)
		}
		states = append(states, state)
	}

	return ahkdump.NewStateFilter(states), nil
}

func BuildFilterSizeMax(fStr string) (ahkdump.MemorySegmentFilter, error) {
	if len(fStr) == 0 {
		return nil, nil
	}

	size, err := ParseSizeArgument(fStr)
	if err != nil {
		return nil, fmt.Errorf("could not parse size \"%s\", reason: %w", fStr, err)
	}

	logrus.Infof("Filtering for maximum size %s", humanize.IBytes(uint64(size)))

	return ahkdump.NewMaxSizeFilter(size), nil
}

func BuildFilterReadable(readable bool) ahkdump.MemorySegmentFilter {
	if !readable {
		return nil
	}
	return ahkdump.NewReadableFilter()
}

// ParseSizeArgument parses either an absolute size like "1.5GB" or a
// percentage of the total RAM like "10%T".
func ParseSizeArgument(s string) (uintptr, error) {
	if strings.Contains(s, "%") {
		return ParseRelativeSize(s, system.TotalRAM)
	}
	return ParseAbsoluteSize(s)
}

func ParseAbsoluteSize(s string) (uintptr, error) {
	size, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return uintptr(size), nil
}

func ParseRelativeSize(s string, totalRAM func() (uint64, error)) (uintptr, error) {
	parts := strings.Split(s, "%")
	if len(parts) != 2 {
		return 0, errors.New("could not parse relative size, expected exactly one '%'")
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, errors.Newf("relative size must not be negative, got %v%%", value)
	}

	switch strings.ToLower(parts[1]) {
	case "t", "total":
	default:
		return 0, errors.Newf("unknown relative definition \"%s\", must be \"[t]otal\"", parts[1])
	}

	max, err := totalRAM()
	if err != nil {
		return 0, errors.Errorf("could not get total RAM, reason: %w", err)
	}

	return uintptr(value*float64(max)/100. + 0.5), nil
}

func filterFromArgs(c *cli.Context) (ahkdump.MemorySegmentFilter, error) {
	state, err := BuildFilterState(c.StringSlice("filter-state"))
	if err != nil {
		return nil, errors.Errorf("invalid flag \"--filter-state\", reason: %w", err)
	}
	sizeMax, err := BuildFilterSizeMax(c.String("filter-size-max"))
	if err != nil {
		return nil, errors.Errorf("invalid flag \"--filter-size-max\", reason: %w", err)
	}

	return ahkdump.NewAndFilter(state, sizeMax, BuildFilterReadable(c.Bool("filter-readable"))), nil
}
