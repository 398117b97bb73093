package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/targodan/go-errors"
)

var AhkdumpVersion = Version{
	Major:  0,
	Minor:  3,
	Bugfix: 1,
}

type Version struct {
	Major  int
	Minor  int
	Bugfix int
}

// Parse parses a version of the form "major.minor.bugfix".
func Parse(s string) (Version, error) {
	parts := strings.Split(strings.TrimPrefix(s, "v"), ".")
	if len(parts) != 3 {
		return Version{}, errors.Newf("invalid version \"%s\", expected three components", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, errors.Newf("invalid version component \"%s\" in \"%s\"", p, s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Bugfix: nums[2]}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Bugfix)
}

// Compatible reports whether data written in format v can be read by a
// reader supporting format other.
func (v Version) Compatible(other Version) bool {
	return v.Major == other.Major && v.Minor <= other.Minor
}

func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Version) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
