package ahkdump

import (
	"strconv"
	"strings"

	"github.com/rjNemo/underscore"
)

// Join joins all elements of a string slice, using the defaultGlue
// for all but the last two elements.
func Join(parts []string, defaultGlue, finalGlue string) string {
	if len(parts) < 2 {
		return strings.Join(parts, "")
	}
	last := len(parts) - 1
	return strings.Join(parts[:last], defaultGlue) + finalGlue + parts[last]
}

// FormatPIDs renders pids as an enumeration like "4, 8 and 15".
func FormatPIDs(pids []int) string {
	return Join(underscore.Map(pids, strconv.Itoa), ", ", " and ")
}
