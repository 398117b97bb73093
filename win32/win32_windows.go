// Package win32 wraps the few kernel32 functions golang.org/x/sys/windows
// does not export.
package win32

// Null is a NULL pointer argument.
const Null uintptr = 0

// StillActive is the exit code GetExitCodeProcess reports for
// processes that have not terminated yet.
const StillActive uint32 = 259
