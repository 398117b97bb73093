package procio

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/targodan/go-errors"
)

// ErrProcessGone is returned when a process does not exist (anymore).
var ErrProcessGone = errors.New("process does not exist")

// Process provides capability to read the memory of another process.
// A Process owns an OS handle, which must be released with Close on
// every exit path.
type Process interface {
	io.Closer
	fmt.Stringer

	PID() int
	Handle() interface{}
	// MemorySegments opens a new lazy walk over the address space.
	MemorySegments() (SegmentIterator, error)
	// ReadMemory reads up to len(buf) bytes starting at address. It returns
	// the number of bytes actually transferred, which may be less than
	// len(buf) even if err is nil.
	ReadMemory(address uintptr, buf []byte) (int, error)
}

// ProcessEntry describes one entry of the system's process list.
type ProcessEntry struct {
	PID       int    `json:"pid"`
	ParentPID int    `json:"parentPID"`
	Name      string `json:"name"`
}

// ProcessTable is the lifecycle side of the OS process API.
type ProcessTable interface {
	Open(pid int) (Process, error)
	Exists(pid int) bool
	// Children returns all descendants of pid, not only the direct ones.
	// If pid itself is not in the process list, ErrProcessGone is returned.
	Children(pid int) ([]*ProcessEntry, error)
	Terminate(pid int) error
}

// OpenProcess opens another process for reading its memory.
func OpenProcess(pid int) (Process, error) {
	return open(pid)
}

// NativeTable returns the ProcessTable of the running operating system.
func NativeTable() ProcessTable {
	return &nativeTable{}
}

type nativeTable struct{}

func (t *nativeTable) Open(pid int) (Process, error) {
	return open(pid)
}

func (t *nativeTable) Exists(pid int) bool {
	return processExists(pid)
}

func (t *nativeTable) Children(pid int) ([]*ProcessEntry, error) {
	entries, err := listProcesses()
	if err != nil {
		return nil, errors.Newf("could not list processes, reason: %w", err)
	}
	return Descendants(entries, pid)
}

func (t *nativeTable) Terminate(pid int) error {
	return terminate(pid)
}

// GetRunningProcesses returns all processes currently known to the OS.
func GetRunningProcesses() ([]*ProcessEntry, error) {
	return listProcesses()
}

// Descendants returns every entry that has pid as an ancestor, in
// breadth-first order. PIDs are reused by the OS, so an entry whose PID
// equals its parent PID is never followed.
func Descendants(entries []*ProcessEntry, pid int) ([]*ProcessEntry, error) {
	byParent := make(map[int][]*ProcessEntry)
	found := false
	for _, e := range entries {
		if e.PID == pid {
			found = true
		}
		if e.PID == e.ParentPID {
			continue
		}
		byParent[e.ParentPID] = append(byParent[e.ParentPID], e)
	}
	if !found {
		return nil, ErrProcessGone
	}

	result := make([]*ProcessEntry, 0)
	seen := map[int]bool{pid: true}
	queue := []int{pid}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children := byParent[current]
		sort.Slice(children, func(i, j int) bool {
			return children[i].PID < children[j].PID
		})
		for _, child := range children {
			if seen[child.PID] {
				continue
			}
			seen[child.PID] = true
			result = append(result, child)
			queue = append(queue, child.PID)
		}
	}
	return result, nil
}

// HasExecutableSuffix reports whether the process name carries the
// executable suffix of the platform. On platforms without such a suffix
// every name matches.
func (e *ProcessEntry) HasExecutableSuffix() bool {
	return strings.HasSuffix(strings.ToLower(e.Name), ExecutableSuffix)
}
