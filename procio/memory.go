package procio

import (
	"fmt"
	"strings"
)

// MemorySegmentInfo contains information about a memory segment.
type MemorySegmentInfo struct {
	// ParentBaseAddress is the base address of the allocation this
	// segment belongs to.
	// Equivalence on windows: _MEMORY_BASIC_INFORMATION->AllocationBase
	ParentBaseAddress uintptr `json:"parentBaseAddress"`

	// BaseAddress is the base address of the current memory segment.
	// Equivalence on windows: _MEMORY_BASIC_INFORMATION->BaseAddress
	BaseAddress uintptr `json:"baseAddress"`

	// AllocatedPermissions is the Permissions that were used to initially
	// allocate this segment.
	// Equivalence on windows: _MEMORY_BASIC_INFORMATION->AllocationProtect
	AllocatedPermissions Permissions `json:"allocatedPermissions"`

	// CurrentPermissions is the Permissions that the segment currently has.
	// Equivalence on windows: _MEMORY_BASIC_INFORMATION->Protect
	CurrentPermissions Permissions `json:"currentPermissions"`

	// Guarded is true for guard pages. Touching them raises a one-shot
	// exception in the target, so they are never read.
	// Equivalence on windows: _MEMORY_BASIC_INFORMATION->Protect & PAGE_GUARD
	Guarded bool `json:"guarded"`

	// Size contains the size of the segment in bytes.
	// Equivalence on windows: _MEMORY_BASIC_INFORMATION->RegionSize
	Size uintptr `json:"size"`

	// State contains the current State of the segment.
	// Equivalence on windows: _MEMORY_BASIC_INFORMATION->State
	State State `json:"state"`

	// Type contains the SegmentType of the segment.
	// Equivalence on windows: _MEMORY_BASIC_INFORMATION->Type
	Type SegmentType `json:"type"`

	// MappedFile contains the path to the mapped file, or empty string if
	// no file mapping is associated with this memory segment.
	MappedFile string `json:"mappedFile"`
}

// IsReadable returns true if the segment is committed, not a guard page
// and grants read access.
func (s *MemorySegmentInfo) IsReadable() bool {
	return s.State == StateCommit && !s.Guarded && s.CurrentPermissions.Read
}

// End returns the first address after this segment.
func (s *MemorySegmentInfo) End() uintptr {
	return s.BaseAddress + s.Size
}

// String returns a human readable representation of the BaseAddress.
func (s *MemorySegmentInfo) String() string {
	return FormatMemorySegmentAddress(s)
}

// Permissions describes the permissions of a memory segment.
// The zero value means no access at all.
type Permissions struct {
	// Is read-only access allowed
	Read bool `json:"read"`
	// Is write access allowed (also true if COW is enabled)
	Write bool `json:"write"`
	// Is copy-on-write access allowed (if this is true, then so is Write)
	COW bool `json:"COW"`
	// Is execute access allowed
	Execute bool `json:"execute"`
}

// PermR is readonly Permissions.
var PermR = Permissions{
	Read: true,
}

// PermRW is the read-write Permissions.
var PermRW = Permissions{
	Read:  true,
	Write: true,
}

// PermRX is the read-execute Permissions.
var PermRX = Permissions{
	Read:    true,
	Execute: true,
}

// ParsePermissions parses the string representation of a Permissions,
// as output by Permissions.String and returns the resulting Permissions.
//
// Each character of the string is interpreted individually and case insensitive.
// A '-' is ignored, 'r' stands for read, 'w' for write, 'c' for copy-on-write,
// and 'e' or 'x' for execute. Any other character results in an error.
func ParsePermissions(s string) (Permissions, error) {
	perm := Permissions{}
	for _, c := range strings.ToLower(s) {
		switch c {
		case 'r':
			perm.Read = true
		case 'w':
			perm.Write = true
		case 'c':
			perm.Write = true
			perm.COW = true
		case 'e', 'x':
			perm.Execute = true
		case '-':
			continue
		default:
			return perm, fmt.Errorf("character '%c' is not a valid permission character", c)
		}
	}
	return perm, nil
}

// IsNoAccess returns true if no access is allowed at all.
func (p Permissions) IsNoAccess() bool {
	return !p.Read && !p.Write && !p.Execute
}

// String returns the string representation of this Permissions.
func (p Permissions) String() string {
	ret := ""
	if p.Read {
		ret += "R"
	} else {
		ret += "-"
	}
	if p.Write {
		if p.COW {
			ret += "C"
		} else {
			ret += "W"
		}
	} else {
		ret += "-"
	}
	if p.Execute {
		ret += "X"
	} else {
		ret += "-"
	}
	return ret
}

// State represents the state of a memory segment.
type State int

const (
	StateCommit State = iota
	StateFree
	StateReserve
)

var stateNames = map[State]string{
	StateCommit:  "commit",
	StateFree:    "free",
	StateReserve: "reserve",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseState parses the name of a State, ignoring case.
func ParseState(name string) (State, error) {
	name = strings.ToLower(name)
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%s is not a valid State", name)
}

// SegmentType represents the type of a memory segment.
type SegmentType int

const (
	SegmentTypeImage SegmentType = iota
	SegmentTypeMapped
	SegmentTypePrivate
	SegmentTypePrivateMapped
)

var segmentTypeNames = map[SegmentType]string{
	SegmentTypeImage:         "image",
	SegmentTypeMapped:        "mapped",
	SegmentTypePrivate:       "private",
	SegmentTypePrivateMapped: "privateMapped",
}

func (t SegmentType) String() string {
	if name, ok := segmentTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("SegmentType(%d)", int(t))
}

func (t SegmentType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
