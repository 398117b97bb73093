package procio

import (
	"github.com/fkie-cad/ahkdump/win32"
	"golang.org/x/sys/windows"
)

// SegmentFromMemoryBasicInformation converts one VirtualQueryEx result.
// Guard pages are flagged separately from their base protection, because
// reading them raises STATUS_GUARD_PAGE_VIOLATION in the target and
// IsReadable must exclude them. PAGE_NOACCESS maps to empty permissions.
func SegmentFromMemoryBasicInformation(info win32.MemoryBasicInformation) *MemorySegmentInfo {
	return &MemorySegmentInfo{
		ParentBaseAddress:    info.AllocationBase,
		BaseAddress:          info.BaseAddress,
		AllocatedPermissions: permissionsFromNativeProtect(info.AllocationProtect),
		CurrentPermissions:   permissionsFromNativeProtect(info.Protect),
		Guarded:              info.Protect&win32.PAGE_GUARD != 0,
		Size:                 info.RegionSize,
		State:                stateFromNative(info.State),
		Type:                 typeFromNative(info.Type),
	}
}

// Base protections, the low byte of MEMORY_BASIC_INFORMATION.Protect.
// Modifiers like PAGE_GUARD and PAGE_NOCACHE live in the upper bits.
var nativeProtections = map[uint32]Permissions{
	windows.PAGE_READONLY:          {Read: true},
	windows.PAGE_READWRITE:         {Read: true, Write: true},
	windows.PAGE_WRITECOPY:         {Read: true, Write: true, COW: true},
	windows.PAGE_EXECUTE:           {Execute: true},
	windows.PAGE_EXECUTE_READ:      {Read: true, Execute: true},
	windows.PAGE_EXECUTE_READWRITE: {Read: true, Write: true, Execute: true},
	windows.PAGE_EXECUTE_WRITECOPY: {Read: true, Write: true, COW: true, Execute: true},
}

func permissionsFromNativeProtect(protect uint32) Permissions {
	return nativeProtections[protect&0xFF]
}

var nativeStates = map[uint32]State{
	win32.MEM_COMMIT:  StateCommit,
	win32.MEM_FREE:    StateFree,
	win32.MEM_RESERVE: StateReserve,
}

func stateFromNative(state uint32) State {
	if s, ok := nativeStates[state]; ok {
		return s
	}
	return State(state)
}

var nativeTypes = map[uint32]SegmentType{
	win32.MEM_IMAGE:   SegmentTypeImage,
	win32.MEM_MAPPED:  SegmentTypeMapped,
	win32.MEM_PRIVATE: SegmentTypePrivate,
}

func typeFromNative(t uint32) SegmentType {
	if st, ok := nativeTypes[t]; ok {
		return st
	}
	return SegmentType(t)
}
