package win32

import "golang.org/x/sys/windows"

// Values of MEMORY_BASIC_INFORMATION.Type.
const (
	MEM_IMAGE   = 0x1000000
	MEM_MAPPED  = 0x40000
	MEM_PRIVATE = 0x20000
)

// Values of MEMORY_BASIC_INFORMATION.State.
const (
	MEM_COMMIT  = windows.MEM_COMMIT
	MEM_FREE    = 0x10000
	MEM_RESERVE = windows.MEM_RESERVE
)

// PAGE_GUARD is a modifier of MEMORY_BASIC_INFORMATION.Protect.
const PAGE_GUARD = 0x100
