package win32

type MemoryBasicInformation struct {
	BaseAddress       uintptr
	AllocationBase    uintptr
	AllocationProtect uint32
	alignment1        uint32
	RegionSize        uintptr
	State             uint32
	Protect           uint32
	Type              uint32
	alignment2        uint32
}

// ProcessEntry is the subset of a toolhelp PROCESSENTRY32 needed to
// reconstruct the process tree.
type ProcessEntry struct {
	PID       uint32
	ParentPID uint32
	ExeFile   string
}

// MemoryStatusEx mirrors MEMORYSTATUSEX.
type MemoryStatusEx struct {
	Length               uint32
	MemoryLoad           uint32
	TotalPhys            uint64
	AvailPhys            uint64
	TotalPageFile        uint64
	AvailPageFile        uint64
	TotalVirtual         uint64
	AvailVirtual         uint64
	AvailExtendedVirtual uint64
}
