package procio

import (
	"fmt"
)

func FormatMemorySegmentAddress(seg *MemorySegmentInfo) string {
	return FormatAddress(seg.BaseAddress)
}

func FormatAddress(addr uintptr) string {
	if uint64(addr) < (1 << 32) {
		return fmt.Sprintf("0x%08X", uint64(addr))
	}
	return fmt.Sprintf("0x%016X", uint64(addr))
}

func FormatPID(pid int) string {
	return fmt.Sprint(pid)
}
