package win32

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// ListProcesses takes a toolhelp snapshot of all processes and returns
// their PIDs, parent PIDs and executable names.
func ListProcesses() ([]ProcessEntry, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("could not create process snapshot, reason: %w", err)
	}
	defer windows.CloseHandle(snap)

	entries := make([]ProcessEntry, 0)

	var procEntry windows.ProcessEntry32
	procEntry.Size = uint32(unsafe.Sizeof(procEntry))

	err = windows.Process32First(snap, &procEntry)
	if err != nil {
		if err == windows.ERROR_NO_MORE_FILES {
			return entries, nil
		}
		return nil, err
	}
	for {
		entries = append(entries, ProcessEntry{
			PID:       procEntry.ProcessID,
			ParentPID: procEntry.ParentProcessID,
			ExeFile:   windows.UTF16ToString(procEntry.ExeFile[:]),
		})
		err = windows.Process32Next(snap, &procEntry)
		if err != nil {
			break
		}
	}
	if err != windows.ERROR_NO_MORE_FILES {
		return nil, err
	}
	return entries, nil
}

// IsProcessRunning opens the process with minimal rights and checks
// whether it has already exited.
func IsProcessRunning(pid uint32) bool {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		// Access denied still means the process is there.
		return err == windows.ERROR_ACCESS_DENIED
	}
	defer windows.CloseHandle(handle)

	var code uint32
	if err := windows.GetExitCodeProcess(handle, &code); err != nil {
		return false
	}
	return code == StillActive
}

// TerminateProcess kills the process with the given PID.
func TerminateProcess(pid uint32, exitCode uint32) error {
	handle, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, pid)
	if err != nil {
		return fmt.Errorf("could not open process %d for termination, reason: %w", pid, err)
	}
	defer windows.CloseHandle(handle)

	return windows.TerminateProcess(handle, exitCode)
}
