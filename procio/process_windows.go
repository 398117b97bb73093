package procio

import (
	"io"

	"github.com/fkie-cad/ahkdump/win32"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
	"golang.org/x/sys/windows"
)

// ExecutableSuffix is the file name suffix of executables on this platform.
const ExecutableSuffix = ".exe"

type processWindows struct {
	pid        uint32
	procHandle windows.Handle
}

func open(pid int) (Process, error) {
	handle, err := windows.OpenProcess(windows.PROCESS_ALL_ACCESS, false, uint32(pid))
	if err == windows.ERROR_ACCESS_DENIED {
		// Protected processes refuse full access but may still allow reading.
		handle, err = windows.OpenProcess(
			windows.PROCESS_VM_READ|windows.PROCESS_QUERY_INFORMATION,
			false,
			uint32(pid),
		)
	}
	if err != nil {
		if err == windows.ERROR_INVALID_PARAMETER {
			return nil, ErrProcessGone
		}
		return nil, errors.Newf("could not open process %d, reason: %w", pid, err)
	}

	return &processWindows{pid: uint32(pid), procHandle: handle}, nil
}

func processExists(pid int) bool {
	return win32.IsProcessRunning(uint32(pid))
}

func listProcesses() ([]*ProcessEntry, error) {
	entries, err := win32.ListProcesses()
	if err != nil {
		return nil, err
	}
	procs := make([]*ProcessEntry, len(entries))
	for i, e := range entries {
		procs[i] = &ProcessEntry{
			PID:       int(e.PID),
			ParentPID: int(e.ParentPID),
			Name:      e.ExeFile,
		}
	}
	return procs, nil
}

func terminate(pid int) error {
	return win32.TerminateProcess(uint32(pid), 1)
}

func (p *processWindows) PID() int {
	return int(p.pid)
}

func (p *processWindows) String() string {
	return FormatPID(int(p.pid))
}

func (p *processWindows) Close() error {
	return windows.CloseHandle(p.procHandle)
}

func (p *processWindows) Handle() interface{} {
	return p.procHandle
}

func (p *processWindows) ReadMemory(address uintptr, buf []byte) (int, error) {
	return win32.ReadProcessMemory(p.procHandle, address, buf)
}

func (p *processWindows) MemorySegments() (SegmentIterator, error) {
	return &virtualQueryIterator{proc: p}, nil
}

type virtualQueryIterator struct {
	proc *processWindows
	next uintptr
	done bool
}

func (it *virtualQueryIterator) Next() (*MemorySegmentInfo, error) {
	if it.done {
		return nil, io.EOF
	}

	mbi, err := win32.VirtualQueryEx(it.proc.procHandle, it.next)
	if err != nil {
		it.done = true
		if err == windows.ERROR_INVALID_PARAMETER {
			// ERROR_INVALID_PARAMETER is emitted at end of address space
			return nil, io.EOF
		}
		logrus.WithFields(logrus.Fields{
			"pid":     it.proc.pid,
			"address": FormatAddress(it.next),
		}).WithError(err).Debug("VirtualQueryEx failed, ending enumeration.")
		return nil, errors.Newf("could not query memory at %s, reason: %w", FormatAddress(it.next), err)
	}

	next := mbi.BaseAddress + mbi.RegionSize
	if next <= it.next {
		// Wrapped around the top of the address space.
		it.done = true
	}
	it.next = next

	seg := SegmentFromMemoryBasicInformation(mbi)
	if seg.Type == SegmentTypeImage && seg.BaseAddress == seg.ParentBaseAddress {
		seg.MappedFile, _ = win32.GetModuleFilenameExW(it.proc.procHandle, windows.Handle(seg.BaseAddress))
	}
	return seg, nil
}

func (it *virtualQueryIterator) Close() error {
	it.done = true
	return nil
}
