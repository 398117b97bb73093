package win32

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kernel32             = windows.NewLazyDLL("kernel32.dll")
	readProcessMemory    = kernel32.NewProc("ReadProcessMemory")
	virtualQueryEx       = kernel32.NewProc("VirtualQueryEx")
	getModuleFilenameExW = kernel32.NewProc("K32GetModuleFileNameExW")
	globalMemoryStatusEx = kernel32.NewProc("GlobalMemoryStatusEx")
)

// ReadProcessMemory copies up to len(buffer) bytes starting at address
// of the given process. The number of bytes actually transferred is
// returned even if the call failed, which happens regularly with
// ERROR_PARTIAL_COPY at region boundaries.
func ReadProcessMemory(process windows.Handle, address uintptr, buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}
	numberOfBytesRead := uintptr(0)
	r0, _, lastErr := readProcessMemory.Call(
		uintptr(process),
		address,
		uintptr(unsafe.Pointer(&buffer[0])),
		uintptr(len(buffer)),
		uintptr(unsafe.Pointer(&numberOfBytesRead)))

	if r0 == 0 {
		return int(numberOfBytesRead), lastErr
	}
	return int(numberOfBytesRead), nil
}

func VirtualQueryEx(process windows.Handle, address uintptr) (MemoryBasicInformation, error) {
	mbi := MemoryBasicInformation{}
	r0, _, lastErr := virtualQueryEx.Call(
		uintptr(process),
		address,
		uintptr(unsafe.Pointer(&mbi)),
		unsafe.Sizeof(mbi))
	if r0 == 0 {
		return mbi, lastErr
	}
	return mbi, nil
}

func GetModuleFilenameExW(process windows.Handle, module windows.Handle) (string, error) {
	var buf [windows.MAX_PATH]uint16
	n := len(buf)
	r0, _, lastErr := getModuleFilenameExW.Call(
		uintptr(process),
		uintptr(module),
		uintptr(unsafe.Pointer(&buf)),
		uintptr(n))
	if r0 == 0 {
		return "", lastErr
	}
	return windows.UTF16ToString(buf[:]), nil
}

func GlobalMemoryStatusEx() (*MemoryStatusEx, error) {
	status := &MemoryStatusEx{}
	status.Length = uint32(unsafe.Sizeof(*status))
	r0, _, lastErr := globalMemoryStatusEx.Call(uintptr(unsafe.Pointer(status)))
	if r0 == 0 {
		return nil, lastErr
	}
	return status, nil
}
