package system

import (
	"golang.org/x/sys/unix"
)

func getOSInfo() (name, version string, err error) {
	uts := unix.Utsname{}
	err = unix.Uname(&uts)
	if err != nil {
		return
	}
	name = unix.ByteSliceToString(uts.Sysname[:])
	version = unix.ByteSliceToString(uts.Release[:])
	return
}

// TotalRAM returns the total amount of installed RAM in bytes.
func TotalRAM() (uint64, error) {
	si := &unix.Sysinfo_t{}
	err := unix.Sysinfo(si)
	if err != nil {
		return 0, err
	}
	return uint64(si.Totalram) * uint64(si.Unit), nil
}
