package system

import (
	"fmt"

	"github.com/fkie-cad/ahkdump/win32"
	"golang.org/x/sys/windows"
)

func getOSInfo() (name, version string, err error) {
	v := windows.RtlGetVersion()
	name = "Windows"
	version = fmt.Sprintf("%d.%d.%d", v.MajorVersion, v.MinorVersion, v.BuildNumber)
	return
}

// TotalRAM returns the total amount of installed RAM in bytes.
func TotalRAM() (uint64, error) {
	status, err := win32.GlobalMemoryStatusEx()
	if err != nil {
		return 0, err
	}
	return status.TotalPhys, nil
}
