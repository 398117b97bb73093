package procio

import (
	"testing"

	"github.com/fkie-cad/ahkdump/win32"
	"golang.org/x/sys/windows"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSegmentFromMemoryBasicInformation(t *testing.T) {
	Convey("A committed read-write region", t, func() {
		seg := SegmentFromMemoryBasicInformation(win32.MemoryBasicInformation{
			BaseAddress: 0x1000,
			RegionSize:  0x2000,
			State:       win32.MEM_COMMIT,
			Protect:     windows.PAGE_READWRITE,
			Type:        win32.MEM_PRIVATE,
		})

		Convey("should be readable.", func() {
			So(seg.State, ShouldEqual, StateCommit)
			So(seg.Type, ShouldEqual, SegmentTypePrivate)
			So(seg.CurrentPermissions, ShouldResemble, Permissions{Read: true, Write: true})
			So(seg.IsReadable(), ShouldBeTrue)
		})
	})

	Convey("A guarded region", t, func() {
		seg := SegmentFromMemoryBasicInformation(win32.MemoryBasicInformation{
			State:   win32.MEM_COMMIT,
			Protect: windows.PAGE_READWRITE | win32.PAGE_GUARD,
		})

		Convey("should keep its base permissions but not be readable.", func() {
			So(seg.Guarded, ShouldBeTrue)
			So(seg.CurrentPermissions.Read, ShouldBeTrue)
			So(seg.IsReadable(), ShouldBeFalse)
		})
	})

	Convey("A no-access region", t, func() {
		seg := SegmentFromMemoryBasicInformation(win32.MemoryBasicInformation{
			State:   win32.MEM_COMMIT,
			Protect: windows.PAGE_NOACCESS,
		})

		Convey("should have no permissions.", func() {
			So(seg.CurrentPermissions, ShouldResemble, Permissions{})
			So(seg.IsReadable(), ShouldBeFalse)
		})
	})
}
