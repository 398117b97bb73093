package procio

import (
	"io"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const testMaps = `00400000-0048a000 r-xp 00000000 fd:03 960637       /bin/bash
00689000-0068a000 r--p 00089000 fd:03 960637       /bin/bash
00690000-006a0000 ---p 00000000 00:00 0
this is garbage
00680000-00681000 rw-p 00000000 00:00 0
7ffd1a2e0000-7ffd1a301000 rw-p 00000000 00:00 0                          [stack]
`

func TestMemorySegmentFromLine(t *testing.T) {
	Convey("A private file-backed segment should be parsed", t, func() {
		info, err := memorySegmentFromLine("00400000-0048a000 r-xp 00000000 fd:03 960637       /bin/some path/with whitespaces")
		So(err, ShouldBeNil)
		So(info, ShouldResemble, &MemorySegmentInfo{
			ParentBaseAddress:    0x400000,
			BaseAddress:          0x400000,
			AllocatedPermissions: PermRX,
			CurrentPermissions:   PermRX,
			Size:                 0x8a000,
			State:                StateCommit,
			Type:                 SegmentTypePrivateMapped,
			MappedFile:           "/bin/some path/with whitespaces",
		})
	})

	Convey("An anonymous no-access segment should not be readable", t, func() {
		info, err := memorySegmentFromLine("00690000-006a0000 ---p 00000000 00:00 0")
		So(err, ShouldBeNil)
		So(info.Type, ShouldEqual, SegmentTypePrivate)
		So(info.CurrentPermissions.IsNoAccess(), ShouldBeTrue)
		So(info.IsReadable(), ShouldBeFalse)
	})

	Convey("Invalid lines should error", t, func() {
		for _, line := range []string{
			"invalid",
			"ffffffffffffffffff-0048a000 r-xp 00000000 fd:03 960637 /bin/bash",
			"00400000-0048a000 pppp 00000000 fd:03 960637 /bin/bash",
			"00400000-0048a000 r-xx 00000000 fd:03 960637 /bin/bash",
			"0048a000-00400000 r-xp 00000000 fd:03 960637 /bin/bash",
		} {
			info, err := memorySegmentFromLine(line)
			So(info, ShouldBeNil)
			So(err, ShouldNotBeNil)
		}
	})
}

func TestMapsIterator(t *testing.T) {
	Convey("Iterating a maps file", t, func() {
		it := newMapsIterator(io.NopCloser(strings.NewReader(testMaps)))
		segments, err := CollectSegments(it)
		So(err, ShouldBeNil)

		Convey("should skip garbage and out-of-order lines.", func() {
			So(len(segments), ShouldEqual, 4)
		})
		Convey("should yield strictly increasing base addresses.", func() {
			for i := 1; i < len(segments); i++ {
				So(segments[i].BaseAddress, ShouldBeGreaterThan, segments[i-1].BaseAddress)
			}
		})
	})
}
