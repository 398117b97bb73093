package procio

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPermissions(t *testing.T) {
	Convey("Parsing permissions", t, func() {
		Convey("should accept the output of String.", func() {
			for _, perm := range []Permissions{PermR, PermRW, PermRX, {}} {
				parsed, err := ParsePermissions(perm.String())
				So(err, ShouldBeNil)
				So(parsed, ShouldResemble, perm)
			}
		})
		Convey("should treat 'c' as copy-on-write.", func() {
			parsed, err := ParsePermissions("rc-")
			So(err, ShouldBeNil)
			So(parsed.Write, ShouldBeTrue)
			So(parsed.COW, ShouldBeTrue)
			So(parsed.String(), ShouldEqual, "RC-")
		})
		Convey("should reject unknown characters.", func() {
			_, err := ParsePermissions("rq")
			So(err, ShouldNotBeNil)
		})
	})

	Convey("The zero Permissions should be no-access.", t, func() {
		So(Permissions{}.IsNoAccess(), ShouldBeTrue)
		So(PermR.IsNoAccess(), ShouldBeFalse)
	})
}

func TestIsReadable(t *testing.T) {
	Convey("A memory segment", t, func() {
		seg := &MemorySegmentInfo{
			BaseAddress:        0x1000,
			Size:               0x1000,
			State:              StateCommit,
			CurrentPermissions: PermRW,
		}

		Convey("that is committed and readable should be readable.", func() {
			So(seg.IsReadable(), ShouldBeTrue)
		})
		Convey("that is a guard page should not be readable.", func() {
			seg.Guarded = true
			So(seg.IsReadable(), ShouldBeFalse)
		})
		Convey("that is reserved should not be readable.", func() {
			seg.State = StateReserve
			So(seg.IsReadable(), ShouldBeFalse)
		})
		Convey("that is free should not be readable.", func() {
			seg.State = StateFree
			So(seg.IsReadable(), ShouldBeFalse)
		})
		Convey("without any access should not be readable.", func() {
			seg.CurrentPermissions = Permissions{}
			So(seg.IsReadable(), ShouldBeFalse)
		})
		Convey("should format its address with 8 hex digits below 4GiB.", func() {
			So(seg.String(), ShouldEqual, "0x00001000")
			So(seg.End(), ShouldEqual, uintptr(0x2000))
		})
	})
}

func TestParseState(t *testing.T) {
	Convey("Parsing states", t, func() {
		Convey("should ignore case.", func() {
			s, err := ParseState("Commit")
			So(err, ShouldBeNil)
			So(s, ShouldEqual, StateCommit)
		})
		Convey("should reject unknown names.", func() {
			_, err := ParseState("committed")
			So(err, ShouldNotBeNil)
		})
	})
}
