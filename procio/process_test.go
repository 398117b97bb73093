package procio

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func pidsOf(entries []*ProcessEntry) []int {
	pids := make([]int, len(entries))
	for i, e := range entries {
		pids[i] = e.PID
	}
	return pids
}

func TestDescendants(t *testing.T) {
	entries := []*ProcessEntry{
		{PID: 1, ParentPID: 0, Name: "init"},
		{PID: 10, ParentPID: 1, Name: "target.exe"},
		{PID: 12, ParentPID: 10, Name: "child.exe"},
		{PID: 11, ParentPID: 10, Name: "conhost.exe"},
		{PID: 20, ParentPID: 12, Name: "grandchild.exe"},
		{PID: 30, ParentPID: 1, Name: "unrelated.exe"},
		{PID: 40, ParentPID: 40, Name: "self-parented"},
	}

	Convey("Descendants of a process", t, func() {
		Convey("should include children and grandchildren in breadth-first order.", func() {
			children, err := Descendants(entries, 10)
			So(err, ShouldBeNil)
			So(pidsOf(children), ShouldResemble, []int{11, 12, 20})
		})
		Convey("of a leaf should be empty.", func() {
			children, err := Descendants(entries, 20)
			So(err, ShouldBeNil)
			So(children, ShouldBeEmpty)
		})
		Convey("should not loop on self-parented entries.", func() {
			children, err := Descendants(entries, 40)
			So(err, ShouldBeNil)
			So(children, ShouldBeEmpty)
		})
		Convey("of an unknown process should fail with ErrProcessGone.", func() {
			children, err := Descendants(entries, 99)
			So(children, ShouldBeNil)
			So(err, ShouldEqual, ErrProcessGone)
		})
	})
}
