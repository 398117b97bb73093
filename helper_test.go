package ahkdump

import (
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func ExampleJoin() {
	parts := []string{"life", "the universe", "everything"}
	fmt.Println(Join(parts, ", ", " and "))
	// Output: life, the universe and everything
}

func TestJoin(t *testing.T) {
	Convey("Joining an empty list", t, func() {
		parts := make([]string, 0)
		Convey("should yield an empty string.", func() {
			So(Join(parts, ", ", " and "), ShouldEqual, "")
		})
	})

	Convey("Joining just one element", t, func() {
		parts := []string{"test"}
		Convey("should yield the element itself.", func() {
			So(Join(parts, ", ", " and "), ShouldEqual, parts[0])
		})
	})

	Convey("Joining just two elements", t, func() {
		parts := []string{"test", "42"}
		Convey("should use the final glue only.", func() {
			So(Join(parts, ", ", " and "), ShouldEqual, "test and 42")
		})
	})

	Convey("Joining several elements", t, func() {
		parts := []string{"test", "42", "another", "test"}
		Convey("should use the final glue in the last glueing.", func() {
			So(Join(parts, ", ", " and "), ShouldEqual, "test, 42, another and test")
		})
	})
}

func TestFormatPIDs(t *testing.T) {
	Convey("Formatting PIDs", t, func() {
		Convey("should enumerate them.", func() {
			So(FormatPIDs([]int{4, 8, 15}), ShouldEqual, "4, 8 and 15")
		})
		Convey("should yield the PID itself for one element.", func() {
			So(FormatPIDs([]int{42}), ShouldEqual, "42")
		})
		Convey("should yield nothing without PIDs.", func() {
			So(FormatPIDs(nil), ShouldEqual, "")
		})
	})
}
