package ahkdump

import (
	"context"
	"fmt"
	"testing"

	"github.com/fkie-cad/ahkdump/procio"
	. "github.com/smartystreets/goconvey/convey"
)

func TestKindOf(t *testing.T) {
	Convey("Classifying errors", t, func() {
		Convey("should return the kind of wrapped package errors.", func() {
			err := fmt.Errorf("outer: %w", newError(KindMalformedInput, 1, "resource extraction", errTest))
			So(KindOf(err), ShouldEqual, KindMalformedInput)
		})
		Convey("should recognize well known causes.", func() {
			So(KindOf(fmt.Errorf("x: %w", ErrPrimaryGone)), ShouldEqual, KindUnrecoverable)
			So(KindOf(fmt.Errorf("x: %w", procio.ErrProcessGone)), ShouldEqual, KindProcessLifecycle)
			So(KindOf(context.DeadlineExceeded), ShouldEqual, KindTimeout)
		})
		Convey("should fall back to unknown.", func() {
			So(KindOf(errTest), ShouldEqual, KindUnknown)
			So(KindOf(nil), ShouldEqual, KindUnknown)
		})
	})

	Convey("The message of an error", t, func() {
		err := newError(KindTransientIO, 12, "memory extraction", errTest)

		Convey("should name phase, kind and pid.", func() {
			So(err.Error(), ShouldEqual, "memory extraction failed (transient_io, pid 12): test failure")
		})
		Convey("should include the offset if set.", func() {
			err.Offset = 0x1F00
			So(err.Error(), ShouldEqual, "memory extraction failed (transient_io, pid 12, offset 0x1F00): test failure")
		})
		Convey("should unwrap to its cause.", func() {
			So(err.Unwrap(), ShouldEqual, errTest)
		})
	})
}
