package ahkdump

import (
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPIDSet(t *testing.T) {
	Convey("A PID set", t, func() {
		s := NewPIDSet(5, 3)

		Convey("should contain its initial members.", func() {
			So(s.Contains(5), ShouldBeTrue)
			So(s.Contains(3), ShouldBeTrue)
			So(s.Contains(4), ShouldBeFalse)
			So(s.Len(), ShouldEqual, 2)
		})
		Convey("should report whether an added pid is new.", func() {
			So(s.Add(4), ShouldBeTrue)
			So(s.Add(4), ShouldBeFalse)
			So(s.Len(), ShouldEqual, 3)
		})
		Convey("should return a sorted copy.", func() {
			pids := s.Slice()
			So(pids, ShouldResemble, []int{3, 5})
			pids[0] = 100
			So(s.Contains(100), ShouldBeFalse)
		})
		Convey("should be safe for concurrent use.", func() {
			wg := &sync.WaitGroup{}
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(pid int) {
					defer wg.Done()
					s.Add(100 + pid%10)
					s.Contains(pid)
				}(i)
			}
			wg.Wait()
			So(s.Len(), ShouldEqual, 12)
		})
	})
}
