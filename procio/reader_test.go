package procio

import (
	"errors"
	"io"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// fakeProcess serves memory from a single contiguous buffer starting at base.
type fakeProcess struct {
	base    uintptr
	memory  []byte
	limit   int
	readErr error
}

func (p *fakeProcess) Close() error        { return nil }
func (p *fakeProcess) String() string      { return "fake" }
func (p *fakeProcess) PID() int            { return 42 }
func (p *fakeProcess) Handle() interface{} { return nil }

func (p *fakeProcess) MemorySegments() (SegmentIterator, error) {
	return NewSliceIterator([]*MemorySegmentInfo{
		{BaseAddress: p.base, Size: uintptr(len(p.memory)), State: StateCommit, CurrentPermissions: PermR},
	}), nil
}

func (p *fakeProcess) ReadMemory(address uintptr, buf []byte) (int, error) {
	if address < p.base || address >= p.base+uintptr(len(p.memory)) {
		return 0, errors.New("access violation")
	}
	n := copy(buf, p.memory[address-p.base:])
	if p.limit >= 0 && n > p.limit {
		n = p.limit
	}
	return n, p.readErr
}

func TestReadSegment(t *testing.T) {
	Convey("Reading a segment", t, func() {
		proc := &fakeProcess{base: 0x1000, memory: []byte("0123456789abcdef"), limit: -1}

		Convey("that is fully readable should return all of its bytes.", func() {
			data := ReadSegment(proc, &MemorySegmentInfo{BaseAddress: 0x1000, Size: 16})
			So(string(data), ShouldEqual, "0123456789abcdef")
		})

		Convey("should never return more bytes than requested.", func() {
			data := ReadSegment(proc, &MemorySegmentInfo{BaseAddress: 0x1004, Size: 4})
			So(string(data), ShouldEqual, "4567")
		})

		Convey("that is only partially transferred should be truncated.", func() {
			proc.limit = 5
			proc.readErr = errors.New("partial copy")
			data := ReadSegment(proc, &MemorySegmentInfo{BaseAddress: 0x1000, Size: 16})
			So(string(data), ShouldEqual, "01234")
		})

		Convey("that fails completely should yield zero bytes without error.", func() {
			data := ReadSegment(proc, &MemorySegmentInfo{BaseAddress: 0x9000, Size: 16})
			So(data, ShouldNotBeNil)
			So(len(data), ShouldEqual, 0)
		})

		Convey("of size zero should yield zero bytes.", func() {
			data := ReadSegment(proc, &MemorySegmentInfo{BaseAddress: 0x1000, Size: 0})
			So(len(data), ShouldEqual, 0)
		})
	})
}

func TestCollectSegments(t *testing.T) {
	Convey("Collecting a slice iterator", t, func() {
		segments := []*MemorySegmentInfo{
			{BaseAddress: 0x1000, Size: 0x1000},
			{BaseAddress: 0x2000, Size: 0x1000},
		}
		it := NewSliceIterator(segments)
		collected, err := CollectSegments(it)

		Convey("should return every segment in order.", func() {
			So(err, ShouldBeNil)
			So(collected, ShouldResemble, segments)
		})
		Convey("should leave the iterator exhausted.", func() {
			seg, err := it.Next()
			So(seg, ShouldBeNil)
			So(err, ShouldEqual, io.EOF)
		})
	})
}
