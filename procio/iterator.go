package procio

import (
	"io"
)

// SegmentIterator lazily walks the address space of a process from
// address 0 upward. Next returns io.EOF once the end of the address space
// is reached. An iterator can not be restarted; open a new one for every
// pass since the memory map of the target changes between passes.
type SegmentIterator interface {
	io.Closer
	Next() (*MemorySegmentInfo, error)
}

// CollectSegments drains the iterator and closes it. On error, the
// segments read so far are returned together with the error.
func CollectSegments(it SegmentIterator) ([]*MemorySegmentInfo, error) {
	defer it.Close()

	segments := make([]*MemorySegmentInfo, 0)
	for {
		seg, err := it.Next()
		if err == io.EOF {
			return segments, nil
		}
		if err != nil {
			return segments, err
		}
		segments = append(segments, seg)
	}
}

type sliceIterator struct {
	segments []*MemorySegmentInfo
	pos      int
}

// NewSliceIterator returns a SegmentIterator over a fixed list of segments.
func NewSliceIterator(segments []*MemorySegmentInfo) SegmentIterator {
	return &sliceIterator{segments: segments}
}

func (it *sliceIterator) Next() (*MemorySegmentInfo, error) {
	if it.pos >= len(it.segments) {
		return nil, io.EOF
	}
	seg := it.segments[it.pos]
	it.pos++
	return seg, nil
}

func (it *sliceIterator) Close() error {
	return nil
}
