package ahkdump

import (
	"context"
	"io"

	"github.com/fkie-cad/ahkdump/procio"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
)

// RegionBlob is the copied content of one memory region. Blobs are
// owned by the callback they are passed to and must not be retained.
type RegionBlob struct {
	Region *procio.MemorySegmentInfo
	Data   []byte
}

// RegionFunc is called for every region passing the filter, including
// regions which read back empty. Returning false stops the pass.
type RegionFunc func(blob *RegionBlob) bool

// ScanRegions performs a single pass over the address space of proc,
// reading every region accepted by filter and handing it to fn. It returns
// the number of bytes in the visited regions. Enumeration failures end the
// pass early and are only logged; errors are returned if the pass could
// not be started or ctx was cancelled.
func ScanRegions(ctx context.Context, proc procio.Process, filter MemorySegmentFilter, fn RegionFunc) (uint64, error) {
	segments, err := proc.MemorySegments()
	if err != nil {
		return 0, errors.Errorf("could not enumerate memory segments, reason: %w", err)
	}
	defer segments.Close()

	var scanned uint64
	for {
		if err := ctx.Err(); err != nil {
			return scanned, err
		}

		seg, err := segments.Next()
		if err == io.EOF {
			return scanned, nil
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"pid":           proc.PID(),
				logrus.ErrorKey: err,
			}).Debug("Memory segment enumeration ended early.")
			return scanned, nil
		}

		if filter != nil {
			match := filter.Filter(seg)
			if !match.Result {
				logrus.WithFields(logrus.Fields{
					"pid":     proc.PID(),
					"segment": seg,
					"reason":  match.Reason,
				}).Trace("Memory segment skipped.")
				continue
			}
		}

		blob := &RegionBlob{
			Region: seg,
			Data:   procio.ReadSegment(proc, seg),
		}
		scanned += uint64(seg.Size)
		if !fn(blob) {
			return scanned, nil
		}
	}
}
