package procio

import (
	"github.com/sirupsen/logrus"
)

// ReadSegment copies the given segment of proc into a freshly allocated
// buffer. The returned slice is truncated to the number of bytes that
// could actually be transferred and may be empty. Failures are logged,
// never returned, since partial reads at region boundaries and guard
// pages are part of normal operation.
func ReadSegment(proc Process, seg *MemorySegmentInfo) []byte {
	if seg.Size == 0 {
		return []byte{}
	}

	buf := make([]byte, seg.Size)
	n, err := proc.ReadMemory(seg.BaseAddress, buf)
	if n < 0 {
		n = 0
	}
	if n > len(buf) {
		n = len(buf)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"pid":         proc.PID(),
			"baseAddress": FormatMemorySegmentAddress(seg),
			"size":        seg.Size,
			"transferred": n,
		}).WithError(err).Debug("Partial read of memory segment.")
	}
	return buf[:n]
}
