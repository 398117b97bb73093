package ahkdump

import (
	"context"
	"fmt"
	"time"

	"github.com/fkie-cad/ahkdump/procio"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
)

// UnpackState is the state of an UnpackDetector wait.
type UnpackState int

const (
	StateWaiting UnpackState = iota
	StateSignatureSeen
	StateConfirmed
	StateTimedOut
	StateProcessGone
)

var unpackStateNames = map[UnpackState]string{
	StateWaiting:       "waiting",
	StateSignatureSeen: "signature_seen",
	StateConfirmed:     "confirmed",
	StateTimedOut:      "timed_out",
	StateProcessGone:   "process_gone",
}

func (s UnpackState) String() string {
	if name, ok := unpackStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UnpackState(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s UnpackState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *UnpackState) UnmarshalText(b []byte) error {
	for state, name := range unpackStateNames {
		if name == string(b) {
			*s = state
			return nil
		}
	}
	return errors.Newf("unknown unpack state \"%s\"", string(b))
}

// DetectorConfig configures a single unpack wait.
type DetectorConfig struct {
	Timeout      time.Duration
	PollInterval time.Duration
	// SettleTime is the time between the first secondary signature and
	// the confirmation.
	SettleTime       time.Duration
	ProgressInterval time.Duration
}

// DefaultDetectorConfig returns the configuration used for primary processes.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Timeout:          30 * time.Second,
		PollInterval:     time.Second,
		SettleTime:       5 * time.Second,
		ProgressInterval: 10 * time.Second,
	}
}

// UnpackResult describes how an unpack wait ended.
type UnpackResult struct {
	PID   int
	State UnpackState
	// Signature is the signature which caused the last transition.
	Signature string
	Elapsed   time.Duration
}

// UnpackDetector polls the memory of a process until the script has been
// unpacked, the process is gone or a timeout elapses. Every poll is a full
// pass over all readable regions.
type UnpackDetector struct {
	table    procio.ProcessTable
	matcher  SignatureMatcher
	filter   MemorySegmentFilter
	observer Observer
	clock    Clock
}

// NewUnpackDetector creates an UnpackDetector. A nil observer discards
// all events, a nil clock uses the system clock.
func NewUnpackDetector(table procio.ProcessTable, matcher SignatureMatcher, filter MemorySegmentFilter, observer Observer, clock Clock) *UnpackDetector {
	if observer == nil {
		observer = NopObserver()
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &UnpackDetector{
		table:    table,
		matcher:  matcher,
		filter:   filter,
		observer: observer,
		clock:    clock,
	}
}

// Wait blocks until the process with the given pid reaches a final state.
// A timeout is not an error. The returned error is non-nil if ctx was
// cancelled or the process could not be opened for a reason other than
// it being gone.
func (d *UnpackDetector) Wait(ctx context.Context, pid int, cfg DetectorConfig) (*UnpackResult, error) {
	result := &UnpackResult{PID: pid, State: StateWaiting}

	if !d.table.Exists(pid) {
		result.State = StateProcessGone
		return result, nil
	}
	proc, err := d.table.Open(pid)
	if err != nil {
		if errors.Is(err, procio.ErrProcessGone) {
			result.State = StateProcessGone
			return result, nil
		}
		return result, newError(KindProcessLifecycle, pid, "unpack wait", err)
	}
	defer proc.Close()

	logf(d.observer, SeverityInfo, "Waiting up to %v for process %d to unpack...", cfg.Timeout, pid)

	start := d.clock.Now()
	lastProgress := start
	var firstSeen time.Time
	for {
		if !d.table.Exists(pid) {
			result.State = StateProcessGone
			break
		}

		_, err := ScanRegions(ctx, proc, d.filter, func(blob *RegionBlob) bool {
			m := d.matcher.Match(blob.Data)
			if m.Primary {
				result.State = StateConfirmed
				result.Signature = "primary marker"
				return false
			}
			if m.Secondary != "" && result.State == StateWaiting {
				result.State = StateSignatureSeen
				result.Signature = m.Secondary
				firstSeen = d.clock.Now()
				logrus.WithFields(logrus.Fields{
					"pid":         pid,
					"signature":   m.Secondary,
					"baseAddress": procio.FormatMemorySegmentAddress(blob.Region),
				}).Debug("Secondary signature found.")
			}
			return true
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return d.finish(result, start), ctxErr
		}
		if err != nil {
			// Process vanished between the existence check and the pass.
			if !d.table.Exists(pid) {
				result.State = StateProcessGone
				break
			}
			logrus.WithFields(logrus.Fields{
				"pid":           pid,
				logrus.ErrorKey: err,
			}).Debug("Memory pass failed.")
		}

		if result.State == StateConfirmed {
			break
		}
		now := d.clock.Now()
		if result.State == StateSignatureSeen && now.Sub(firstSeen) >= cfg.SettleTime {
			result.State = StateConfirmed
			break
		}
		if now.Sub(start) >= cfg.Timeout {
			result.State = StateTimedOut
			break
		}
		if cfg.ProgressInterval > 0 && now.Sub(lastProgress) >= cfg.ProgressInterval {
			logf(d.observer, SeverityInfo, "Still waiting for process %d to unpack (%ds elapsed)...", pid, int(now.Sub(start).Seconds()))
			lastProgress = now
		}

		if err := d.clock.Sleep(ctx, cfg.PollInterval); err != nil {
			return d.finish(result, start), err
		}
	}

	d.finish(result, start)
	switch result.State {
	case StateConfirmed:
		logf(d.observer, SeveritySuccess, "Process %d unpacked (%s) after %.1fs", pid, result.Signature, result.Elapsed.Seconds())
	case StateTimedOut:
		logf(d.observer, SeverityWarning, "Process %d did not unpack within %v, extracting anyway", pid, cfg.Timeout)
	case StateProcessGone:
		logf(d.observer, SeverityWarning, "Process %d terminated while waiting for it to unpack", pid)
	}
	return result, nil
}

func (d *UnpackDetector) finish(result *UnpackResult, start time.Time) *UnpackResult {
	result.Elapsed = d.clock.Now().Sub(start)
	return result
}
