package ahkdump

import (
	"context"
	"time"

	"github.com/fkie-cad/ahkdump/procio"
	"github.com/sirupsen/logrus"
)

// ChildMonitor discovers descendants of a process and adds them to a
// PIDSet. A ChildMonitor must only be run by a single goroutine.
type ChildMonitor struct {
	table    procio.ProcessTable
	pids     *PIDSet
	observer Observer
	clock    Clock

	// Interval between two polls. It is doubled once SlowDownAfter has
	// elapsed and at least one child is tracked.
	Interval      time.Duration
	SlowDownAfter time.Duration
	// Settle is the time a new child is given to initialise before it
	// is tracked.
	Settle time.Duration

	seen map[int]bool
}

// NewChildMonitor creates a ChildMonitor with default timings.
func NewChildMonitor(table procio.ProcessTable, pids *PIDSet, observer Observer, clock Clock) *ChildMonitor {
	if observer == nil {
		observer = NopObserver()
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &ChildMonitor{
		table:         table,
		pids:          pids,
		observer:      observer,
		clock:         clock,
		Interval:      time.Second,
		SlowDownAfter: 30 * time.Second,
		Settle:        500 * time.Millisecond,
		seen:          make(map[int]bool),
	}
}

// Run polls the children of parent until ctx is done or the parent can no
// longer be queried.
func (m *ChildMonitor) Run(ctx context.Context, parent int) {
	logrus.WithField("pid", parent).Debug("Child process monitoring started.")
	defer logrus.WithField("pid", parent).Debug("Child process monitoring ended.")

	start := m.clock.Now()
	for ctx.Err() == nil {
		_, err := m.Poll(ctx, parent)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"pid":           parent,
				logrus.ErrorKey: err,
			}).Debug("Parent process is no longer accessible.")
			return
		}

		interval := m.Interval
		if m.clock.Now().Sub(start) > m.SlowDownAfter && m.pids.Len() > 1 {
			interval *= 2
		}
		if m.clock.Sleep(ctx, interval) != nil {
			return
		}
	}
}

// Poll checks the children of parent once and returns the PIDs which were
// newly added to the set. Children are only considered the first time
// they are seen.
func (m *ChildMonitor) Poll(ctx context.Context, parent int) ([]int, error) {
	children, err := m.table.Children(parent)
	if err != nil {
		return nil, err
	}

	added := make([]int, 0)
	for _, child := range children {
		if m.seen[child.PID] {
			continue
		}
		m.seen[child.PID] = true

		if m.pids.Contains(child.PID) || !child.HasExecutableSuffix() {
			continue
		}
		if m.clock.Sleep(ctx, m.Settle) != nil {
			return added, nil
		}
		if !m.table.Exists(child.PID) {
			logrus.WithField("pid", child.PID).Debug("Child process vanished before it could be tracked.")
			continue
		}
		if m.pids.Add(child.PID) {
			added = append(added, child.PID)
			logf(m.observer, SeverityInfo, "New child process detected: %s (PID: %d)", child.Name, child.PID)
		}
	}
	return added, nil
}
