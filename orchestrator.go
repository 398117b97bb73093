package ahkdump

import (
	"context"
	"sync"
	"time"

	"github.com/fkie-cad/ahkdump/procio"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
)

// ChildWaitConfig controls how long the orchestrator waits for child
// processes to appear after the primary process unpacked.
type ChildWaitConfig struct {
	Cycles        int
	CycleInterval time.Duration
	// ExtendAfter is the first cycle in which newly appeared processes
	// extend the wait by ExtendBy cycles, up to MaxCycles.
	ExtendAfter int
	ExtendBy    int
	MaxCycles   int
	// LogEvery is the number of cycles between two progress events.
	LogEvery int
}

func DefaultChildWaitConfig() ChildWaitConfig {
	return ChildWaitConfig{
		Cycles:        15,
		CycleInterval: 2 * time.Second,
		ExtendAfter:   10,
		ExtendBy:      3,
		MaxCycles:     25,
		LogEvery:      3,
	}
}

// Config configures an extraction run.
type Config struct {
	// Detector is used for the primary process.
	Detector DetectorConfig
	// ChildUnpackTimeout replaces Detector.Timeout for child processes.
	ChildUnpackTimeout time.Duration
	ChildWait          ChildWaitConfig
	ChildCheckInterval time.Duration
	ChildSettle        time.Duration
	// RetryDelay is waited before a child yielding no script is
	// extracted a second time.
	RetryDelay    time.Duration
	MaxWorkers    int
	MaxRegionSize uintptr

	MonitorChildren bool
	// KeepRunning leaves child processes alive after a successful run.
	// The primary process is terminated unless Attached is set.
	KeepRunning bool
	// Attached is set if the primary process was not started for the
	// run. It is never terminated then.
	Attached bool
}

// DefaultConfig returns the default run configuration.
func DefaultConfig() *Config {
	det := DefaultDetectorConfig()
	return &Config{
		Detector:           det,
		ChildUnpackTimeout: 2 * det.Timeout,
		ChildWait:          DefaultChildWaitConfig(),
		ChildCheckInterval: time.Second,
		ChildSettle:        500 * time.Millisecond,
		RetryDelay:         2 * time.Second,
		MaxWorkers:         8,
		MaxRegionSize:      512 * 1024 * 1024,
		MonitorChildren:    true,
	}
}

// ProcessStatus is the outcome of processing a single process.
type ProcessStatus string

const (
	StatusTerminatedBeforeProcessing ProcessStatus = "terminated_before_processing"
	StatusUnpackTimeout              ProcessStatus = "unpack_timeout"
	StatusTerminatedDuringUnpack     ProcessStatus = "terminated_during_unpack"
	StatusUnpackedSuccessfully       ProcessStatus = "unpacked_successfully"
	StatusExtractedSuccessfully      ProcessStatus = "extracted_successfully"
	StatusExtractedAfterTimeout      ProcessStatus = "extracted_after_timeout"
	StatusExtractedOnRetry           ProcessStatus = "extracted_on_retry"
	StatusTerminatedBeforeExtraction ProcessStatus = "terminated_before_extraction"
	StatusError                      ProcessStatus = "error"
)

// ProcessResult is the outcome of ProcessPID.
type ProcessResult struct {
	PID     int
	Primary bool
	Status  ProcessStatus
	Scripts int
	Unpack  UnpackState
	Err     error
}

// RunResult is the outcome of an extraction run.
type RunResult struct {
	PrimaryPID      int
	Processes       []*ProcessResult
	ResourceScripts int
	Total           int
	Started         time.Time
	Finished        time.Time
	Err             error
	// TerminationErr collects the processes which could not be
	// terminated after the run. It is of KindProcessLifecycle.
	TerminationErr error
}

// Orchestrator drives unpack detection, child discovery and extraction
// across a primary process and its descendants.
type Orchestrator struct {
	cfg       *Config
	table     procio.ProcessTable
	detector  *UnpackDetector
	extractor *MemoryExtractor
	resources *ResourceExtractor
	observer  Observer
	clock     Clock
	pids      *PIDSet

	mux             sync.Mutex
	resourceScripts int
}

// NewOrchestrator creates an Orchestrator. A nil observer discards all
// events, a nil clock uses the system clock.
func NewOrchestrator(cfg *Config, table procio.ProcessTable, sigs *Signatures, matcher SignatureMatcher, storage ScriptStorage, observer Observer, clock Clock) *Orchestrator {
	if observer == nil {
		observer = NopObserver()
	}
	if clock == nil {
		clock = SystemClock()
	}
	if matcher == nil {
		matcher = NewStaticMatcher(sigs)
	}
	filter := DefaultRegionFilter(cfg.MaxRegionSize)
	return &Orchestrator{
		cfg:       cfg,
		table:     table,
		detector:  NewUnpackDetector(table, matcher, filter, observer, clock),
		extractor: NewMemoryExtractor(sigs, storage, NewSequencer(), filter, observer),
		resources: NewResourceExtractor(storage, observer),
		observer:  observer,
		clock:     clock,
		pids:      NewPIDSet(),
	}
}

// PIDs returns the set of tracked processes.
func (o *Orchestrator) PIDs() *PIDSet {
	return o.pids
}

// ExtractResources recovers scripts from the resources of the executable
// at path. The count is added to the total of the next Run. Errors are
// logged and returned but never fatal.
func (o *Orchestrator) ExtractResources(path string) (int, error) {
	logf(o.observer, SeverityInfo, "Scanning resources of %s...", path)
	n, err := o.resources.ExtractFile(path)
	if err != nil {
		logf(o.observer, SeverityWarning, "Resource extraction incomplete: %v", err)
	}
	o.mux.Lock()
	o.resourceScripts += n
	o.mux.Unlock()
	return n, err
}

// ProcessPID waits for the process to unpack and extracts its scripts.
// Failures are reported in the result.
func (o *Orchestrator) ProcessPID(ctx context.Context, pid int, primary bool) *ProcessResult {
	res := &ProcessResult{PID: pid, Primary: primary, Unpack: StateWaiting}

	if !o.table.Exists(pid) {
		res.Status = StatusTerminatedBeforeProcessing
		return res
	}

	cfg := o.cfg.Detector
	if !primary {
		cfg.Timeout = o.cfg.ChildUnpackTimeout
		logf(o.observer, SeverityInfo, "Processing child process %d with extended timeout (%v)", pid, cfg.Timeout)
	}

	unpack, err := o.detector.Wait(ctx, pid, cfg)
	if err != nil && ctx.Err() == nil {
		res.Status = StatusError
		res.Err = err
		logf(o.observer, SeverityError, "Error processing PID %d: %v", pid, err)
		return res
	}
	res.Unpack = unpack.State

	switch unpack.State {
	case StateConfirmed:
		res.Status = StatusUnpackedSuccessfully
	case StateProcessGone:
		res.Status = StatusTerminatedDuringUnpack
		return res
	default:
		res.Status = StatusUnpackTimeout
	}

	if !o.table.Exists(pid) {
		res.Status = StatusTerminatedBeforeExtraction
		return res
	}

	// An extraction pass that has started is allowed to finish.
	n, err := o.extractOnce(context.WithoutCancel(ctx), pid, !primary)
	if err != nil {
		res.Status = StatusError
		res.Err = err
		logf(o.observer, SeverityError, "Error processing PID %d: %v", pid, err)
		return res
	}
	res.Scripts = n
	if res.Status == StatusUnpackTimeout {
		res.Status = StatusExtractedAfterTimeout
	} else {
		res.Status = StatusExtractedSuccessfully
	}

	if primary || n > 0 || ctx.Err() != nil {
		return res
	}

	logf(o.observer, SeverityInfo, "No scripts found in child process %d, waiting and retrying...", pid)
	if o.clock.Sleep(ctx, o.cfg.RetryDelay) != nil || !o.table.Exists(pid) {
		return res
	}
	n, err = o.extractOnce(context.WithoutCancel(ctx), pid, true)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"pid":           pid,
			logrus.ErrorKey: err,
		}).Debug("Retry of extraction failed.")
		return res
	}
	res.Scripts = n
	if n > 0 {
		res.Status = StatusExtractedOnRetry
	}
	return res
}

func (o *Orchestrator) extractOnce(ctx context.Context, pid int, child bool) (int, error) {
	proc, err := o.table.Open(pid)
	if err != nil {
		return 0, newError(KindProcessLifecycle, pid, "memory extraction", err)
	}
	defer proc.Close()

	return o.extractor.ExtractProcess(ctx, proc, child)
}

// Run performs a complete extraction run against the already started
// process primary. The returned error is only non-nil for unrecoverable
// conditions; all other failures are part of the RunResult.
func (o *Orchestrator) Run(ctx context.Context, primary int) (*RunResult, error) {
	res := &RunResult{
		PrimaryPID: primary,
		Processes:  make([]*ProcessResult, 0),
		Started:    o.clock.Now(),
	}
	o.mux.Lock()
	res.ResourceScripts = o.resourceScripts
	o.mux.Unlock()
	defer func() {
		res.Finished = o.clock.Now()
		logf(o.observer, SeveritySuccess, "Total scripts extracted: %d", res.Total)
	}()

	if ctx.Err() != nil {
		logf(o.observer, SeverityWarning, "Extraction cancelled before it started")
		res.TerminationErr = o.sweep(primary, true)
		res.Total = res.ResourceScripts
		return res, nil
	}

	o.pids.Add(primary)

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	var monitorDone sync.WaitGroup
	if o.cfg.MonitorChildren {
		monitor := NewChildMonitor(o.table, o.pids, o.observer, o.clock)
		monitor.Interval = o.cfg.ChildCheckInterval
		monitor.Settle = o.cfg.ChildSettle
		monitorDone.Add(1)
		go func() {
			defer monitorDone.Done()
			monitor.Run(monitorCtx, primary)
		}()
		logf(o.observer, SeverityInfo, "Child process monitoring enabled")
	}
	stop := func() {
		stopMonitor()
		monitorDone.Wait()
	}

	unpack, err := o.detector.Wait(ctx, primary, o.cfg.Detector)
	if err != nil && ctx.Err() == nil {
		logf(o.observer, SeverityWarning, "Unpack detection failed: %v", err)
	}
	if unpack != nil && unpack.State == StateProcessGone {
		logf(o.observer, SeverityWarning, "Main process terminated early")
	}

	if o.cfg.MonitorChildren && ctx.Err() == nil {
		o.waitForChildren(ctx)
	}

	if o.cfg.MonitorChildren && ctx.Err() == nil && !o.table.Exists(primary) && o.pids.Len() <= 1 {
		stop()
		res.Err = newError(KindUnrecoverable, primary, "child discovery", ErrPrimaryGone)
		logf(o.observer, SeverityError, "Main process %d exited without spawning any child process", primary)
		res.TerminationErr = o.sweep(primary, true)
		res.Total = res.ResourceScripts
		return res, res.Err
	}

	if ctx.Err() == nil {
		res.Processes = o.extractAll(ctx, primary)
	}
	stop()

	res.Total = res.ResourceScripts
	for _, p := range res.Processes {
		res.Total += p.Scripts
	}

	res.TerminationErr = o.sweep(primary, ctx.Err() != nil)
	return res, nil
}

func (o *Orchestrator) waitForChildren(ctx context.Context) {
	cfg := o.cfg.ChildWait
	logf(o.observer, SeverityInfo, "Monitoring for child processes...")

	cycles := cfg.Cycles
	for i := 0; i < cycles; i++ {
		before := o.pids.Len()
		if cfg.LogEvery > 0 && i%cfg.LogEvery == 0 {
			elapsed := time.Duration(i+1) * cfg.CycleInterval
			logf(o.observer, SeverityInfo, "Waiting for child processes... (%v elapsed, %d processes detected)", elapsed, before-1)
		}
		if o.clock.Sleep(ctx, cfg.CycleInterval) != nil {
			return
		}
		if i >= cfg.ExtendAfter && o.pids.Len() > before && cycles < cfg.MaxCycles {
			cycles += cfg.ExtendBy
			if cycles > cfg.MaxCycles {
				cycles = cfg.MaxCycles
			}
			logf(o.observer, SeverityInfo, "New processes detected, extending monitoring time...")
		}
	}

	if n := o.pids.Len() - 1; n > 0 {
		logf(o.observer, SeveritySuccess, "Child process detection complete. Found %d child process(es)", n)
	} else {
		logf(o.observer, SeverityInfo, "No child processes detected")
	}
}

func (o *Orchestrator) extractAll(ctx context.Context, primary int) []*ProcessResult {
	live := make([]int, 0)
	for _, pid := range o.pids.Slice() {
		if o.table.Exists(pid) {
			live = append(live, pid)
		}
	}
	if len(live) == 0 {
		logf(o.observer, SeverityWarning, "No active processes found to analyze")
		return []*ProcessResult{}
	}

	workers := o.cfg.MaxWorkers
	if workers <= 0 || workers > len(live) {
		workers = len(live)
	}
	logf(o.observer, SeverityInfo, "Processing %d processes with %d workers (PIDs %s)", len(live), workers, FormatPIDs(live))

	jobs := make(chan int)
	results := make(chan *ProcessResult, len(live))
	wg := &sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pid := range jobs {
				results <- o.ProcessPID(ctx, pid, pid == primary)
			}
		}()
	}

submit:
	for _, pid := range live {
		select {
		case <-ctx.Done():
			break submit
		case jobs <- pid:
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	out := make([]*ProcessResult, 0, len(live))
	for r := range results {
		if r.Scripts > 0 {
			logf(o.observer, SeveritySuccess, "PID %d: Extracted %d script(s)", r.PID, r.Scripts)
		} else {
			logf(o.observer, SeverityWarning, "PID %d: %s", r.PID, r.Status)
		}
		out = append(out, r)
	}
	return out
}

// sweep terminates tracked processes. After a cancelled or failed run all
// of them are terminated, otherwise the primary process and, unless
// KeepRunning is set, its children. An attached primary is left alone.
func (o *Orchestrator) sweep(primary int, cancelled bool) error {
	var err error
	for _, pid := range o.pids.Slice() {
		if pid == primary && o.cfg.Attached {
			continue
		}
		if !cancelled && pid != primary && o.cfg.KeepRunning {
			continue
		}
		if !o.table.Exists(pid) {
			continue
		}
		tErr := o.table.Terminate(pid)
		if tErr != nil && !errors.Is(tErr, procio.ErrProcessGone) {
			err = errors.NewMultiError(err, errors.Errorf("could not terminate process %d, reason: %w", pid, tErr))
			logf(o.observer, SeverityWarning, "Could not terminate process %d: %v", pid, tErr)
			continue
		}
		logrus.WithField("pid", pid).Debug("Process terminated.")
	}
	if err != nil {
		return newError(KindProcessLifecycle, primary, "termination", err)
	}
	return nil
}
