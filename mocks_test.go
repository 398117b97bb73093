package ahkdump

import (
	"context"
	"sync"
	"time"

	"github.com/fkie-cad/ahkdump/procio"
	"github.com/stretchr/testify/mock"
	"github.com/targodan/go-errors"
)

var errTest = errors.New("test failure")

func newMemSegment(base uintptr, size uintptr) *procio.MemorySegmentInfo {
	return &procio.MemorySegmentInfo{
		BaseAddress:        base,
		Size:               size,
		State:              procio.StateCommit,
		CurrentPermissions: procio.PermR,
	}
}

type mockProcessTable struct {
	mock.Mock
}

func (_m *mockProcessTable) Open(pid int) (procio.Process, error) {
	ret := _m.Called(pid)

	var r0 procio.Process
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(procio.Process)
	}
	return r0, ret.Error(1)
}

func (_m *mockProcessTable) Exists(pid int) bool {
	ret := _m.Called(pid)
	return ret.Bool(0)
}

func (_m *mockProcessTable) Children(pid int) ([]*procio.ProcessEntry, error) {
	ret := _m.Called(pid)

	var r0 []*procio.ProcessEntry
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*procio.ProcessEntry)
	}
	return r0, ret.Error(1)
}

func (_m *mockProcessTable) Terminate(pid int) error {
	ret := _m.Called(pid)
	return ret.Error(0)
}

// memProcess serves a fixed set of readable regions.
type memProcess struct {
	pid     int
	regions map[uintptr][]byte
	order   []uintptr
	closed  bool
}

func newMemProcess(pid int, blobs ...[]byte) *memProcess {
	p := &memProcess{pid: pid, regions: make(map[uintptr][]byte)}
	base := uintptr(0x10000)
	for _, b := range blobs {
		p.regions[base] = b
		p.order = append(p.order, base)
		base += 0x100000
	}
	return p
}

func (p *memProcess) Close() error        { p.closed = true; return nil }
func (p *memProcess) String() string      { return "memProcess" }
func (p *memProcess) PID() int            { return p.pid }
func (p *memProcess) Handle() interface{} { return nil }

func (p *memProcess) MemorySegments() (procio.SegmentIterator, error) {
	segs := make([]*procio.MemorySegmentInfo, 0, len(p.order)+1)
	// An unreadable region in front must be skipped by the filter.
	segs = append(segs, &procio.MemorySegmentInfo{
		BaseAddress: 0x1000,
		Size:        0x1000,
		State:       procio.StateReserve,
	})
	for _, base := range p.order {
		segs = append(segs, newMemSegment(base, uintptr(len(p.regions[base]))))
	}
	return procio.NewSliceIterator(segs), nil
}

func (p *memProcess) ReadMemory(address uintptr, buf []byte) (int, error) {
	data, ok := p.regions[address]
	if !ok {
		return 0, errors.New("access violation")
	}
	return copy(buf, data), nil
}

type memStorage struct {
	mux     sync.Mutex
	scripts []*ExtractedScript
	err     error
}

func (s *memStorage) Store(script *ExtractedScript) error {
	if s.err != nil {
		return s.err
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	s.scripts = append(s.scripts, script)
	return nil
}

func (s *memStorage) Hint() string { return "memory" }
func (s *memStorage) Close() error { return nil }

func (s *memStorage) filenames() []string {
	s.mux.Lock()
	defer s.mux.Unlock()
	names := make([]string, len(s.scripts))
	for i, sc := range s.scripts {
		names[i] = sc.Filename()
	}
	return names
}

// fakeClock only advances when slept on.
type fakeClock struct {
	mux sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	c.now = c.now.Add(d)
	return nil
}

type recordingObserver struct {
	mux      sync.Mutex
	progress []uint64
	logs     []string
}

func (o *recordingObserver) OnProgress(pid int, bytesScanned uint64) {
	o.mux.Lock()
	defer o.mux.Unlock()
	o.progress = append(o.progress, bytesScanned)
}

func (o *recordingObserver) OnLog(severity Severity, message string) {
	o.mux.Lock()
	defer o.mux.Unlock()
	o.logs = append(o.logs, severity.String()+": "+message)
}
