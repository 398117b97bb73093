package ahkdump

import (
	"context"
	"testing"
	"time"

	"github.com/fkie-cad/ahkdump/procio"
	. "github.com/smartystreets/goconvey/convey"
)

func testDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Timeout:          30 * time.Second,
		PollInterval:     time.Second,
		SettleTime:       5 * time.Second,
		ProgressInterval: 10 * time.Second,
	}
}

func newTestDetector(table procio.ProcessTable, obs Observer, clock Clock) *UnpackDetector {
	return NewUnpackDetector(table, NewStaticMatcher(DefaultSignatures()), DefaultRegionFilter(0), obs, clock)
}

func TestUnpackDetector(t *testing.T) {
	Convey("A process already showing the primary marker", t, func() {
		table := new(mockProcessTable)
		proc := newMemProcess(42, []byte("\n<COMPILER>\na::b\x00\x00"))
		table.On("Exists", 42).Return(true)
		table.On("Open", 42).Return(proc, nil)

		cfg := testDetectorConfig()
		cfg.Timeout = 0
		res, err := newTestDetector(table, nil, newFakeClock()).Wait(context.Background(), 42, cfg)

		Convey("should be confirmed on the first poll, even with a zero timeout.", func() {
			So(err, ShouldBeNil)
			So(res.State, ShouldEqual, StateConfirmed)
			So(res.Elapsed, ShouldEqual, time.Duration(0))
		})
		Convey("should release the process handle.", func() {
			So(proc.closed, ShouldBeTrue)
		})
	})

	Convey("A process showing only a secondary signature", t, func() {
		table := new(mockProcessTable)
		proc := newMemProcess(42, []byte("some SendInput text"))
		table.On("Exists", 42).Return(true)
		table.On("Open", 42).Return(proc, nil)
		obs := &recordingObserver{}

		res, err := newTestDetector(table, obs, newFakeClock()).Wait(context.Background(), 42, testDetectorConfig())

		Convey("should be confirmed once the settle time has passed.", func() {
			So(err, ShouldBeNil)
			So(res.State, ShouldEqual, StateConfirmed)
			So(res.Signature, ShouldEqual, "SendInput")
			So(res.Elapsed, ShouldEqual, 5*time.Second)
		})
		Convey("should report success.", func() {
			So(obs.logs[len(obs.logs)-1], ShouldStartWith, "success: Process 42 unpacked (SendInput)")
		})
	})

	Convey("A process without any signature", t, func() {
		table := new(mockProcessTable)
		table.On("Exists", 42).Return(true)
		table.On("Open", 42).Return(newMemProcess(42, []byte("nothing")), nil)

		cfg := testDetectorConfig()
		cfg.Timeout = 3 * time.Second
		res, err := newTestDetector(table, nil, newFakeClock()).Wait(context.Background(), 42, cfg)

		Convey("should time out without an error.", func() {
			So(err, ShouldBeNil)
			So(res.State, ShouldEqual, StateTimedOut)
			So(res.Elapsed, ShouldEqual, 3*time.Second)
		})
	})

	Convey("A process which does not exist", t, func() {
		table := new(mockProcessTable)
		table.On("Exists", 42).Return(false)

		res, err := newTestDetector(table, nil, newFakeClock()).Wait(context.Background(), 42, testDetectorConfig())

		Convey("should be reported as gone without being opened.", func() {
			So(err, ShouldBeNil)
			So(res.State, ShouldEqual, StateProcessGone)
			table.AssertNotCalled(t, "Open", 42)
		})
	})

	Convey("A process which exits during the wait", t, func() {
		table := new(mockProcessTable)
		table.On("Exists", 42).Return(true).Times(2)
		table.On("Exists", 42).Return(false)
		table.On("Open", 42).Return(newMemProcess(42, []byte("nothing")), nil)

		res, err := newTestDetector(table, nil, newFakeClock()).Wait(context.Background(), 42, testDetectorConfig())

		Convey("should be reported as gone.", func() {
			So(err, ShouldBeNil)
			So(res.State, ShouldEqual, StateProcessGone)
			So(res.Elapsed, ShouldEqual, time.Second)
		})
	})

	Convey("A process which cannot be opened", t, func() {
		table := new(mockProcessTable)
		table.On("Exists", 42).Return(true)
		table.On("Open", 42).Return(nil, errTest)

		_, err := newTestDetector(table, nil, newFakeClock()).Wait(context.Background(), 42, testDetectorConfig())

		Convey("should yield a lifecycle error.", func() {
			So(err, ShouldNotBeNil)
			So(KindOf(err), ShouldEqual, KindProcessLifecycle)
		})
	})

	Convey("A cancelled wait", t, func() {
		table := new(mockProcessTable)
		table.On("Exists", 42).Return(true)
		table.On("Open", 42).Return(newMemProcess(42, []byte("nothing")), nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res, err := newTestDetector(table, nil, newFakeClock()).Wait(ctx, 42, testDetectorConfig())

		Convey("should return the context error.", func() {
			So(err, ShouldEqual, context.Canceled)
			So(res.State, ShouldEqual, StateWaiting)
		})
	})
}
