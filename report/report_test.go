package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fkie-cad/ahkdump"
	"github.com/fkie-cad/ahkdump/output"
	"github.com/fkie-cad/ahkdump/pgp"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/targodan/go-errors"
)

func testRunResult() *ahkdump.RunResult {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &ahkdump.RunResult{
		PrimaryPID: 100,
		Processes: []*ahkdump.ProcessResult{
			{PID: 100, Primary: true, Status: ahkdump.StatusExtractedSuccessfully, Unpack: ahkdump.StateConfirmed, Scripts: 2},
			{PID: 101, Status: ahkdump.StatusError, Unpack: ahkdump.StateWaiting, Err: &ahkdump.Error{
				Kind:   ahkdump.KindProcessLifecycle,
				PID:    101,
				Phase:  "unpack wait",
				Offset: -1,
				Err:    errors.New("access denied"),
			}},
		},
		ResourceScripts: 1,
		Total:           3,
		Started:         start,
		Finished:        start.Add(90 * time.Second),
	}
}

func TestFromRunResult(t *testing.T) {
	Convey("A report built from a run result", t, func() {
		rprt := FromRunResult(testRunResult(), &Target{Path: "C:\\sample.exe"}, "scripts are stored in directory \"out\"")

		Convey("should summarise the run.", func() {
			So(rprt.Stats.TotalScripts, ShouldEqual, 3)
			So(rprt.Stats.MemoryScripts, ShouldEqual, 2)
			So(rprt.Stats.ResourceScripts, ShouldEqual, 1)
			So(rprt.Stats.Processes, ShouldEqual, 2)
			So(rprt.Stats.Duration.Seconds(), ShouldEqual, 90)
		})
		Convey("should classify process errors.", func() {
			So(rprt.Processes[0].Error, ShouldBeNil)
			So(rprt.Processes[1].Error.Kind, ShouldEqual, "process_lifecycle")
		})
		Convey("should have no termination error.", func() {
			So(rprt.TerminationError, ShouldBeNil)
		})
		Convey("should carry a fresh report ID.", func() {
			So(rprt.Meta.ReportID, ShouldNotBeEmpty)
			So(rprt.Meta.ReportID, ShouldNotEqual, GetMetaInformation().ReportID)
		})
	})

	Convey("A report of a run which left a process behind", t, func() {
		res := testRunResult()
		res.TerminationErr = &ahkdump.Error{
			Kind:   ahkdump.KindProcessLifecycle,
			PID:    100,
			Phase:  "termination",
			Offset: -1,
			Err:    errors.New("could not terminate process 101"),
		}
		rprt := FromRunResult(res, nil, "memory")

		Convey("should list the termination error.", func() {
			So(rprt.TerminationError, ShouldNotBeNil)
			So(rprt.TerminationError.Kind, ShouldEqual, "process_lifecycle")
			So(rprt.TerminationError.Message, ShouldContainSubstring, "101")
		})
		Convey("should still be valid.", func() {
			v, err := NewValidator()
			So(err, ShouldBeNil)
			So(v.ValidateReport(rprt), ShouldBeNil)
		})
	})

	Convey("A report of a run without processes", t, func() {
		rprt := FromRunResult(&ahkdump.RunResult{}, nil, "")

		Convey("should have an empty process list.", func() {
			So(rprt.Processes, ShouldNotBeNil)
			So(rprt.Processes, ShouldBeEmpty)
		})
	})
}

func TestValidator(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatal(err)
	}

	Convey("A generated report", t, func() {
		rprt := FromRunResult(testRunResult(), nil, "memory")

		Convey("should be valid.", func() {
			So(v.ValidateReport(rprt), ShouldBeNil)
		})
	})

	Convey("A report with an unknown process status", t, func() {
		rprt := FromRunResult(testRunResult(), nil, "memory")
		rprt.Processes[0].Status = "exploded"

		Convey("should be invalid.", func() {
			So(v.ValidateReport(rprt), ShouldNotBeNil)
		})
	})

	Convey("A report without meta information", t, func() {
		data, _ := json.Marshal(map[string]interface{}{
			"stats":     map[string]interface{}{},
			"processes": []interface{}{},
			"storage":   "",
		})

		Convey("should be invalid.", func() {
			So(v.Validate(data), ShouldNotBeNil)
		})
	})

	Convey("Data which is not JSON", t, func() {
		So(v.Validate([]byte("{not json")), ShouldNotBeNil)
	})
}

func TestWriteAndReadFile(t *testing.T) {
	Convey("A compressed report file", t, func() {
		rprt := FromRunResult(testRunResult(), nil, "memory")
		name, err := WriteFile(filepath.Join(t.TempDir(), "report.json"), rprt, WriteOptions{Compress: true})
		So(err, ShouldBeNil)

		Convey("should carry the zstd extension.", func() {
			So(name, ShouldEndWith, ".json"+output.ZSTDSuffix)
		})
		Convey("should be read back transparently.", func() {
			data, err := ReadFile(name, nil)
			So(err, ShouldBeNil)
			parsed, err := Parse(data)
			So(err, ShouldBeNil)
			So(parsed.Meta.ReportID, ShouldEqual, rprt.Meta.ReportID)
			So(parsed.Processes, ShouldHaveLength, 2)
			So(parsed.Processes[0].UnpackState, ShouldEqual, ahkdump.StateConfirmed)
			So(parsed.Stats.Start.Equal(rprt.Stats.Start.Time), ShouldBeTrue)
		})
	})

	Convey("An encrypted and compressed report file", t, func() {
		enc := &pgp.Options{Password: "infected"}
		rprt := FromRunResult(testRunResult(), nil, "memory")
		name, err := WriteFile(filepath.Join(t.TempDir(), "report.json"), rprt, WriteOptions{Compress: true, Encryption: enc})
		So(err, ShouldBeNil)

		Convey("should carry both extensions.", func() {
			So(name, ShouldEndWith, ".json.zst.pgp")
		})
		Convey("should be encrypted on the outside.", func() {
			raw, err := os.ReadFile(name)
			So(err, ShouldBeNil)
			So(output.IsZSTDCompressed(raw), ShouldBeFalse)
		})
		Convey("should not be readable without the password.", func() {
			data, err := ReadFile(name, nil)
			if err == nil {
				_, err = Parse(data)
			}
			So(err, ShouldNotBeNil)
		})
		Convey("should be readable with the password.", func() {
			data, err := ReadFile(name, enc)
			So(err, ShouldBeNil)
			parsed, err := Parse(data)
			So(err, ShouldBeNil)
			So(parsed.Stats.TotalScripts, ShouldEqual, 3)
		})
	})

	Convey("A report of an unsupported format version", t, func() {
		rprt := FromRunResult(testRunResult(), nil, "memory")
		rprt.Meta.FormatVersion.Major = 9
		data, _ := json.Marshal(rprt)

		Convey("should be rejected.", func() {
			_, err := Parse(data)
			So(err, ShouldNotBeNil)
		})
	})
}
