package ahkdump

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestExtractedScriptFilename(t *testing.T) {
	Convey("Script filenames", t, func() {
		Convey("should distinguish primary and child scripts.", func() {
			So((&ExtractedScript{PID: 4, Sequence: 2, Method: MethodCompilerSignature}).Filename(), ShouldEqual, "script_4_2.ahk")
			So((&ExtractedScript{PID: 4, Sequence: 2, Method: MethodCompilerSignature, Child: true}).Filename(), ShouldEqual, "script_4_2_subprocess.ahk")
		})
		Convey("should name the heuristic for child only methods.", func() {
			So((&ExtractedScript{PID: 9, Sequence: 1, Method: MethodPatternMatch, Child: true}).Filename(), ShouldEqual, "script_9_1_subprocess_raw.ahk")
			So((&ExtractedScript{PID: 9, Sequence: 1, Method: MethodStringEmbedded, Child: true}).Filename(), ShouldEqual, "script_9_1_subprocess_string.ahk")
		})
		Convey("should use the resource index for resource scripts.", func() {
			So((&ExtractedScript{Sequence: 3, Method: MethodResourceDecode}).Filename(), ShouldEqual, "script_resource_3.ahk")
		})
	})
}

func TestSequencer(t *testing.T) {
	Convey("A sequencer", t, func() {
		s := NewSequencer()

		Convey("should count per pid and method, starting at one.", func() {
			So(s.Next(1, MethodCompilerSignature), ShouldEqual, 1)
			So(s.Next(1, MethodCompilerSignature), ShouldEqual, 2)
			So(s.Next(1, MethodPatternMatch), ShouldEqual, 1)
			So(s.Next(2, MethodCompilerSignature), ShouldEqual, 1)
		})
	})
}

func TestDirectoryStorage(t *testing.T) {
	Convey("A directory storage in a missing directory", t, func() {
		dir := filepath.Join(t.TempDir(), "out", "scripts")
		storage, err := NewDirectoryStorage(dir)
		So(err, ShouldBeNil)

		err = storage.Store(&ExtractedScript{PID: 3, Sequence: 1, Content: "a::b ä"})

		Convey("should create the directory and write UTF-8 files.", func() {
			So(err, ShouldBeNil)
			content, err := os.ReadFile(filepath.Join(dir, "script_3_1.ahk"))
			So(err, ShouldBeNil)
			So(string(content), ShouldEqual, "a::b ä")
		})
		Convey("should name the directory in its hint.", func() {
			So(storage.Hint(), ShouldContainSubstring, dir)
		})
	})
}

func TestMultiStorage(t *testing.T) {
	Convey("A multi storage with a failing member", t, func() {
		good := &memStorage{}
		storage := NewMultiStorage(&memStorage{err: errTest}, good)

		err := storage.Store(&ExtractedScript{PID: 1, Sequence: 1})

		Convey("should still store in the other members.", func() {
			So(err, ShouldNotBeNil)
			So(good.filenames(), ShouldResemble, []string{"script_1_1.ahk"})
		})
		Convey("should join the hints of all members.", func() {
			So(storage.Hint(), ShouldEqual, "memory and memory")
		})
	})
}
