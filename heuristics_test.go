package ahkdump

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestIsLikelyScript(t *testing.T) {
	Convey("The script likelihood test", t, func() {
		Convey("should reject text with only one indicator.", func() {
			So(IsLikelyScript("this text only has one Sleep, 100 call in it"), ShouldBeFalse)
		})
		Convey("should accept a hotkey together with a directive.", func() {
			So(IsLikelyScript("#NoEnv\n::btw::by the way"), ShouldBeTrue)
		})
		Convey("should reject text shorter than 20 characters.", func() {
			So(IsLikelyScript("#NoEnv\n::a::b"), ShouldBeFalse)
		})
		Convey("should match case insensitively.", func() {
			So(IsLikelyScript("sendinput, abc\nWINACTIVATE, Notepad"), ShouldBeTrue)
		})
		Convey("should recognize assignments at the start of any line.", func() {
			So(CountScriptIndicators("foo := 1\n  bar_2 := 2"), ShouldEqual, 1)
			So(IsLikelyScript("counter := 0\nLoop, 10\n{\n}"), ShouldBeTrue)
		})
	})
}

func TestCleanScript(t *testing.T) {
	Convey("Cleaning a script", t, func() {
		Convey("should drop leading blank lines.", func() {
			So(CleanScript("\n\n  \n#NoEnv\nSleep, 1"), ShouldEqual, "#NoEnv\nSleep, 1")
		})
		Convey("should keep single interior blank lines.", func() {
			So(CleanScript("a\n\nb"), ShouldEqual, "a\n\nb")
		})
		Convey("should collapse runs of blank lines.", func() {
			So(CleanScript("a\n\n\n\n\nb"), ShouldEqual, "a\n\nb")
		})
		Convey("should strip NUL characters and trim lines.", func() {
			So(CleanScript("\x00a\x00  \n  b\x00"), ShouldEqual, "a\nb")
		})
	})
}
