package version

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParse(t *testing.T) {
	Convey("Parsing versions", t, func() {
		Convey("should accept three numeric components.", func() {
			v, err := Parse("1.2.3")
			So(err, ShouldBeNil)
			So(v, ShouldResemble, Version{Major: 1, Minor: 2, Bugfix: 3})
		})
		Convey("should accept a leading v.", func() {
			v, err := Parse("v0.3.1")
			So(err, ShouldBeNil)
			So(v.String(), ShouldEqual, "0.3.1")
		})
		Convey("should reject malformed input.", func() {
			_, err := Parse("1.2")
			So(err, ShouldNotBeNil)
			_, err = Parse("1.x.3")
			So(err, ShouldNotBeNil)
		})
	})

	Convey("A version embedded in JSON", t, func() {
		b, err := json.Marshal(struct {
			V Version `json:"v"`
		}{AhkdumpVersion})

		Convey("should be a plain string.", func() {
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"v":"`+AhkdumpVersion.String()+`"}`)
		})
	})

	Convey("Format compatibility", t, func() {
		So(Version{1, 0, 0}.Compatible(Version{1, 1, 0}), ShouldBeTrue)
		So(Version{1, 2, 0}.Compatible(Version{1, 1, 0}), ShouldBeFalse)
		So(Version{2, 0, 0}.Compatible(Version{1, 9, 0}), ShouldBeFalse)
	})
}
