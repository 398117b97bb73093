package system

import (
	"encoding/json"
	"testing"

	"github.com/fkie-cad/ahkdump/arch"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGetInfo(t *testing.T) {
	Convey("The host information", t, func() {
		info, err := GetInfo()
		So(err, ShouldBeNil)

		Convey("should describe the running host.", func() {
			So(info.OSArch, ShouldEqual, arch.Native())
			So(info.Bitness, ShouldEqual, info.OSArch.Bitness())
			So(info.OSName, ShouldNotBeEmpty)
			So(info.Hostname, ShouldNotBeEmpty)
			So(info.NumCPUs, ShouldBeGreaterThan, 0)
			So(info.TotalRAM, ShouldBeGreaterThan, 0)
		})

		Convey("should agree with TotalRAM.", func() {
			ram, err := TotalRAM()
			So(err, ShouldBeNil)
			So(ram, ShouldEqual, info.TotalRAM)
		})

		Convey("should be encoded without the architecture.", func() {
			data, err := json.Marshal(info)
			So(err, ShouldBeNil)

			fields := make(map[string]interface{})
			So(json.Unmarshal(data, &fields), ShouldBeNil)
			So(fields, ShouldContainKey, "osName")
			So(fields, ShouldContainKey, "totalRAM")
			So(fields, ShouldNotContainKey, "OSArch")
		})
	})
}
