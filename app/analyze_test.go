package app

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/fkie-cad/ahkdump/arch"
	"github.com/fkie-cad/ahkdump/pefile"

	. "github.com/smartystreets/goconvey/convey"
)

func TestAnalysisToDict(t *testing.T) {
	Convey("An analysis converted to a dict", t, func() {
		a := &pefile.Analysis{
			Path:         "sample.exe",
			FileSize:     4096,
			Bitness:      arch.Bitness64Bit,
			EntryPoint:   0x1000,
			IsAutoHotkey: true,
			Packer:       pefile.PackerGuess{Packer: pefile.PackerNone},
			Sections: []*pefile.SectionInfo{
				{Name: ".text", VirtualAddress: 0x1000, Entropy: 7.9},
			},
		}
		dict := analysisToDict(a)

		Convey("should start with the identifying fields.", func() {
			keys := dict.Keys()
			So(keys[0], ShouldEqual, "Path")
			So(keys[1], ShouldEqual, "FileSize")
			So(keys[len(keys)-1], ShouldEqual, "Sections")
		})

		Convey("should format addresses as hex.", func() {
			ep, ok := dict.Get("EntryPoint")
			So(ok, ShouldBeTrue)
			So(ep, ShouldEqual, "0x1000")
		})

		Convey("should keep its order when encoded.", func() {
			data, err := json.Marshal(dict)
			So(err, ShouldBeNil)
			s := string(data)
			So(strings.Index(s, "\"Path\""), ShouldBeLessThan, strings.Index(s, "\"Bitness\""))
			So(strings.Index(s, "\"Bitness\""), ShouldBeLessThan, strings.Index(s, "\"Sections\""))
			So(s, ShouldContainSubstring, "\".text\"")
		})

		Convey("should list high entropy sections.", func() {
			hes, ok := dict.Get("HighEntropySections")
			So(ok, ShouldBeTrue)
			So(hes, ShouldResemble, []string{".text"})
		})
	})
}
