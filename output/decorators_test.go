package output

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fkie-cad/ahkdump/pgp"
	. "github.com/smartystreets/goconvey/convey"
)

type closeRecorder struct {
	bytes.Buffer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestDecorators(t *testing.T) {
	Convey("A compressed and encrypted output", t, func() {
		base := &closeRecorder{}
		out, err := Decorate(base, ZSTDCompressionDecorator(), PGPEncryptionDecorator(&pgp.Options{Password: "pw"}))
		So(err, ShouldBeNil)

		Convey("should suggest the combined extension.", func() {
			So(SuggestedFileExtension(out), ShouldEqual, ".zst.pgp")
		})
		Convey("should close the underlying writer.", func() {
			_, err := out.Write([]byte("data"))
			So(err, ShouldBeNil)
			So(out.Close(), ShouldBeNil)
			So(base.closed, ShouldBeTrue)
		})
		Convey("should compress before encrypting.", func() {
			_, err := out.Write([]byte("data"))
			So(err, ShouldBeNil)
			So(out.Close(), ShouldBeNil)
			So(IsZSTDCompressed(base.Bytes()), ShouldBeFalse)

			dec, err := pgp.NewDecryptor(&pgp.Options{Password: "pw"}, bytes.NewReader(base.Bytes()))
			So(err, ShouldBeNil)
			compressed, err := io.ReadAll(dec)
			So(err, ShouldBeNil)
			So(IsZSTDCompressed(compressed), ShouldBeTrue)

			plain, err := DecompressZSTD(compressed)
			So(err, ShouldBeNil)
			So(string(plain), ShouldEqual, "data")
		})
	})

	Convey("A decorator which fails", t, func() {
		base := &closeRecorder{}
		_, err := Decorate(base, PGPEncryptionDecorator(&pgp.Options{}))

		Convey("should close the output.", func() {
			So(err, ShouldNotBeNil)
			So(base.closed, ShouldBeTrue)
		})
	})

	Convey("Creating a compressed file", t, func() {
		path := filepath.Join(t.TempDir(), "report.json")
		out, name, err := CreateFile(path, ZSTDCompressionDecorator())
		So(err, ShouldBeNil)
		_, err = io.WriteString(out, "{}")
		So(err, ShouldBeNil)
		So(out.Close(), ShouldBeNil)

		Convey("should append the extension.", func() {
			So(name, ShouldEqual, path+ZSTDSuffix)
		})
		Convey("should yield zstd data.", func() {
			data, err := os.ReadFile(name)
			So(err, ShouldBeNil)
			So(IsZSTDCompressed(data), ShouldBeTrue)
			plain, err := DecompressZSTD(data)
			So(err, ShouldBeNil)
			So(string(plain), ShouldEqual, "{}")
		})
	})

	Convey("Creating a file which already carries the extension", t, func() {
		path := filepath.Join(t.TempDir(), "report.json.zst")
		out, name, err := CreateFile(path, ZSTDCompressionDecorator())
		So(err, ShouldBeNil)
		So(out.Close(), ShouldBeNil)

		Convey("should keep the name.", func() {
			So(name, ShouldEqual, path)
		})
	})
}

func TestAppendExtension(t *testing.T) {
	Convey("Appending an extension", t, func() {
		So(appendExtension("report.json", ".zst.pgp"), ShouldEqual, "report.json.zst.pgp")
		So(appendExtension("report.json.zst", ".zst.pgp"), ShouldEqual, "report.json.zst.pgp")
		So(appendExtension("report.json.zst.pgp", ".zst.pgp"), ShouldEqual, "report.json.zst.pgp")
		So(appendExtension("report.pgp", ".zst.pgp"), ShouldEqual, "report.pgp.zst.pgp")
		So(appendExtension("report", ""), ShouldEqual, "report")
	})
}
