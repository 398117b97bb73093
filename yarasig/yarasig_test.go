package yarasig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fkie-cad/ahkdump"
	"github.com/hillu/go-yara/v4"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"
	"github.com/targodan/go-errors"
)

type MockRules struct {
	mock.Mock
}

func (_m *MockRules) ScanMem(buf []byte, flags yara.ScanFlags, timeout time.Duration, cb yara.ScanCallback) error {
	ret := _m.Called(buf, flags, timeout, cb)
	return ret.Error(0)
}

func matchesRules(rules ...yara.MatchRule) func(mock.Arguments) {
	return func(args mock.Arguments) {
		m := args.Get(3).(*yara.MatchRules)
		*m = append(*m, rules...)
	}
}

const testRules = `
rule ahk_header : primary {
	strings:
		$ = "; <AUTHOR>"
	condition:
		all of them
}

rule ahk_loader {
	strings:
		$ = "qwertz_loader"
	condition:
		all of them
}
`

func TestNewMatcher(t *testing.T) {
	Convey("Creating a matcher without rules", t, func() {
		m, err := NewMatcher(nil, nil, 0)

		Convey("should fail.", func() {
			So(m, ShouldBeNil)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestMatcherWithMockedRules(t *testing.T) {
	Convey("A matcher over mocked rules", t, func() {
		rules := new(MockRules)
		m, err := NewMatcher(nil, rules, time.Second)
		So(err, ShouldBeNil)

		Convey("should not run the rules if the static marker matches.", func() {
			res := m.Match([]byte("x<COMPILER y"))
			So(res.Primary, ShouldBeTrue)
			rules.AssertNotCalled(t, "ScanMem", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
		Convey("should treat rules tagged primary as the primary marker.", func() {
			buf := []byte("nothing static")
			rules.On("ScanMem", buf, yara.ScanFlags(0), time.Second, mock.Anything).
				Run(matchesRules(yara.MatchRule{Rule: "header", Tags: []string{"packed", PrimaryTag}})).
				Return(nil).
				Once()

			So(m.Match(buf), ShouldResemble, ahkdump.SignatureMatch{Primary: true})
		})
		Convey("should name other rule matches as secondary signature.", func() {
			buf := []byte("nothing static")
			rules.On("ScanMem", buf, yara.ScanFlags(0), time.Second, mock.Anything).
				Run(matchesRules(yara.MatchRule{Rule: "some_rule"})).
				Return(nil).
				Once()

			So(m.Match(buf), ShouldResemble, ahkdump.SignatureMatch{Secondary: "some_rule"})
		})
		Convey("should prefer the static secondary signature.", func() {
			buf := []byte("SendInput")
			rules.On("ScanMem", buf, yara.ScanFlags(0), time.Second, mock.Anything).
				Run(matchesRules(yara.MatchRule{Rule: "some_rule"})).
				Return(nil).
				Once()

			So(m.Match(buf).Secondary, ShouldEqual, "SendInput")
		})
		Convey("should fall back to the static result on scan errors.", func() {
			buf := []byte("#NoEnv")
			rules.On("ScanMem", buf, yara.ScanFlags(0), time.Second, mock.Anything).
				Return(errors.New("scan failed")).
				Once()

			So(m.Match(buf), ShouldResemble, ahkdump.SignatureMatch{Secondary: "#NoEnv"})
		})
	})
}

func TestMatcherWithCompiledRules(t *testing.T) {
	Convey("Compiled rules", t, func() {
		rules, err := CompileString(testRules)
		So(err, ShouldBeNil)
		m, err := NewMatcher(nil, rules, 0)
		So(err, ShouldBeNil)

		Convey("should confirm regions matched by a primary rule.", func() {
			So(m.Match([]byte("garbage ; <AUTHOR> garbage")).Primary, ShouldBeTrue)
		})
		Convey("should report other rules by name.", func() {
			res := m.Match([]byte("x qwertz_loader y"))
			So(res.Primary, ShouldBeFalse)
			So(res.Secondary, ShouldEqual, "ahk_loader")
		})
		Convey("should not match unrelated data.", func() {
			So(m.Match([]byte("unrelated")).Found(), ShouldBeFalse)
		})
	})

	Convey("Rules loaded from a source file", t, func() {
		path := filepath.Join(t.TempDir(), "rules.yar")
		So(os.WriteFile(path, []byte(testRules), 0644), ShouldBeNil)

		rules, err := LoadRules(path)

		Convey("should be usable for matching.", func() {
			So(err, ShouldBeNil)
			m, _ := NewMatcher(nil, rules, 0)
			So(m.Match([]byte("; <AUTHOR>")).Primary, ShouldBeTrue)
		})
	})

	Convey("Invalid rule sources", t, func() {
		_, err := CompileString("rule broken {")

		Convey("should not compile.", func() {
			So(err, ShouldNotBeNil)
		})
	})
}
