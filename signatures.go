package ahkdump

import (
	"bytes"
	"regexp"
)

// Signatures configures how an unpacked script is recognized in memory.
type Signatures struct {
	// Marker is the primary signature, embedded by the script compiler
	// right in front of the script text.
	Marker []byte
	// EndPattern terminates a script found behind the Marker.
	EndPattern []byte
	// MinimumContent must be contained in every accepted marker script.
	MinimumContent string
	// Secondary signatures hint at an unpacked script but are not
	// authoritative.
	Secondary [][]byte
}

// DefaultSignatures returns the signature set for compiled AutoHotkey
// executables. Every call returns a fresh copy.
func DefaultSignatures() *Signatures {
	return &Signatures{
		Marker:         []byte("<COMPILER"),
		EndPattern:     []byte{0, 0},
		MinimumContent: "::",
		Secondary: [][]byte{
			[]byte("AutoHotkey"),
			[]byte("SendInput"),
			[]byte("WinActivate"),
			[]byte("#NoEnv"),
			[]byte("#SingleInstance"),
			[]byte("::"),
		},
	}
}

// SignatureMatch is the result of matching one memory region.
type SignatureMatch struct {
	Primary bool
	// Secondary names the first secondary signature found, if any.
	Secondary string
}

// Found reports whether any signature matched.
func (m SignatureMatch) Found() bool {
	return m.Primary || m.Secondary != ""
}

// SignatureMatcher decides whether a memory region contains an unpacked
// script.
type SignatureMatcher interface {
	Match(data []byte) SignatureMatch
}

type staticMatcher struct {
	sigs *Signatures
}

// NewStaticMatcher returns a SignatureMatcher performing plain substring
// searches for the given signatures.
func NewStaticMatcher(sigs *Signatures) SignatureMatcher {
	return &staticMatcher{sigs: sigs}
}

func (m *staticMatcher) Match(data []byte) SignatureMatch {
	if len(m.sigs.Marker) > 0 && bytes.Contains(data, m.sigs.Marker) {
		return SignatureMatch{Primary: true}
	}
	for _, sig := range m.sigs.Secondary {
		if bytes.Contains(data, sig) {
			return SignatureMatch{Secondary: string(sig)}
		}
	}
	return SignatureMatch{}
}

func mustCompileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(p)
	}
	return res
}

var likelihoodPatterns = mustCompileAll(
	`(?im)#NoEnv`,
	`(?im)#SingleInstance`,
	`(?im)#Include`,
	`(?im)SendInput\s*[,\(]`,
	`(?im)WinActivate\s*[,\(]`,
	`(?im)Sleep\s*[,\(]`,
	`(?im)ControlClick\s*[,\(]`,
	`(?im)WinWait\s*[,\(]`,
	`(?im)IfWinExist\s*[,\(]`,
	`(?im)Loop\s*[,\(]`,
	`(?im)Hotkey\s*[,\(]`,
	`(?im)::[^:]+::`,
	`(?im)^\s*[a-zA-Z_][a-zA-Z0-9_]*\s*:=`,
	`(?im)Run\s*[,\(]`,
	`(?im)MouseClick\s*[,\(]`,
	`(?im)SetKeyDelay\s*[,\(]`,
)

var keywordDensityPatterns = mustCompileAll(
	`(?i)SendInput[,\s]`,
	`(?i)WinActivate[,\s]`,
	`(?i)Sleep[,\s]`,
	`(?i)ControlClick[,\s]`,
	`(?i)WinWait[,\s]`,
	`(?i)IfWinExist[,\s]`,
	`(?i)Loop[,\s]`,
	`(?i)Hotkey[,\s]`,
	`(?i)#NoEnv`,
	`(?i)#SingleInstance`,
	`(?i)#Include`,
	`(?i)::`,
	`(?i)#IfWin`,
)

// mainKeywords must appear verbatim in a keyword density candidate.
var mainKeywords = []string{
	"SendInput",
	"WinActivate",
	"Sleep",
	"ControlClick",
	"WinWait",
	"IfWinExist",
	"Loop",
	"Hotkey",
}

var stringEmbeddedPatterns = mustCompileAll(
	`(?is)"[^"]*(?:SendInput|WinActivate|Sleep)[^"]*"`,
	`(?is)'[^']*(?:SendInput|WinActivate|Sleep)[^']*'`,
)

var resourceKeywords = [][]byte{
	[]byte("autohotkey"),
	[]byte("sendinput"),
	[]byte("winactivate"),
	[]byte("#noenv"),
	[]byte("#singleinstance"),
	[]byte("::"),
	[]byte("sleep,"),
	[]byte("run,"),
}
