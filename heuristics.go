package ahkdump

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minScriptLength     = 20
	minScriptIndicators = 2
)

// CountScriptIndicators returns how many distinct syntax patterns of the
// script language occur in text.
func CountScriptIndicators(text string) int {
	n := 0
	for _, p := range likelihoodPatterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

// IsLikelyScript is the acceptance gate shared by all text based
// extraction methods. It requires a minimum length and at least two
// matching syntax patterns.
func IsLikelyScript(text string) bool {
	if utf8.RuneCountInString(text) < minScriptLength {
		return false
	}
	return CountScriptIndicators(text) >= minScriptIndicators
}

var excessiveBlankLines = regexp.MustCompile(`\n\s*\n\s*\n`)

// CleanScript strips NUL characters and surrounding whitespace from every
// line, drops leading blank lines and collapses runs of blank lines.
func CleanScript(script string) string {
	lines := strings.Split(script, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(strings.ReplaceAll(line, "\x00", ""))
		if len(cleaned) == 0 && line == "" {
			continue
		}
		cleaned = append(cleaned, line)
	}
	out := strings.Join(cleaned, "\n")
	out = excessiveBlankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// decodeLossy interprets b as UTF-8, dropping invalid sequences.
func decodeLossy(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}
