// Package yarasig recognizes unpacked scripts with user supplied YARA
// rules in addition to the built in signatures.
package yarasig

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/fkie-cad/ahkdump"
	"github.com/hillu/go-yara/v4"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
)

// PrimaryTag marks rules whose match is as authoritative as the primary
// marker.
const PrimaryTag = "primary"

const rulesNamespace = "ahkdump"

var compiledRulesMagic = []byte("YARA")

// RulesFileExtensions are the file extensions of YARA rules files.
var RulesFileExtensions = []string{".yar", ".yara", ".yarc"}

// Rules is the subset of *yara.Rules used for matching.
type Rules interface {
	ScanMem(buf []byte, flags yara.ScanFlags, timeout time.Duration, cb yara.ScanCallback) error
}

type matcher struct {
	fallback ahkdump.SignatureMatcher
	rules    Rules
	timeout  time.Duration
}

// NewMatcher returns a SignatureMatcher which consults fallback first and
// then runs rules over the region. A matching rule tagged PrimaryTag
// counts as the primary marker, any other match as a secondary signature
// named after the rule.
func NewMatcher(fallback ahkdump.SignatureMatcher, rules Rules, timeout time.Duration) (ahkdump.SignatureMatcher, error) {
	if rules == nil {
		return nil, errors.New("rules must not be nil")
	}
	if fallback == nil {
		fallback = ahkdump.NewStaticMatcher(ahkdump.DefaultSignatures())
	}
	return &matcher{
		fallback: fallback,
		rules:    rules,
		timeout:  timeout,
	}, nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (m *matcher) Match(data []byte) ahkdump.SignatureMatch {
	res := m.fallback.Match(data)
	if res.Primary {
		return res
	}

	var matches yara.MatchRules
	err := m.rules.ScanMem(data, 0, m.timeout, &matches)
	if err != nil {
		logrus.WithError(err).Debug("YARA scan of memory region failed.")
		return res
	}
	for _, rule := range matches {
		if hasTag(rule.Tags, PrimaryTag) {
			return ahkdump.SignatureMatch{Primary: true}
		}
	}
	if res.Secondary == "" && len(matches) > 0 {
		res.Secondary = matches[0].Rule
	}
	return res
}

// LoadRules loads compiled rules or compiles rule sources from path.
func LoadRules(path string) (*yara.Rules, error) {
	rulesFile, err := os.OpenFile(path, os.O_RDONLY, 0644)
	if err != nil {
		return nil, errors.Errorf("could not open rules file, reason: %w", err)
	}
	defer rulesFile.Close()

	buff := make([]byte, len(compiledRulesMagic))
	_, err = io.ReadFull(rulesFile, buff)
	if err != nil {
		return nil, errors.Errorf("could not read rules file, reason: %w", err)
	}
	if _, err := rulesFile.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Errorf("could not read rules file, reason: %w", err)
	}

	if bytes.Equal(buff, compiledRulesMagic) {
		logrus.Debug("Yara rules file contains compiled rules.")

		rules, err := yara.ReadRules(rulesFile)
		if err != nil {
			return nil, errors.Errorf("could not read rules file, reason: %w", err)
		}
		return rules, nil
	}

	logrus.Debug("Yara rules file needs to be compiled.")
	compiler, err := yara.NewCompiler()
	if err != nil {
		return nil, errors.Errorf("could not create yara compiler, reason: %w", err)
	}
	err = compiler.AddFile(rulesFile, rulesNamespace)
	if err != nil {
		return nil, errors.Errorf("could not compile yara rules, reason: %w", err)
	}
	rules, err := compiler.GetRules()
	if err != nil {
		return nil, errors.Errorf("could not compile yara rules, reason: %w", err)
	}
	return rules, nil
}

// CompileString compiles rules given as source text.
func CompileString(src string) (*yara.Rules, error) {
	compiler, err := yara.NewCompiler()
	if err != nil {
		return nil, errors.Errorf("could not create yara compiler, reason: %w", err)
	}
	if err := compiler.AddString(src, rulesNamespace); err != nil {
		return nil, errors.Errorf("could not compile yara rules, reason: %w", err)
	}
	rules, err := compiler.GetRules()
	if err != nil {
		return nil, errors.Errorf("could not compile yara rules, reason: %w", err)
	}
	return rules, nil
}
