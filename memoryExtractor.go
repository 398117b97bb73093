package ahkdump

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"github.com/fkie-cad/ahkdump/procio"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
)

const (
	keywordWindowLead       = 100
	minKeywordTokens        = 2
	minKeywordLines         = 3
	minEmbeddedScriptLength = 50
)

// ExtractMarkerScripts returns every script delimited by the primary
// marker in data. A script starts at the beginning of the line holding the
// marker and ends at the first end pattern behind it.
func ExtractMarkerScripts(data []byte, sigs *Signatures) []string {
	if len(sigs.Marker) == 0 || len(sigs.EndPattern) == 0 {
		return nil
	}

	var scripts []string
	pos := 0
	for pos < len(data) {
		idx := bytes.Index(data[pos:], sigs.Marker)
		if idx < 0 {
			break
		}
		markerPos := pos + idx
		pos = markerPos + len(sigs.Marker)

		end := bytes.Index(data[pos:], sigs.EndPattern)
		if end < 0 {
			// No later marker can be terminated either.
			break
		}
		start := bytes.LastIndexByte(data[:markerPos], '\n') + 1

		text := strings.TrimSpace(decodeLossy(data[start : pos+end]))
		if strings.Contains(text, sigs.MinimumContent) {
			scripts = append(scripts, text)
		}
	}
	return scripts
}

// ExtractKeywordDensityScript reconstructs a script from the first run of
// non-empty lines around characteristic keywords.
func ExtractKeywordDensityScript(data []byte) (string, bool) {
	distinct := 0
	first := -1
	for _, p := range keywordDensityPatterns {
		loc := p.FindIndex(data)
		if loc == nil {
			continue
		}
		distinct++
		if first < 0 || loc[0] < first {
			first = loc[0]
		}
	}
	if distinct < minKeywordTokens {
		return "", false
	}

	start := first - keywordWindowLead
	if start < 0 {
		start = 0
	}

	lines := make([]string, 0, minKeywordLines)
	rest := data[start:]
	for len(rest) > 0 {
		var raw []byte
		nl := bytes.IndexByte(rest, '\n')
		if nl < 0 {
			raw, rest = rest, nil
		} else {
			raw, rest = rest[:nl], rest[nl+1:]
		}

		line := strings.TrimSpace(decodeLossy(raw))
		if line != "" && !strings.HasPrefix(line, "\x00") {
			lines = append(lines, line)
		} else if len(lines) > 0 {
			break
		}
	}
	if len(lines) < minKeywordLines {
		return "", false
	}

	script := strings.Join(lines, "\n")
	hasMain := false
	for _, kw := range mainKeywords {
		if strings.Contains(script, kw) {
			hasMain = true
			break
		}
	}
	if !hasMain || !IsLikelyScript(script) {
		return "", false
	}
	return script, true
}

// ExtractStringEmbeddedScripts returns at most one script per quote type,
// taken from quoted literals holding high signal function names.
func ExtractStringEmbeddedScripts(data []byte) []string {
	var scripts []string
	for _, p := range stringEmbeddedPatterns {
		rest := data
		for len(rest) > 0 {
			loc := p.FindIndex(rest)
			if loc == nil {
				break
			}
			content := strings.Trim(decodeLossy(rest[loc[0]:loc[1]]), "\"'")
			rest = rest[loc[1]:]

			if utf8.RuneCountInString(content) > minEmbeddedScriptLength && strings.Contains(content, "::") {
				scripts = append(scripts, content)
				break
			}
		}
	}
	return scripts
}

// MemoryExtractor applies the extraction heuristics to the memory of a
// process and stores every accepted candidate.
type MemoryExtractor struct {
	sigs      *Signatures
	storage   ScriptStorage
	sequencer *Sequencer
	filter    MemorySegmentFilter
	observer  Observer
}

// NewMemoryExtractor creates a MemoryExtractor. The sequencer must be
// shared by all extractors writing to the same storage.
func NewMemoryExtractor(sigs *Signatures, storage ScriptStorage, sequencer *Sequencer, filter MemorySegmentFilter, observer Observer) *MemoryExtractor {
	if observer == nil {
		observer = NopObserver()
	}
	if sequencer == nil {
		sequencer = NewSequencer()
	}
	return &MemoryExtractor{
		sigs:      sigs,
		storage:   storage,
		sequencer: sequencer,
		filter:    filter,
		observer:  observer,
	}
}

// ExtractProcess runs one pass over all readable regions of proc and
// returns the number of stored scripts. Child processes are searched with
// all three heuristics.
func (e *MemoryExtractor) ExtractProcess(ctx context.Context, proc procio.Process, child bool) (int, error) {
	pid := proc.PID()
	count := 0
	var scanned uint64

	_, err := ScanRegions(ctx, proc, e.filter, func(blob *RegionBlob) bool {
		n, err := e.ExtractBlob(pid, blob, child)
		count += n
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"pid":           pid,
				"baseAddress":   procio.FormatMemorySegmentAddress(blob.Region),
				logrus.ErrorKey: err,
			}).Warn("Extraction from memory region failed.")
			logf(e.observer, SeverityWarning, "%v", err)
		}
		scanned += uint64(blob.Region.Size)
		e.observer.OnProgress(pid, scanned)
		return true
	})
	if err != nil {
		return count, newError(KindProcessLifecycle, pid, "memory extraction", err)
	}
	return count, nil
}

// ExtractBlob applies the heuristics to a single region. Failures in the
// region are returned as *Error and do not affect other regions.
func (e *MemoryExtractor) ExtractBlob(pid int, blob *RegionBlob, child bool) (count int, err error) {
	if len(blob.Data) == 0 {
		return 0, nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = e.regionError(KindMalformedInput, pid, blob, errors.Newf("unexpected failure while scanning region: %v", r))
		}
	}()

	var storeErrs []string
	store := func(method ExtractionMethod, content string) {
		script := &ExtractedScript{
			PID:      pid,
			Child:    child,
			Sequence: e.sequencer.Next(pid, method),
			Method:   method,
			Content:  content,
		}
		if sErr := e.storage.Store(script); sErr != nil {
			storeErrs = append(storeErrs, sErr.Error())
			return
		}
		count++
		logf(e.observer, SeveritySuccess, "Extracted script %s from process %d (%d characters)", script.Filename(), pid, utf8.RuneCountInString(content))
	}

	for _, script := range ExtractMarkerScripts(blob.Data, e.sigs) {
		store(MethodCompilerSignature, script)
	}
	if child {
		if script, ok := ExtractKeywordDensityScript(blob.Data); ok {
			store(MethodPatternMatch, script)
		}
		for _, script := range ExtractStringEmbeddedScripts(blob.Data) {
			store(MethodStringEmbedded, script)
		}
	}

	if len(storeErrs) > 0 {
		return count, e.regionError(KindTransientIO, pid, blob, errors.New(strings.Join(storeErrs, "; ")))
	}
	return count, nil
}

func (e *MemoryExtractor) regionError(kind ErrorKind, pid int, blob *RegionBlob, cause error) *Error {
	err := newError(kind, pid, "memory extraction", cause)
	err.Offset = int64(blob.Region.BaseAddress)
	return err
}
