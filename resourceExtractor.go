package ahkdump

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fkie-cad/ahkdump/pefile"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const (
	minRawResourceLength   = 100
	minResourceKeywords    = 2
	minPrintableTextLength = 50
)

type resourceDecoder struct {
	name    string
	decoder func() *encoding.Decoder
}

var resourceDecoders = []resourceDecoder{
	{"utf-8", nil},
	{"utf-16le", unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder},
	{"latin-1", charmap.ISO8859_1.NewDecoder},
	{"cp1252", charmap.Windows1252.NewDecoder},
}

func decodeResource(dec resourceDecoder, data []byte) (string, bool) {
	if dec.decoder == nil {
		return decodeLossy(data), true
	}
	out, err := dec.decoder().Bytes(data)
	if err != nil {
		return "", false
	}
	// Undecodable sequences are dropped rather than replaced.
	return strings.ReplaceAll(string(out), string(utf8.RuneError), ""), true
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// RecoverResourceScript tries to recover script text from a raw resource
// blob. The blob is first treated as NUL terminated text in several
// encodings; if none yields a likely script, printable characters are
// salvaged from blobs with enough script keywords.
func RecoverResourceScript(blob []byte) (string, bool) {
	text := blob
	if i := bytes.Index(blob, []byte{0, 0}); i > 0 {
		text = blob[:i]
	}

	for _, dec := range resourceDecoders {
		decoded, ok := decodeResource(dec, text)
		if !ok {
			continue
		}
		decoded = strings.TrimSpace(strings.ReplaceAll(decoded, "\x00", ""))
		if IsLikelyScript(decoded) {
			logrus.WithField("encoding", dec.name).Debug("Resource decoded as script.")
			return CleanScript(decoded), true
		}
	}

	if len(blob) <= minRawResourceLength {
		return "", false
	}

	lower := bytes.ToLower(blob)
	found := 0
	for _, kw := range resourceKeywords {
		if bytes.Contains(lower, kw) {
			found++
		}
	}
	if found < minResourceKeywords {
		return "", false
	}

	printable := make([]byte, len(blob))
	for i, b := range blob {
		if (b >= 32 && b <= 126) || b == '\t' || b == '\n' || b == '\r' {
			printable[i] = b
		} else {
			printable[i] = ' '
		}
	}
	cleaned := strings.TrimSpace(whitespaceRun.ReplaceAllString(string(printable), " "))
	if len(cleaned) > minPrintableTextLength && IsLikelyScript(cleaned) {
		return CleanScript(cleaned), true
	}
	return "", false
}

// ResourceExtractor recovers scripts from the RCDATA resources of a PE
// file without executing it.
type ResourceExtractor struct {
	storage  ScriptStorage
	observer Observer
}

func NewResourceExtractor(storage ScriptStorage, observer Observer) *ResourceExtractor {
	if observer == nil {
		observer = NopObserver()
	}
	return &ResourceExtractor{
		storage:  storage,
		observer: observer,
	}
}

// ExtractFile extracts all scripts from the executable at path. Malformed
// files yield a *Error of KindMalformedInput.
func (e *ResourceExtractor) ExtractFile(path string) (int, error) {
	img, err := pefile.Open(path)
	if err != nil {
		kind := KindTransientIO
		if errors.Is(err, pefile.ErrNotPE) || errors.Is(err, pefile.ErrTruncated) {
			kind = KindMalformedInput
		}
		return 0, newError(kind, 0, "resource extraction", err)
	}
	defer img.Close()

	return e.ExtractImage(img)
}

// ExtractImage extracts all scripts from the RCDATA resources of img.
func (e *ResourceExtractor) ExtractImage(img *pefile.Image) (int, error) {
	if img.ResourceSection == nil {
		logf(e.observer, SeverityInfo, "No resource section found")
		return 0, nil
	}

	resources := img.ResourcesOfType(pefile.RTRCData)
	logf(e.observer, SeverityInfo, "Found %d RCDATA resources", len(resources))

	count := 0
	var errs error
	for i, res := range resources {
		blob, ok := img.ReadRVA(res.RVA, res.Size)
		if !ok {
			logrus.WithFields(logrus.Fields{
				"index": i + 1,
				"rva":   res.RVA,
				"size":  res.Size,
			}).Debug("Resource data lies outside of the file.")
			logf(e.observer, SeverityWarning, "Resource %d (RVA 0x%X, %d bytes) lies outside of the file", i+1, res.RVA, res.Size)
			continue
		}

		content, ok := RecoverResourceScript(blob)
		if !ok {
			continue
		}
		script := &ExtractedScript{
			Sequence: i + 1,
			Method:   MethodResourceDecode,
			Content:  content,
		}
		if err := e.storage.Store(script); err != nil {
			errs = errors.NewMultiError(errs, err)
			logf(e.observer, SeverityError, "Could not store resource script %d: %v", i+1, err)
			continue
		}
		count++
		logf(e.observer, SeveritySuccess, "Extracted script from resource %d: %d characters", i+1, utf8.RuneCountInString(content))
	}
	if errs != nil {
		return count, newError(KindTransientIO, 0, "resource extraction", errs)
	}
	return count, nil
}
