package ahkdump

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/targodan/go-errors"
)

// ExtractionMethod identifies the heuristic which produced a script.
type ExtractionMethod int

const (
	MethodCompilerSignature ExtractionMethod = iota
	MethodPatternMatch
	MethodStringEmbedded
	MethodResourceDecode
)

func (m ExtractionMethod) String() string {
	switch m {
	case MethodCompilerSignature:
		return "compiler_signature"
	case MethodPatternMatch:
		return "pattern_match"
	case MethodStringEmbedded:
		return "string_embedded"
	case MethodResourceDecode:
		return "resource_decode"
	}
	return fmt.Sprintf("ExtractionMethod(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m ExtractionMethod) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ExtractedScript is one accepted candidate. It is handed to a
// ScriptStorage right away and not retained afterwards.
type ExtractedScript struct {
	// PID is the source process, zero for resource scripts.
	PID int
	// Child is set for scripts found in a dynamically discovered process.
	Child bool
	// Sequence is the per-source, per-method number of the script. For
	// resource scripts it is the 1-based resource index.
	Sequence int
	Method   ExtractionMethod
	Content  string
}

// Filename returns the name under which the script is persisted. Names are
// unique per (source, method, sequence).
func (s *ExtractedScript) Filename() string {
	switch s.Method {
	case MethodResourceDecode:
		return fmt.Sprintf("script_resource_%d.ahk", s.Sequence)
	case MethodPatternMatch:
		return fmt.Sprintf("script_%d_%d_subprocess_raw.ahk", s.PID, s.Sequence)
	case MethodStringEmbedded:
		return fmt.Sprintf("script_%d_%d_subprocess_string.ahk", s.PID, s.Sequence)
	}
	if s.Child {
		return fmt.Sprintf("script_%d_%d_subprocess.ahk", s.PID, s.Sequence)
	}
	return fmt.Sprintf("script_%d_%d.ahk", s.PID, s.Sequence)
}

// ScriptStorage persists extracted scripts. Implementations must be safe
// for concurrent use.
type ScriptStorage interface {
	Store(script *ExtractedScript) error
	// Hint returns a human readable description of where scripts end up.
	Hint() string
	io.Closer
}

type sequenceKey struct {
	pid    int
	method ExtractionMethod
}

// Sequencer hands out script sequence numbers. Numbers start at 1 and are
// never reused for the same (pid, method) pair.
type Sequencer struct {
	mux  sync.Mutex
	next map[sequenceKey]int
}

func NewSequencer() *Sequencer {
	return &Sequencer{next: make(map[sequenceKey]int)}
}

func (s *Sequencer) Next(pid int, method ExtractionMethod) int {
	s.mux.Lock()
	defer s.mux.Unlock()
	key := sequenceKey{pid: pid, method: method}
	s.next[key]++
	return s.next[key]
}

type directoryStorage struct {
	directory string
}

// NewDirectoryStorage creates a ScriptStorage writing one UTF-8 file per
// script into dir. The directory is created if it does not exist.
func NewDirectoryStorage(dir string) (ScriptStorage, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, errors.Errorf("could not create output directory, reason: %w", err)
	}
	return &directoryStorage{directory: dir}, nil
}

func (s *directoryStorage) Store(script *ExtractedScript) error {
	err := os.WriteFile(filepath.Join(s.directory, script.Filename()), []byte(script.Content), 0644)
	if err != nil {
		return errors.Errorf("could not write script \"%s\", reason: %w", script.Filename(), err)
	}
	return nil
}

func (s *directoryStorage) Hint() string {
	return fmt.Sprintf("scripts are stored in directory \"%s\"", s.directory)
}

func (s *directoryStorage) Close() error {
	return nil
}

type multiStorage struct {
	storages []ScriptStorage
}

// NewMultiStorage returns a ScriptStorage storing every script in all
// given storages.
func NewMultiStorage(storages ...ScriptStorage) ScriptStorage {
	return &multiStorage{storages: storages}
}

func (s *multiStorage) Store(script *ExtractedScript) error {
	var err error
	for _, st := range s.storages {
		err = errors.NewMultiError(err, st.Store(script))
	}
	return err
}

func (s *multiStorage) Hint() string {
	hints := make([]string, len(s.storages))
	for i, st := range s.storages {
		hints[i] = st.Hint()
	}
	return Join(hints, ", ", " and ")
}

func (s *multiStorage) Close() error {
	var err error
	for _, st := range s.storages {
		err = errors.NewMultiError(err, st.Close())
	}
	return err
}
