package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fkie-cad/ahkdump"
	"github.com/targodan/go-errors"
	"github.com/yeka/zip"
)

type zipStorage struct {
	path      string
	password  string
	mux       sync.Mutex
	file      io.Closer
	zipWriter *zip.Writer
	closed    bool
}

// NewZIPStorage creates a ScriptStorage writing all scripts into a single
// ZIP archive at path. If password is not empty, every entry is AES-256
// encrypted.
func NewZIPStorage(path, password string) (ahkdump.ScriptStorage, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Errorf("could not create zip file, reason: %w", err)
	}
	return &zipStorage{
		path:      path,
		password:  password,
		file:      f,
		zipWriter: zip.NewWriter(f),
	}, nil
}

func (s *zipStorage) create(name string) (io.Writer, error) {
	if s.password == "" {
		return s.zipWriter.Create(name)
	}
	return s.zipWriter.Encrypt(name, s.password, zip.AES256Encryption)
}

func (s *zipStorage) Store(script *ahkdump.ExtractedScript) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.closed {
		return errors.New("zip storage is already closed")
	}

	w, err := s.create(script.Filename())
	if err != nil {
		return errors.Errorf("could not write to zip file, reason: %w", err)
	}
	_, err = io.WriteString(w, script.Content)
	if err != nil {
		return errors.Errorf("could not write to zip file, reason: %w", err)
	}
	return nil
}

func (s *zipStorage) Hint() string {
	if s.password != "" {
		return fmt.Sprintf("scripts are stored in the password protected archive \"%s\"", s.path)
	}
	return fmt.Sprintf("scripts are stored in the archive \"%s\"", s.path)
}

func (s *zipStorage) Close() error {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return errors.NewMultiError(s.zipWriter.Close(), s.file.Close())
}
