package pefile

import (
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
)

type unmapper struct {
	m mmap.MMap
}

func (u unmapper) Close() error {
	return u.m.Unmap()
}

// Open memory maps the file at path and parses it. If the file can not be
// mapped, it is read into memory instead. The returned Image must be
// closed.
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Errorf("could not open file, reason: %w", err)
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"path":          path,
			logrus.ErrorKey: err,
		}).Debug("Could not memory map file, reading it instead.")

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Errorf("could not read file, reason: %w", err)
		}
		return Parse(data)
	}

	img, err := Parse(m)
	if err != nil {
		m.Unmap()
		return nil, err
	}
	img.closer = unmapper{m: m}
	return img, nil
}
