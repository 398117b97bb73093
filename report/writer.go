package report

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/fkie-cad/ahkdump/output"
	"github.com/fkie-cad/ahkdump/pgp"
	"github.com/targodan/go-errors"
)

// WriteOptions select how a report file is encoded.
type WriteOptions struct {
	Compress   bool
	Encryption *pgp.Options
}

func (o *WriteOptions) decorators(path string) []output.OutputDecorator {
	decorators := make([]output.OutputDecorator, 0, 2)
	if o.Compress || strings.HasSuffix(path, output.ZSTDSuffix) {
		decorators = append(decorators, output.ZSTDCompressionDecorator())
	}
	if o.Encryption.Enabled() {
		decorators = append(decorators, output.PGPEncryptionDecorator(o.Encryption))
	}
	return decorators
}

// Write encodes rprt as indented JSON.
func Write(out io.Writer, rprt *Report) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rprt); err != nil {
		return errors.Errorf("could not encode report, reason: %w", err)
	}
	return nil
}

// WriteFile writes rprt to path and returns the name of the written file,
// which carries the extensions of the applied encodings.
func WriteFile(path string, rprt *Report, opts WriteOptions) (string, error) {
	out, name, err := output.CreateFile(path, opts.decorators(path)...)
	if err != nil {
		return name, err
	}
	err = Write(out, rprt)
	return name, errors.NewMultiError(err, out.Close())
}
