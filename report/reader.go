package report

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/fkie-cad/ahkdump/output"
	"github.com/fkie-cad/ahkdump/pgp"
	"github.com/targodan/go-errors"
)

// ReadFile reads the report file at path and returns the plain JSON
// document. Encrypted reports need the matching options, compression is
// detected automatically.
func ReadFile(path string, encryption *pgp.Options) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Errorf("could not open report, reason: %w", err)
	}
	defer f.Close()

	var in io.Reader = f
	if encryption.Enabled() {
		in, err = pgp.NewDecryptor(encryption, f)
		if err != nil {
			return nil, err
		}
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return nil, errors.Errorf("could not read report, reason: %w", err)
	}
	if output.IsZSTDCompressed(data) {
		data, err = output.DecompressZSTD(data)
		if err != nil {
			return nil, errors.Errorf("could not decompress report, reason: %w", err)
		}
	}
	return data, nil
}

// Parse decodes a report and checks that its format can be read.
func Parse(data []byte) (*Report, error) {
	rprt := new(Report)
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(rprt); err != nil {
		return nil, errors.Errorf("could not decode report, reason: %w", err)
	}
	if rprt.Meta == nil {
		return nil, errors.New("report lacks meta information")
	}
	if !rprt.Meta.FormatVersion.Compatible(FormatVersion) {
		return nil, errors.Newf("unsupported report format version %s", rprt.Meta.FormatVersion)
	}
	return rprt, nil
}
