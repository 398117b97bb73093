package output

import (
	"io"
	"os"
	"strings"

	"github.com/fkie-cad/ahkdump/pgp"
	"github.com/targodan/go-errors"
)

type decoratedWriteCloser struct {
	writer io.WriteCloser
	base   io.Closer
	meta   map[string]interface{}
}

func (w *decoratedWriteCloser) Write(p []byte) (n int, err error) {
	return w.writer.Write(p)
}

func (w *decoratedWriteCloser) Close() error {
	err := w.writer.Close()
	return errors.NewMultiError(err, w.base.Close())
}

func (w *decoratedWriteCloser) GetMeta(key string) interface{} {
	if w.meta == nil {
		return nil
	}
	return w.meta[key]
}

// FindMeta collects the values of key from w and all writers it wraps,
// starting with w.
func (w *decoratedWriteCloser) FindMeta(key string) []interface{} {
	collected := make([]interface{}, 0)
	if value := w.GetMeta(key); value != nil {
		collected = append(collected, value)
	}
	if underlying, ok := w.base.(*decoratedWriteCloser); ok {
		collected = append(collected, underlying.FindMeta(key)...)
	}
	return collected
}

// OutputDecorator wraps an output, e.g. to compress or encrypt it.
type OutputDecorator func(io.WriteCloser) (io.WriteCloser, error)

// PGPSuffix is the file extension of PGP encrypted output.
const PGPSuffix = ".pgp"

func PGPEncryptionDecorator(opts *pgp.Options) OutputDecorator {
	return func(out io.WriteCloser) (io.WriteCloser, error) {
		enc, err := pgp.NewEncryptor(opts, out)
		if err != nil {
			return nil, err
		}
		return &decoratedWriteCloser{
			writer: enc,
			base:   out,
			meta: map[string]interface{}{
				metaKeySuggestedFileExtension: PGPSuffix,
			},
		}, nil
	}
}

func ZSTDCompressionDecorator() OutputDecorator {
	return func(out io.WriteCloser) (io.WriteCloser, error) {
		return NewZSTDCompressor(out), nil
	}
}

const metaKeySuggestedFileExtension = "SuggestedFileExtension"

// SuggestedFileExtension returns the combined extension of all decorators
// applied to w, e.g. ".zst.pgp".
func SuggestedFileExtension(w io.Writer) string {
	decorated, ok := w.(*decoratedWriteCloser)
	if !ok {
		return ""
	}
	ext := ""
	for _, v := range decorated.FindMeta(metaKeySuggestedFileExtension) {
		ext += v.(string)
	}
	return ext
}

// Decorate applies the decorators to out in the order data passes them,
// i.e. the last one writes to out. Decorate(f, compress, encrypt) stores
// encrypted compressed data in f. If a decorator fails, out is closed.
func Decorate(out io.WriteCloser, decorators ...OutputDecorator) (io.WriteCloser, error) {
	var err error
	for i := len(decorators) - 1; i >= 0; i-- {
		var decorated io.WriteCloser
		decorated, err = decorators[i](out)
		if err != nil {
			return nil, errors.NewMultiError(errors.Errorf("could not decorate output, reason: %w", err), out.Close())
		}
		out = decorated
	}
	return out, nil
}

// CreateFile creates the file at path and applies the decorators. The
// path "-" writes to stdout. The suggested extension of the decorators is
// appended to the file name, omitting leading parts path already ends with. The
// name of the created file is returned.
func CreateFile(path string, decorators ...OutputDecorator) (io.WriteCloser, string, error) {
	if path == "-" {
		out, err := Decorate(stdout{}, decorators...)
		return out, path, err
	}

	path = appendExtension(path, suggestedExtensionOf(decorators))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, path, errors.Errorf("could not create output file, reason: %w", err)
	}
	out, err := Decorate(f, decorators...)
	return out, path, err
}

// stdout is never closed by Close.
type stdout struct{}

func (stdout) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdout) Close() error                { return nil }

// appendExtension appends ext to path. If path already ends with the first
// parts of ext, e.g. ".zst" of ".zst.pgp", only the rest is appended.
func appendExtension(path, ext string) string {
	for i := len(ext); i > 0; i-- {
		if i < len(ext) && ext[i] != '.' {
			continue
		}
		if strings.HasSuffix(path, ext[:i]) {
			return path + ext[i:]
		}
	}
	return path + ext
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
func (discard) Close() error                { return nil }

func suggestedExtensionOf(decorators []OutputDecorator) string {
	out, err := Decorate(discard{}, decorators...)
	if err != nil {
		return ""
	}
	defer out.Close()
	return SuggestedFileExtension(out)
}
