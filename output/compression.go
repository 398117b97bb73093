package output

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"
)

// ZSTDSuffix is the file extension of zstd compressed output.
const ZSTDSuffix = ".zst"

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

func NewZSTDCompressor(out io.WriteCloser) io.WriteCloser {
	zstdWriter, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		// Only fails for invalid options.
		panic(err)
	}
	return &decoratedWriteCloser{
		writer: zstdWriter,
		base:   out,
		meta: map[string]interface{}{
			metaKeySuggestedFileExtension: ZSTDSuffix,
		},
	}
}

// IsZSTDCompressed reports whether data starts with the zstd frame magic.
func IsZSTDCompressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// DecompressZSTD decompresses a complete zstd stream.
func DecompressZSTD(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
