package nexusrpc

import (
	"github.com/klauspost/compress/zstd"
)

// zstdCompressor wraps a zstd encoder/decoder pair for the forwarding
// engine's extra-buffer compression path (§11.3 of SPEC_FULL.md);
// working buffers are pre-sized to bufSize (the caller's configured
// Max{Unexpected,Expected}Size) so the common case needs no growth.
type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder

	decompWorkingBuf   []byte
	compressWorkingBuf []byte
}

func newZstdCompressor(bufSize int) (*zstdCompressor, error) {
	// []byte-only mode (no Reset(io.Writer)); encoder/decoder each
	// default to using GOMAXPROCS goroutines.
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	return &zstdCompressor{
		enc:                enc,
		dec:                dec,
		decompWorkingBuf:   make([]byte, bufSize),
		compressWorkingBuf: make([]byte, bufSize),
	}, nil
}

// Close releases held resources.
func (c *zstdCompressor) Close() {
	c.enc.Close()
	c.dec.Close()
}

// Decompress decodes into decompWorkingBuf's storage when the output
// fits, so the result is only valid until the next Decompress call;
// larger output goes to a new allocation and decompWorkingBuf keeps
// its initial size.
func (c *zstdCompressor) Decompress(src []byte) ([]byte, error) {
	return c.dec.DecodeAll(src, c.decompWorkingBuf[:0])
}

// Compress encodes into compressWorkingBuf's storage when the output
// fits, so the result is only valid until the next Compress call;
// larger output goes to a new allocation and compressWorkingBuf keeps
// its initial size.
func (c *zstdCompressor) Compress(src []byte) []byte {
	return c.enc.EncodeAll(src, c.compressWorkingBuf[:0])
}
