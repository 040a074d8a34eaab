package nexusrpc

import (
	"github.com/klauspost/compress/s2"
	"github.com/pierrec/lz4/v4"
)

// pressor compresses an extra-buffer payload before it is registered
// for RMA (§4.7 step 5 of the spec; see SPEC_FULL.md §11.3), selecting
// among s2/lz4/zstd by the magic7 byte carried in the request header.
type pressor struct {
	zstdC *zstdCompressor

	lz4Buf []byte
	s2Buf  []byte
}

func newPressor(bufSize int) *pressor {
	z, err := newZstdCompressor(bufSize)
	panicOn(err)
	return &pressor{
		zstdC:  z,
		lz4Buf: make([]byte, 0, bufSize),
		s2Buf:  make([]byte, 0, bufSize),
	}
}

func (p *pressor) Close() {
	p.zstdC.Close()
}

// handleCompress compresses msg according to magic7, returning the
// compressed bytes (or msg itself, uncopied, for magic7b_none /
// magic7b_no_system_compression).
func (p *pressor) handleCompress(magic7 magic7b, msg []byte) ([]byte, error) {
	switch magic7 {
	case magic7b_none, magic7b_no_system_compression:
		return msg, nil
	case magic7b_s2:
		p.s2Buf = s2.Encode(p.s2Buf[:0], msg)
		out := make([]byte, len(p.s2Buf))
		copy(out, p.s2Buf)
		return out, nil
	case magic7b_lz4:
		p.lz4Buf = growTo(p.lz4Buf, lz4.CompressBlockBound(len(msg)))
		var c lz4.Compressor
		n, err := c.CompressBlock(msg, p.lz4Buf)
		if err != nil {
			return nil, newErr(Fail, "handleCompress", "lz4: %v", err)
		}
		if n == 0 {
			// incompressible; lz4 signals this by writing nothing.
			return msg, nil
		}
		out := make([]byte, n)
		copy(out, p.lz4Buf[:n])
		return out, nil
	case magic7b_zstd01, magic7b_zstd03, magic7b_zstd07, magic7b_zstd11:
		return p.zstdC.Compress(msg), nil
	}
	return nil, newErr(InvalidParam, "handleCompress", "unrecognized magic7: %v", magic7)
}

func growTo(buf []byte, n int) []byte {
	if cap(buf) < n {
		return make([]byte, n)
	}
	return buf[:n]
}

// decomp is the handleCompress inverse, grounded on the same magic7
// selector.
type decomp struct {
	zstdD *zstdCompressor

	lz4Buf []byte
}

func newDecomp(bufSize int) *decomp {
	z, err := newZstdCompressor(bufSize)
	panicOn(err)
	return &decomp{
		zstdD:  z,
		lz4Buf: make([]byte, bufSize),
	}
}

func (d *decomp) Close() {
	d.zstdD.Close()
}

func (d *decomp) handleDecompress(magic7 magic7b, msg []byte) ([]byte, error) {
	switch magic7 {
	case magic7b_none, magic7b_no_system_compression:
		return msg, nil
	case magic7b_s2:
		out, err := s2.Decode(nil, msg)
		if err != nil {
			return nil, newErr(Fail, "handleDecompress", "s2: %v", err)
		}
		return out, nil
	case magic7b_lz4:
		for {
			n, err := lz4.UncompressBlock(msg, d.lz4Buf)
			if err == nil {
				out := make([]byte, n)
				copy(out, d.lz4Buf[:n])
				return out, nil
			}
			if err == lz4.ErrInvalidSourceShortBuffer {
				d.lz4Buf = make([]byte, len(d.lz4Buf)*2)
				continue
			}
			return nil, newErr(Fail, "handleDecompress", "lz4: %v", err)
		}
	case magic7b_zstd01, magic7b_zstd03, magic7b_zstd07, magic7b_zstd11:
		out, err := d.zstdD.Decompress(msg)
		if err != nil {
			return nil, newErr(Fail, "handleDecompress", "zstd: %v", err)
		}
		return out, nil
	}
	return nil, newErr(InvalidParam, "handleDecompress", "unrecognized magic7: %v", magic7)
}
