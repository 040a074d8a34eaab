package nexusrpc

import (
	"bytes"
	"testing"
)

func TestCompressPressorDecompInverses(t *testing.T) {
	p := newPressor(1000)
	defer p.Close()
	d := newDecomp(1000)
	defer d.Close()

	orig := append([]byte("hello nexusrpc world!"), make([]byte, 300)...)

	for _, magic7 := range []magic7b{
		magic7b_none,
		magic7b_s2,
		magic7b_lz4,
		magic7b_zstd01,
		magic7b_zstd03,
		magic7b_zstd07,
		magic7b_zstd11,
	} {
		name := magic7.String()
		bytesMsg := append([]byte{}, orig...)

		msg1, err := p.handleCompress(magic7, bytesMsg)
		if err != nil {
			t.Fatalf("%v: handleCompress: %v", name, err)
		}
		vv("%v compressed from %v -> %v bytes", name, len(orig), len(msg1))

		msg2, err := d.handleDecompress(magic7, msg1)
		if err != nil {
			t.Fatalf("%v: handleDecompress: %v", name, err)
		}
		if !bytes.Equal(msg2, orig) {
			t.Fatalf("%v: compress/decompress round trip mismatch", name)
		}
	}
}

func TestCompressNoSystemCompressionPassesThrough(t *testing.T) {
	p := newPressor(100)
	defer p.Close()
	d := newDecomp(100)
	defer d.Close()

	orig := []byte("passthrough")
	msg1, err := p.handleCompress(magic7b_no_system_compression, orig)
	if err != nil {
		t.Fatalf("handleCompress: %v", err)
	}
	msg2, err := d.handleDecompress(magic7b_no_system_compression, msg1)
	if err != nil {
		t.Fatalf("handleDecompress: %v", err)
	}
	if !bytes.Equal(msg2, orig) {
		t.Fatalf("expected passthrough round trip, got %q want %q", msg2, orig)
	}
}
