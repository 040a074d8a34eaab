package nexusrpc

import (
	"fmt"
)

// magic7b is the request/response header's compression selector byte
// (RequestHeader.Magic7 / ResponseHeader.Magic7, §6, §11.3 of
// SPEC_FULL.md): none/s2/lz4/zstd-1/zstd-3/zstd-7/zstd-11, plus a
// distinguished "no system compression" value the forwarding engine
// never has to generate but must still round-trip from a peer that
// sets it (kept separate from magic7b_none so the choice not to
// compress for this one message isn't cached as the stream-wide
// default).
type magic7b byte

const (
	magic7b_none   magic7b = 0 // no compression
	magic7b_s2     magic7b = 1
	magic7b_lz4    magic7b = 2
	magic7b_zstd01 magic7b = 3
	magic7b_zstd03 magic7b = 4
	magic7b_zstd07 magic7b = 5
	magic7b_zstd11 magic7b = 6

	magic7b_no_system_compression magic7b = 7
)

func (m magic7b) String() (s string) {
	s, _ = decodeMagic7(m)
	return
}

func decodeMagic7(magic7 magic7b) (magicCompressAlgo string, err error) {
	switch magic7 {
	// magic[7] (the last byte 0x00 here) can vary,
	// it indicates the compression in use:
	case magic7b_none:
		// no compression
		return "", nil
	case magic7b_s2:
		return "s2", nil
	case magic7b_lz4:
		return "lz4", nil
	case magic7b_zstd01:
		return "zstd:01", nil
	case magic7b_zstd03:
		return "zstd:03", nil
	case magic7b_zstd07:
		return "zstd:07", nil
	case magic7b_zstd11:
		return "zstd:11", nil
	case magic7b_no_system_compression:
		// separate from 0 so we can not cache it and not have the server match it.
		return "no-system-compression", nil // per Message flag in HDR.
	}
	return "", fmt.Errorf("unrecognized magic7: '%v' ; valid choices: s2, lz4, zstd:01, zstd:03, zstd:07, zstd:11", magic7)
}
