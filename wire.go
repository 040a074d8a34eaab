package nexusrpc

//go:generate greenpack

import "encoding/binary"

// frameHeader is the 4-byte on-the-wire word preceding every payload
// (§6): bit 0 is the expect flag, bits 1..31 are the tag.
type frameHeader uint32

func newFrameHeader(expect bool, tag uint32) frameHeader {
	var w uint32
	if expect {
		w |= 1
	}
	w |= tag << 1
	return frameHeader(w)
}

func (h frameHeader) expect() bool { return h&1 == 1 }
func (h frameHeader) tag() uint32  { return uint32(h) >> 1 }

func (h frameHeader) encode(buf []byte) {
	binary.BigEndian.PutUint32(buf, uint32(h))
}

func decodeFrameHeader(buf []byte) frameHeader {
	return frameHeader(binary.BigEndian.Uint32(buf))
}

const frameHeaderSize = 4

// protoMagic identifies this wire protocol version, guarding against
// talking to an incompatible peer (§6, §7 ProtocolError).
const protoMagic uint32 = 0x4e525043 // "NRPC"

// RequestHeader is written after the frame header and before the
// user-encoded input (§6). zid tags follow the teacher's greenpack
// struct-tag convention.
type RequestHeader struct {
	Magic   uint32        `zid:"0"`
	Version uint32        `zid:"1"`
	CallID  uint32        `zid:"2"` // function registry id, not the trace call id
	Flags   uint8         `zid:"3"`
	Magic7  byte          `zid:"4"` // compression selector, see magic7.go
	Extra   HandleWireRep `zid:"5"` // sentinel Base==0,Size==0 when absent
}

const (
	reqFlagHasExtra uint8 = 1 << 0
)

func (h *RequestHeader) hasExtra() bool {
	return h.Flags&reqFlagHasExtra != 0
}

// ResponseHeader is the fixed layout preceding the user-encoded
// output (§6): same shape minus the RMA handle, plus a status and
// checksum for verification.
type ResponseHeader struct {
	Magic    uint32 `zid:"0"`
	Version  uint32 `zid:"1"`
	Status   uint8  `zid:"2"` // ErrorCode of the remote-side outcome
	Magic7   byte   `zid:"3"`
	Checksum uint32 `zid:"4"` // CRC32 over the rest of this header, Checksum field zeroed
}

