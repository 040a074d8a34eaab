package nexusrpc

import "github.com/glycerine/greenpack/msgp"

var nbs *msgp.NilBitsStack

// MarshalMsg/UnmarshalMsg/Msgsize below follow the shape greenpack's
// code generator produces for zid-tagged structs (array-encoded,
// positional by zid order) — see hdr.go in the teacher repo for the
// same convention applied to its own wire types.

func (z *HandleWireRep) Msgsize() int {
	return 5 + msgp.Uint64Size*2 + msgp.Uint8Size + msgp.BytesPrefixSize + len(z.Descriptor)
}

func (z *HandleWireRep) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendArrayHeader(o, 4)
	o = msgp.AppendUint64(o, z.Base)
	o = msgp.AppendUint64(o, z.Size)
	o = msgp.AppendUint8(o, uint8(z.Flags))
	o = msgp.AppendBytes(o, z.Descriptor[:])
	return o, nil
}

func (z *HandleWireRep) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var sz uint32
	sz, bts, err = nbs.ReadArrayHeaderBytes(bts)
	if err != nil {
		return nil, newErr(ProtocolError, "HandleWireRep.UnmarshalMsg", "array header: %v", err)
	}
	if sz != 4 {
		return nil, newErr(ProtocolError, "HandleWireRep.UnmarshalMsg", "expected 4 fields, got %d", sz)
	}
	z.Base, bts, err = nbs.ReadUint64Bytes(bts)
	if err != nil {
		return nil, newErr(ProtocolError, "HandleWireRep.UnmarshalMsg", "Base: %v", err)
	}
	z.Size, bts, err = nbs.ReadUint64Bytes(bts)
	if err != nil {
		return nil, newErr(ProtocolError, "HandleWireRep.UnmarshalMsg", "Size: %v", err)
	}
	var flags uint8
	flags, bts, err = nbs.ReadUint8Bytes(bts)
	if err != nil {
		return nil, newErr(ProtocolError, "HandleWireRep.UnmarshalMsg", "Flags: %v", err)
	}
	z.Flags = HandleFlags(flags)
	var desc []byte
	desc, bts, err = nbs.ReadBytesBytes(bts, nil)
	if err != nil {
		return nil, newErr(ProtocolError, "HandleWireRep.UnmarshalMsg", "Descriptor: %v", err)
	}
	copy(z.Descriptor[:], desc)
	return bts, nil
}

func (z *RequestHeader) Msgsize() int {
	return 6 + msgp.Uint32Size*3 + msgp.Uint8Size*2 + z.Extra.Msgsize()
}

func (z *RequestHeader) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendArrayHeader(o, 6)
	o = msgp.AppendUint32(o, z.Magic)
	o = msgp.AppendUint32(o, z.Version)
	o = msgp.AppendUint32(o, z.CallID)
	o = msgp.AppendUint8(o, z.Flags)
	o = msgp.AppendUint8(o, z.Magic7)
	o, err = z.Extra.MarshalMsg(o)
	if err != nil {
		return nil, newErr(Fail, "RequestHeader.MarshalMsg", "Extra: %v", err)
	}
	return o, nil
}

func (z *RequestHeader) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var sz uint32
	sz, bts, err = nbs.ReadArrayHeaderBytes(bts)
	if err != nil {
		return nil, newErr(ProtocolError, "RequestHeader.UnmarshalMsg", "array header: %v", err)
	}
	if sz != 6 {
		return nil, newErr(ProtocolError, "RequestHeader.UnmarshalMsg", "expected 6 fields, got %d", sz)
	}
	z.Magic, bts, err = nbs.ReadUint32Bytes(bts)
	if err != nil {
		return nil, err
	}
	z.Version, bts, err = nbs.ReadUint32Bytes(bts)
	if err != nil {
		return nil, err
	}
	z.CallID, bts, err = nbs.ReadUint32Bytes(bts)
	if err != nil {
		return nil, err
	}
	z.Flags, bts, err = nbs.ReadUint8Bytes(bts)
	if err != nil {
		return nil, err
	}
	z.Magic7, bts, err = nbs.ReadUint8Bytes(bts)
	if err != nil {
		return nil, err
	}
	bts, err = z.Extra.UnmarshalMsg(bts)
	if err != nil {
		return nil, newErr(ProtocolError, "RequestHeader.UnmarshalMsg", "Extra: %v", err)
	}
	return bts, nil
}

func (z *ResponseHeader) Msgsize() int {
	return 5 + msgp.Uint32Size*2 + msgp.Uint8Size*2 + msgp.Uint32Size
}

func (z *ResponseHeader) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendArrayHeader(o, 5)
	o = msgp.AppendUint32(o, z.Magic)
	o = msgp.AppendUint32(o, z.Version)
	o = msgp.AppendUint8(o, z.Status)
	o = msgp.AppendUint8(o, z.Magic7)
	o = msgp.AppendUint32(o, z.Checksum)
	return o, nil
}

func (z *ResponseHeader) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var sz uint32
	sz, bts, err = nbs.ReadArrayHeaderBytes(bts)
	if err != nil {
		return nil, newErr(ProtocolError, "ResponseHeader.UnmarshalMsg", "array header: %v", err)
	}
	if sz != 5 {
		return nil, newErr(ProtocolError, "ResponseHeader.UnmarshalMsg", "expected 5 fields, got %d", sz)
	}
	z.Magic, bts, err = nbs.ReadUint32Bytes(bts)
	if err != nil {
		return nil, err
	}
	z.Version, bts, err = nbs.ReadUint32Bytes(bts)
	if err != nil {
		return nil, err
	}
	z.Status, bts, err = nbs.ReadUint8Bytes(bts)
	if err != nil {
		return nil, err
	}
	z.Magic7, bts, err = nbs.ReadUint8Bytes(bts)
	if err != nil {
		return nil, err
	}
	z.Checksum, bts, err = nbs.ReadUint32Bytes(bts)
	if err != nil {
		return nil, err
	}
	return bts, nil
}
