package nexusrpc

import (
	"hash/crc32"
	"time"
)

// Forward implements forward(addr, id, in_value, out_value) -> request
// (§4.7), the RPC forwarding engine's entry point.
func (rt *Runtime) Forward(addr *Addr, id uint32, in any, out any) (*Request, error) {
	if addr == nil {
		return nil, newErr(InvalidParam, "Forward", "nil addr")
	}
	entry, found := rt.ep.reg.lookup(id)
	if !found {
		return nil, newErr(NoMatch, "Forward", "no function registered under id %d", id)
	}

	req := newRequest(NewCallID(entry.name), id, out)
	req.sendBuf = make([]byte, rt.cfg.MaxUnexpectedSize)
	req.recvBuf = make([]byte, rt.cfg.MaxExpectedSize)

	hdr := RequestHeader{Magic: protoMagic, Version: uint32(VersionMajor), CallID: id}

	headerSize := hdr.Msgsize()
	if headerSize > len(req.sendBuf) {
		return nil, newErr(SizeError, "Forward", "header (%d bytes) does not fit in send buffer (%d bytes)", headerSize, len(req.sendBuf))
	}
	payloadCap := req.sendBuf[headerSize:]

	n, overflow, err := entry.encode(payloadCap, in)
	if err != nil {
		return nil, newErr(Fail, "Forward", "encode: %v", err)
	}

	if overflow != nil {
		// encoded_size > send_buf_capacity - header_size (§4.7 step 5):
		// take ownership of the overflow buffer, optionally compress it,
		// and register it read-only for RMA.
		req.extraBuf = overflow
		if rt.cfg.Compression != CompressNone {
			compressed, cerr := rt.pressor.handleCompress(rt.cfg.Compression.magic7(), req.extraBuf)
			if cerr != nil {
				return nil, newErr(Fail, "Forward", "compress extra buffer: %v", cerr)
			}
			req.extraBuf = compressed
			hdr.Magic7 = byte(rt.cfg.Compression.magic7())
		}
		h := rt.ep.rma.create(req.extraBuf, HandleReadOnly)
		if err := rt.ep.rma.register(h, rt.ep.transport); err != nil {
			return nil, newErr(Fail, "Forward", "register extra buffer: %v", err)
		}
		req.extraHandle = h
		hdr.Flags |= reqFlagHasExtra
		hdr.Extra = rt.ep.rma.serialize(h)
		n = 0
	}

	hb, err := hdr.MarshalMsg(req.sendBuf[:0])
	if err != nil {
		return nil, newErr(Fail, "Forward", "marshal header: %v", err)
	}
	actualHeaderSize := len(hb)
	if actualHeaderSize != headerSize {
		// Msgsize is an upper bound and msgp's integer encodings are
		// variable-width, so the header usually encodes shorter than
		// estimated: shift the already-encoded payload to sit right
		// after it.
		copy(req.sendBuf[actualHeaderSize:actualHeaderSize+n], req.sendBuf[headerSize:headerSize+n])
		headerSize = actualHeaderSize
	}
	sendPayload := req.sendBuf[:headerSize+n]

	vv("forward %s (call_id=%s): request header %s", entry.name, req.CallID, hdr.Pretty())

	tag := rt.ep.tags.next()

	rt.ep.postRecvExpected(addr, tag, req.recvBuf, func(op *Operation) {
		rt.recvDone(req, op)
	})

	sendHeader := newFrameHeader(false, tag)
	_, err = rt.ep.postSend(addr, sendHeader, sendPayload, func(op *Operation) {
		rt.sendDone(req, op)
	})
	if err != nil {
		return nil, newErr(Fail, "Forward", "postSend: %v", err)
	}

	return req, nil
}

// sendDone frees sendBuf (not the extra buffer) and completes the
// request's send-sub-handle (§4.7).
func (rt *Runtime) sendDone(req *Request, op *Operation) {
	req.sendErr = op.Err
	req.sendBuf = nil
	req.sendSub.Close()
}

// recvDone frees the extra buffer and its RMA handle (safe now that
// the callee no longer references them), decodes and verifies the
// response header, decodes the output value, and completes the
// request's recv-sub-handle (§4.7).
func (rt *Runtime) recvDone(req *Request, op *Operation) {
	if req.extraHandle != nil {
		_ = rt.ep.rma.deregister(req.extraHandle, rt.ep.transport)
		req.extraHandle = nil
		req.extraBuf = nil
	}

	if op.Err != nil {
		req.recvErr = op.Err
		req.recvSub.Close()
		return
	}

	var respHdr ResponseHeader
	rest, err := respHdr.UnmarshalMsg(op.Buf[:op.ActualSize])
	if err != nil {
		req.recvErr = newErr(ProtocolError, "recvDone", "unmarshal response header: %v", err)
		req.recvSub.Close()
		return
	}

	if respHdr.Magic != protoMagic {
		req.recvErr = newErr(ProtocolError, "recvDone", "bad magic in response header")
		req.recvSub.Close()
		return
	}
	want, err := responseChecksum(respHdr)
	if err != nil || want != respHdr.Checksum {
		req.recvErr = newErr(ChecksumError, "recvDone", "response header checksum mismatch")
		req.recvSub.Close()
		return
	}
	if ErrorCode(respHdr.Status) != Success {
		req.recvErr = newErr(ErrorCode(respHdr.Status), "recvDone", "remote reported failure")
		req.recvSub.Close()
		return
	}

	vv("recvDone (call_id=%s): response header %s", req.CallID, respHdr.Pretty())

	payload, err := rt.decomp.handleDecompress(magic7b(respHdr.Magic7), rest)
	if err != nil {
		req.recvErr = newErr(Fail, "recvDone", "decompress response body: %v", err)
		req.recvSub.Close()
		return
	}

	entry, found := rt.ep.reg.lookup(req.FnID)
	if !found {
		req.recvErr = newErr(NoMatch, "recvDone", "function id %d no longer registered", req.FnID)
		req.recvSub.Close()
		return
	}
	if err := entry.decode(DecodeModeDecode, payload, req.out); err != nil {
		req.recvErr = newErr(Fail, "recvDone", "decode: %v", err)
		req.recvSub.Close()
		return
	}

	req.recvBuf = nil
	req.recvSub.Close()
}

// responseChecksum computes the CRC32 a ResponseHeader's Checksum
// field should carry: marshal the header with Checksum zeroed, then
// hash those bytes (§12 of SPEC_FULL.md). Used both to verify an
// arrived header and, by a simulated server, to stamp one before
// sending.
func responseChecksum(hdr ResponseHeader) (uint32, error) {
	hdr.Checksum = 0
	b, err := hdr.MarshalMsg(nil)
	if err != nil {
		return 0, err
	}
	return crc32.ChecksumIEEE(b), nil
}

// Wait implements wait(request, timeout) -> status (§4.7).
func (rt *Runtime) Wait(req *Request, timeout time.Duration) error {
	return req.wait(timeout, rt.cfg.WaitPollInterval)
}

// WaitAll implements wait_all(reqs, timeout) -> statuses (§4.7),
// applying the same deadline to each request in soonest-scheduled
// order via the waitItem priority queue (§11.6 of SPEC_FULL.md).
func (rt *Runtime) WaitAll(reqs []*Request, timeout time.Duration) []error {
	deadline := time.Now().Add(timeout)
	q := rt.waitQ
	for _, r := range reqs {
		q.add(&waitItem{when: deadline, req: r})
	}

	statuses := make([]error, len(reqs))
	idx := make(map[*Request]int, len(reqs))
	for i, r := range reqs {
		idx[r] = i
	}

	for q.size() > 0 {
		item := q.pop()
		w := item.value
		remaining := time.Until(w.when)
		if remaining < 0 {
			remaining = 0
		}
		err := w.req.wait(remaining, rt.cfg.WaitPollInterval)
		statuses[idx[w.req]] = err
	}
	return statuses
}

// RequestFree implements request_free(request) (§4.7). Forbidden
// while any sub-handle is still outstanding; invokes the decoder in
// release mode so the codec can free dynamically allocated output
// members.
func (rt *Runtime) RequestFree(req *Request) error {
	if !req.complete() {
		return newErr(ProtocolError, "RequestFree", "request still has outstanding sub-handles")
	}
	if entry, found := rt.ep.reg.lookup(req.FnID); found {
		_ = entry.decode(DecodeModeRelease, nil, req.out)
	}
	return nil
}
