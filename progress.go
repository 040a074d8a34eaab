package nexusrpc

import "time"

// Endpoint is the NAL proper (§1, §4): it owns the address book, the
// two unexpected-message FIFOs, the RMA handle manager, the function
// registry, and the tag generator, and drives the event progress
// engine (§4.3) against a Transport.
type Endpoint struct {
	transport Transport
	book      *addrBook
	uq        *unexpectedQueues
	rma       *rmaManager
	reg       *registry
	tags      *tagGen
	self      *Addr

	pendingByOpID *opIDMap
}

func newEndpoint(t Transport, cfg Config) *Endpoint {
	self := t.AddrSelf()
	self.self = true
	self.refcount = 1

	book := newAddrBook()
	book.byID.set(self.uri, self)

	return &Endpoint{
		transport:     t,
		book:          book,
		uq:            newUnexpectedQueues(),
		rma:           newRMAManager(),
		reg:           newRegistry(),
		tags:          newTagGen(t.MaxTag(), cfg.MaxTagBits),
		self:          self,
		pendingByOpID: newOpIDMap(),
	}
}

// progress drains the transport's event source until either one event
// is successfully processed, or timeout elapses (§4.3). Every
// dequeued event is implicitly "returned to the transport" once this
// function returns, since our Transport.Progress already hands
// ownership of the Event value to the caller rather than requiring a
// separate release call.
func (e *Endpoint) progress(timeout time.Duration) error {
	ev, err := e.transport.Progress(timeout)
	if err != nil {
		if code := CodeOf(err); code == Timeout {
			return newErr(Timeout, "progress", "no event within %v", timeout)
		}
		return newErr(ProtocolError, "progress", "transport: %v", err)
	}
	e.dispatch(ev)
	return nil
}

func (e *Endpoint) dispatch(ev Event) {
	switch ev.Kind {
	case EventSend, EventPut, EventGet:
		op, found := e.pendingByOpID.getAndDelete(ev.OpID)
		if found {
			op.complete(len(op.Buf), ev.Err)
		}
	case EventRecv:
		e.dispatchRecv(ev)
	case EventConnectRequest, EventConnect, EventAccept:
		// reserved for connection-oriented transports; nothing to do
		// at the NAL layer besides letting the event drain (§4.3).
	}
}

func (e *Endpoint) dispatchRecv(ev Event) {
	tag := ev.Header.tag()
	if ev.Header.expect() {
		op, actual, matched := ev.Peer.deliverExpected(tag, ev.Payload)
		if matched {
			op.complete(actual, nil)
		}
		return
	}
	op, actual, matched := e.uq.deliver(ev.Peer, tag, ev.Payload)
	if matched {
		op.Peer = ev.Peer
		op.complete(actual, nil)
	}
}

// postRecvExpected posts a recv-expected operation against peer for
// tag, completing synchronously if a matching early arrival is
// already cached (§4.1, §9 "immediate-completion short-circuit").
func (e *Endpoint) postRecvExpected(peer *Addr, tag uint32, buf []byte, cb func(*Operation)) *Operation {
	op := &Operation{Kind: OpRecvExpected, Peer: peer, Tag: tag, Buf: buf, Callback: cb}
	actual, matched := peer.postRecvExpected(tag, buf, op)
	if matched {
		op.complete(actual, nil)
	}
	return op
}

// postRecvUnexpected posts a recv-unexpected operation, completing
// synchronously if a message is already queued (§4.2).
func (e *Endpoint) postRecvUnexpected(buf []byte, cb func(*Operation)) *Operation {
	op := &Operation{Kind: OpRecvUnexpected, Buf: buf, Callback: cb}
	peer, actual, matched := e.uq.postRecv(buf, op)
	if matched {
		op.Peer = peer
		op.complete(actual, nil)
	}
	return op
}

// postSend posts a send (expected or unexpected depending on
// header.expect()) and registers the resulting operation so a future
// EventSend completes it. When peer is this endpoint's own address
// (e.self), it loopback-delivers straight into dispatchRecv instead,
// skipping the transport entirely (§12 of SPEC_FULL.md, grounded in
// na_cci_addr_self's self-address short circuit).
func (e *Endpoint) postSend(peer *Addr, header frameHeader, payload []byte, cb func(*Operation)) (*Operation, error) {
	op := &Operation{Kind: OpSendUnexpected, Peer: peer, Tag: header.tag(), Buf: payload, Callback: cb}
	if header.expect() {
		op.Kind = OpSendExpected
	}

	if peer == e.self {
		cp := make([]byte, len(payload))
		copy(cp, payload)
		e.dispatchRecv(Event{Kind: EventRecv, Peer: peer, Header: header, Payload: cp})
		op.complete(len(payload), nil)
		return op, nil
	}

	opID, err := e.transport.Send(peer, header, payload)
	if err != nil {
		return nil, newErr(Fail, "postSend", "transport Send: %v", err)
	}
	e.pendingByOpID.set(opID, op)
	return op, nil
}

// postPut posts a one-sided put of localBuf into the region described
// by remote, first rejecting the post if remote lacks write
// permission (§4.6: "put requires the remote handle to have been
// registered with write permission").
func (e *Endpoint) postPut(peer *Addr, localBuf []byte, remote HandleWireRep, cb func(*Operation)) (*Operation, error) {
	if err := requirePut(e.rma.deserialize(remote)); err != nil {
		return nil, err
	}
	op := &Operation{Kind: OpPut, Peer: peer, Buf: localBuf, Callback: cb}
	opID, err := e.transport.Put(peer, localBuf, remote)
	if err != nil {
		return nil, newErr(Fail, "postPut", "transport Put: %v", err)
	}
	e.pendingByOpID.set(opID, op)
	return op, nil
}

// postGet posts a one-sided get of the region described by remote into
// localBuf, first rejecting the post if remote lacks read permission
// (§4.6).
func (e *Endpoint) postGet(peer *Addr, localBuf []byte, remote HandleWireRep, cb func(*Operation)) (*Operation, error) {
	if err := requireGet(e.rma.deserialize(remote)); err != nil {
		return nil, err
	}
	op := &Operation{Kind: OpGet, Peer: peer, Buf: localBuf, Callback: cb}
	opID, err := e.transport.Get(peer, localBuf, remote)
	if err != nil {
		return nil, newErr(Fail, "postGet", "transport Get: %v", err)
	}
	e.pendingByOpID.set(opID, op)
	return op, nil
}

// finalize tears down the endpoint. Returns ProtocolError if the
// unexpected-op queue is non-empty (§8 S6) rather than freeing queue
// storage out from under pending posts.
func (e *Endpoint) finalize() error {
	if !e.uq.opQueueEmpty() {
		return newErr(ProtocolError, "finalize", "unexpected_op_queue non-empty")
	}
	return nil
}
