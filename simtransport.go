package nexusrpc

import (
	"sync"
	"sync/atomic"
	"time"
)

// simNetwork is the shared in-process hub joining a set of
// simTransport endpoints, standing in for a hardware interconnect
// (§11.1 of SPEC_FULL.md). Grounded on the teacher's in-memory
// network simulation idiom and on
// other_examples/rocketbitz-libfabric-go__client.go's completion-event
// shape.
type simNetwork struct {
	mu       sync.Mutex
	byURI    map[string]*simTransport
	nextOpID uint64
	nextDesc uint64

	memMu sync.Mutex
	mem   map[[16]byte][]byte
}

func newSimNetwork() *simNetwork {
	return &simNetwork{
		byURI: make(map[string]*simTransport),
		mem:   make(map[[16]byte][]byte),
	}
}

func (n *simNetwork) register(t *simTransport) {
	n.mu.Lock()
	n.byURI[t.uri] = t
	n.mu.Unlock()
}

func (n *simNetwork) allocOpID() uint64 {
	return atomic.AddUint64(&n.nextOpID, 1)
}

func (n *simNetwork) allocDescriptor() [16]byte {
	id := atomic.AddUint64(&n.nextDesc, 1)
	var d [16]byte
	d[0] = byte(id)
	d[1] = byte(id >> 8)
	d[2] = byte(id >> 16)
	d[3] = byte(id >> 24)
	d[4] = byte(id >> 32)
	return d
}

// simTransport is the in-process reference Transport implementation
// (§11.1 of SPEC_FULL.md), used by the tests in place of a real
// interconnect.
type simTransport struct {
	net *simNetwork
	uri string
	max uint32

	selfAddr *Addr

	inbox chan Event
}

func newSimTransport(net *simNetwork, uri string, maxTag uint32) *simTransport {
	t := &simTransport{
		net:   net,
		uri:   uri,
		max:   maxTag,
		inbox: make(chan Event, 256),
	}
	t.selfAddr = &Addr{uri: uri, conn: t, self: true}
	net.register(t)
	return t
}

func (t *simTransport) peerOf(addr *Addr) *simTransport {
	if addr == nil {
		return nil
	}
	if st, ok := addr.conn.(*simTransport); ok {
		return st
	}
	t.net.mu.Lock()
	defer t.net.mu.Unlock()
	return t.net.byURI[addr.uri]
}

func (t *simTransport) Send(addr *Addr, header frameHeader, payload []byte) (uint64, error) {
	dst := t.peerOf(addr)
	if dst == nil {
		return 0, newErr(Fail, "simTransport.Send", "unknown peer %v", addr)
	}
	opID := t.net.allocOpID()

	cp := make([]byte, len(payload))
	copy(cp, payload)
	dst.inbox <- Event{Kind: EventRecv, Peer: t.selfAddr, Header: header, Payload: cp}

	t.inbox <- Event{Kind: EventSend, OpID: opID}
	return opID, nil
}

func (t *simTransport) RegisterMemory(buf []byte, writable bool) ([16]byte, error) {
	desc := t.net.allocDescriptor()
	t.net.memMu.Lock()
	t.net.mem[desc] = buf
	t.net.memMu.Unlock()
	return desc, nil
}

func (t *simTransport) DeregisterMemory(descriptor [16]byte) error {
	t.net.memMu.Lock()
	delete(t.net.mem, descriptor)
	t.net.memMu.Unlock()
	return nil
}

func (t *simTransport) Put(addr *Addr, localBuf []byte, remote HandleWireRep) (uint64, error) {
	t.net.memMu.Lock()
	dst, ok := t.net.mem[remote.Descriptor]
	t.net.memMu.Unlock()
	if !ok {
		return 0, newErr(Fail, "simTransport.Put", "remote handle not registered")
	}
	n := copy(dst, localBuf)
	_ = n
	opID := t.net.allocOpID()
	t.inbox <- Event{Kind: EventPut, OpID: opID}
	return opID, nil
}

func (t *simTransport) Get(addr *Addr, localBuf []byte, remote HandleWireRep) (uint64, error) {
	t.net.memMu.Lock()
	src, ok := t.net.mem[remote.Descriptor]
	t.net.memMu.Unlock()
	if !ok {
		return 0, newErr(Fail, "simTransport.Get", "remote handle not registered")
	}
	copy(localBuf, src)
	opID := t.net.allocOpID()
	t.inbox <- Event{Kind: EventGet, OpID: opID}
	return opID, nil
}

// AddrLookup resolves uri to the peer's own persistent self-address
// rather than minting a new Addr value: every EventRecv a peer's Send
// produces carries that same *Addr as Peer (see Send above), and
// per-peer matching state (Addr.rxs/early) only works if posts and
// arrivals agree on object identity.
func (t *simTransport) AddrLookup(uri string, cb func(*Addr, error)) {
	t.net.mu.Lock()
	peer, ok := t.net.byURI[uri]
	t.net.mu.Unlock()
	if !ok {
		cb(nil, newErr(Fail, "simTransport.AddrLookup", "no such peer %q", uri))
		return
	}
	peer.selfAddr.Retain()
	cb(peer.selfAddr, nil)
}

func (t *simTransport) AddrSelf() *Addr {
	return t.selfAddr
}

func (t *simTransport) Progress(timeout time.Duration) (Event, error) {
	select {
	case ev := <-t.inbox:
		return ev, nil
	case <-time.After(timeout):
		return Event{}, newErr(Timeout, "simTransport.Progress", "no event within %v", timeout)
	}
}

func (t *simTransport) MaxTag() uint32 {
	return t.max
}
