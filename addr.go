package nexusrpc

import "sync"

// earlyEntry is a cached expected-message arrival that had no posted
// receive yet when it arrived (§3 Peer Address, §4.1).
type earlyEntry struct {
	tag     uint32
	payload []byte
}

// rxsEntry is a posted expected-receive awaiting a matching arrival
// (§4.1).
type rxsEntry struct {
	tag uint32
	buf []byte
	op  *Operation
}

// Addr is a peer address (§3 Peer Address). Its connection identity is
// opaque to the RPC engine; the NAL only ever threads it back through
// Transport calls. Per-peer posted-receive matching state lives here
// because matching is scoped per peer (§4.1).
type Addr struct {
	mu sync.Mutex

	uri      string
	conn     any // transport-opaque connection identity
	self     bool
	refcount int
	rxs      []*rxsEntry
	early    []*earlyEntry
}

func (a *Addr) id() string { return a.uri }

func (a *Addr) URI() string  { return a.uri }
func (a *Addr) IsSelf() bool { return a.self }

// Retain increments the address's reference count (§12 of
// SPEC_FULL.md, grounded on na_cci_addr_dup).
func (a *Addr) Retain() {
	a.mu.Lock()
	a.refcount++
	a.mu.Unlock()
}

// Release decrements the reference count and reports whether it
// reached zero (the caller should then remove the address from any
// book it owns — §3: "freeing must not occur while per-peer queues
// are non-empty").
func (a *Addr) Release() (atZero bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.refcount <= 0 {
		return false, newErr(InvalidParam, "Addr.Release", "refcount already zero for %v", a.uri)
	}
	a.refcount--
	if a.refcount == 0 {
		if len(a.rxs) != 0 || len(a.early) != 0 {
			a.refcount = 1 // undo; reject the release
			return false, newErr(ProtocolError, "Addr.Release", "cannot free %v: per-peer queues non-empty", a.uri)
		}
		return true, nil
	}
	return false, nil
}

// postRecvExpected implements the posting half of §4.1: scan early
// arrivals for a matching tag; if found, complete synchronously and
// return true. Otherwise append to rxs and return false.
func (a *Addr) postRecvExpected(tag uint32, buf []byte, op *Operation) (actualSize int, matched bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, e := range a.early {
		if e.tag == tag {
			n := min(len(buf), len(e.payload))
			copy(buf, e.payload[:n])
			a.early = append(a.early[:i], a.early[i+1:]...)
			return n, true
		}
	}
	a.rxs = append(a.rxs, &rxsEntry{tag: tag, buf: buf, op: op})
	return 0, false
}

// deliverExpected implements the arrival half of §4.1: scan rxs for a
// matching tag; if found, complete that posted op and remove it from
// rxs. Otherwise cache as an early arrival.
func (a *Addr) deliverExpected(tag uint32, payload []byte) (op *Operation, actualSize int, matched bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, r := range a.rxs {
		if r.tag == tag {
			n := min(len(r.buf), len(payload))
			copy(r.buf, payload[:n])
			a.rxs = append(a.rxs[:i], a.rxs[i+1:]...)
			return r.op, n, true
		}
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	a.early = append(a.early, &earlyEntry{tag: tag, payload: cp})
	return nil, 0, false
}

// cancelRecvExpected removes op from rxs if it is still posted there
// (§9 Open Question: cancel "MUST dequeue not-yet-delivered posted
// receives"). Reports whether op was found and removed.
func (a *Addr) cancelRecvExpected(op *Operation) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, r := range a.rxs {
		if r.op == op {
			a.rxs = append(a.rxs[:i], a.rxs[i+1:]...)
			return true
		}
	}
	return false
}

func (a *Addr) rxsLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.rxs)
}

func (a *Addr) earlyLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.early)
}
