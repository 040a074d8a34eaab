package nexusrpc

import "sync"

// addrBook is the process-wide store of known peer addresses,
// indexed by URI (§3 Peer Address lifecycle).
type addrBook struct {
	mu   sync.Mutex
	byID *omap[string, *Addr]
}

func newAddrBook() *addrBook {
	return &addrBook{byID: newOmap[string, *Addr]()}
}

// put caches addr under its own uri, so a second lookup of the same
// peer returns the identical *Addr pointer (per-peer matching state in
// rxs/early is scoped to that pointer, §4.1).
func (b *addrBook) put(addr *Addr) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byID.set(addr.uri, addr)
}

func (b *addrBook) get(uri string) (*Addr, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.byID.get2(uri)
}

// remove deletes uri from the book; callers must have already
// verified via Addr.Release that the refcount reached zero.
func (b *addrBook) remove(uri string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byID.delkey(uri)
}

func (b *addrBook) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.byID.Len()
}
