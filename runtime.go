package nexusrpc

import (
	"time"

	"github.com/glycerine/idem"
)

// Runtime is the single value created by Init and destroyed by
// Finalize; every top-level operation (§6) is a method on it rather
// than reaching into ambient globals (§9 redesign note "global
// mutable state ... model as a single runtime value").
type Runtime struct {
	cfg Config
	ep  *Endpoint

	halt *idem.Halter

	waitQ *pq

	pressor *pressor
	decomp  *decomp
}

// Init implements the top-level init(transport) operation (§6).
func Init(t Transport, cfg Config) (*Runtime, error) {
	if t == nil {
		return nil, newErr(InvalidParam, "Init", "nil transport")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rt := &Runtime{
		cfg:     cfg,
		ep:      newEndpoint(t, cfg),
		halt:    idem.NewHalterNamed("nexusrpc.Runtime"),
		waitQ:   &pq{},
		pressor: newPressor(cfg.MaxUnexpectedSize),
		decomp:  newDecomp(cfg.MaxExpectedSize),
	}
	alwaysPrintf("nexusrpc: init complete, self=%v, max_tag=%v", rt.ep.self.URI(), rt.ep.tags.MaxTag())
	return rt, nil
}

// Initialized implements initialized() -> bool.
func (rt *Runtime) Initialized() bool {
	return rt != nil && rt.ep != nil
}

// Finalize implements finalize() (§6, §8 S6). Returns ProtocolError
// without double-freeing queue storage if the unexpected-op queue is
// still non-empty.
func (rt *Runtime) Finalize() error {
	if err := rt.ep.finalize(); err != nil {
		return err
	}
	rt.halt.ReqStop.Close()
	rt.halt.Done.Close()
	rt.pressor.Close()
	rt.decomp.Close()
	alwaysPrintf("nexusrpc: finalize complete, self=%v", rt.ep.self.URI())
	return nil
}

// Register implements register(name, encoder, decoder) -> id (§4.5,
// §6).
func (rt *Runtime) Register(name string, enc EncodeFunc, dec DecodeFunc) (uint32, error) {
	return rt.ep.reg.register(name, enc, dec)
}

// Registered implements registered(name) -> (bool, id) (§4.5, §6).
func (rt *Runtime) Registered(name string) (bool, uint32) {
	return rt.ep.reg.registered(name)
}

// AddrLookup resolves a peer URI, wrapping the transport's
// asynchronous lookup into a blocking call bounded by timeout — a
// convenience built atop progress(), since connection establishment
// itself is out of scope (§1 Non-goals) but address resolution still
// needs to happen for forward() to have a target.
func (rt *Runtime) AddrLookup(uri string, timeout time.Duration) (*Addr, error) {
	if cached, found := rt.ep.book.get(uri); found {
		return cached, nil
	}

	type result struct {
		addr *Addr
		err  error
	}
	done := make(chan result, 1)
	rt.ep.transport.AddrLookup(uri, func(a *Addr, err error) {
		done <- result{a, err}
	})

	deadline := time.Now().Add(timeout)
	for {
		select {
		case r := <-done:
			if r.err != nil {
				return nil, newErr(Fail, "AddrLookup", "%v", r.err)
			}
			rt.ep.book.put(r.addr)
			return r.addr, nil
		default:
		}
		if time.Now().After(deadline) {
			return nil, newErr(Timeout, "AddrLookup", "no resolution for %q within %v", uri, timeout)
		}
		if err := rt.ep.progress(rt.cfg.ProgressTimeout); err != nil && CodeOf(err) != Timeout {
			return nil, err
		}
	}
}

// AddrRelease drops a reference to addr (§3 Peer Address lifecycle,
// §12 of SPEC_FULL.md). Once the refcount reaches zero the address is
// evicted from the book so a later AddrLookup re-resolves it fresh.
func (rt *Runtime) AddrRelease(addr *Addr) error {
	if addr == nil {
		return newErr(InvalidParam, "AddrRelease", "nil addr")
	}
	atZero, err := addr.Release()
	if err != nil {
		return err
	}
	if atZero {
		rt.ep.book.remove(addr.uri)
	}
	return nil
}

// AddrSelf implements addr_self() (§3 Peer Address lifecycle).
func (rt *Runtime) AddrSelf() *Addr {
	return rt.ep.self
}

// Progress pumps the endpoint once, for callers that want manual
// control over the event loop (§4.3, §5 "user code is expected to
// call progress").
func (rt *Runtime) Progress(timeout time.Duration) error {
	return rt.ep.progress(timeout)
}

// ErrorToString implements error_to_string(code) -> string (§6).
func (rt *Runtime) ErrorToString(code ErrorCode) string {
	return ErrorToString(code)
}

// VersionGet implements version_get() -> (major, minor, patch) (§6).
func (rt *Runtime) VersionGet() (int, int, int) {
	return VersionGet()
}
