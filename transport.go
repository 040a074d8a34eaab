package nexusrpc

import "time"

// EventKind enumerates the events the progress engine dispatches
// (§4.3). CONNECT_REQUEST/CONNECT/ACCEPT are reserved for
// connection-oriented transports; the core never requires them but
// must still return them to the transport (§4.3 resource reclamation).
type EventKind int

const (
	EventSend EventKind = iota
	EventRecv
	EventConnectRequest
	EventConnect
	EventAccept
	EventPut
	EventGet
)

func (k EventKind) String() string {
	switch k {
	case EventSend:
		return "SEND"
	case EventRecv:
		return "RECV"
	case EventConnectRequest:
		return "CONNECT_REQUEST"
	case EventConnect:
		return "CONNECT"
	case EventAccept:
		return "ACCEPT"
	case EventPut:
		return "PUT"
	case EventGet:
		return "GET"
	default:
		return "UNKNOWN"
	}
}

// Event is a single item drained from the transport's event source by
// progress() (§4.3). For EventRecv, Header/Payload carry the arrived
// message; for EventSend/EventPut/EventGet, OpID correlates back to
// the operation that was posted.
type Event struct {
	Kind    EventKind
	Peer    *Addr
	OpID    uint64
	Header  frameHeader
	Payload []byte
	Err     error
}

// Transport is the pluggable network abstraction the NAL is built
// against (§1, §11.1 of SPEC_FULL.md). It exposes exactly the
// primitives the endpoint needs: posting sends, posting RMA, looking
// up peer addresses, and draining a single event at a time.
//
// Transport implementations do not perform receive-side matching —
// that is the NAL's job (§4.1, §4.2); a Transport only ever hands
// back raw arrived messages via EventRecv.
type Transport interface {
	// Send posts payload to addr together with its framing header
	// (passed separately, not prefixed to payload; the peer sees it as
	// the EventRecv's Header) and returns an operation id that will
	// later appear as the OpID of an EventSend.
	Send(addr *Addr, header frameHeader, payload []byte) (opID uint64, err error)

	// RegisterMemory registers buf for RMA, returning a transport-opaque
	// descriptor. writable requests read-write registration; otherwise
	// the region is registered read-only (§4.6).
	RegisterMemory(buf []byte, writable bool) (descriptor [16]byte, err error)

	// DeregisterMemory unregisters a previously-registered region.
	DeregisterMemory(descriptor [16]byte) error

	// Put posts a one-sided write of localBuf into the region described
	// by remote, returning an operation id that will appear as the
	// OpID of an EventPut.
	Put(addr *Addr, localBuf []byte, remote HandleWireRep) (opID uint64, err error)

	// Get posts a one-sided read of the region described by remote into
	// localBuf, returning an operation id that will appear as the OpID
	// of an EventGet.
	Get(addr *Addr, localBuf []byte, remote HandleWireRep) (opID uint64, err error)

	// AddrLookup resolves uri to a Addr; cb is invoked either before
	// AddrLookup returns or from a later Progress call (§3 Peer Address
	// lifecycle).
	AddrLookup(uri string, cb func(*Addr, error))

	// AddrSelf returns the transport's own address, flagged self
	// (§3, §12 of SPEC_FULL.md).
	AddrSelf() *Addr

	// Progress drains at most one event, blocking up to timeout.
	// Returns (zero Event, Timeout error) if the deadline elapses
	// first (§4.3).
	Progress(timeout time.Duration) (Event, error)

	// MaxTag reports the transport's maximum usable tag value before
	// the NAL reserves its own high bits (§4.4).
	MaxTag() uint32
}
