package nexusrpc

import (
	"encoding/binary"
	"sync"
)

// HandleFlags are the access permissions a registered-memory handle
// carries (§3 Registered-Memory Handle, §4.6).
type HandleFlags uint8

const (
	HandleReadOnly HandleFlags = 1 << iota
	HandleWrite
)

func (f HandleFlags) readable() bool { return f&HandleReadOnly != 0 || f&HandleWrite != 0 }
func (f HandleFlags) writable() bool { return f&HandleWrite != 0 }

// HandleWireRep is the fixed-size, self-contained byte image of a
// MemHandle, transferable to a peer by copying bytes (§6).
type HandleWireRep struct {
	Base       uint64      `zid:"0"`
	Size       uint64      `zid:"1"`
	Flags      HandleFlags `zid:"2"`
	Descriptor [16]byte    `zid:"3"` // transport-opaque
}

func (w HandleWireRep) isSentinel() bool {
	return w.Base == 0 && w.Size == 0
}

// MemHandle is the runtime-side registered-memory handle (§3, §4.6).
// The base pointer is represented as an opaque buffer reference
// rather than a raw address, per the "never expose raw memory
// addresses as handles" redesign note (§9 of spec.md).
type MemHandle struct {
	id         uint64
	buf        []byte
	flags      HandleFlags
	registered bool
	descriptor [16]byte
}

func (h *MemHandle) Readable() bool { return h.flags.readable() }
func (h *MemHandle) Writable() bool { return h.flags.writable() }

func (h *MemHandle) serialize() HandleWireRep {
	return HandleWireRep{
		Base:       h.id,
		Size:       uint64(len(h.buf)),
		Flags:      h.flags,
		Descriptor: h.descriptor,
	}
}

// rmaManager creates, registers, deregisters, and serializes
// registered-memory handles (§4.6). It is process-wide like the
// function registry and tag generator.
type rmaManager struct {
	mu      sync.Mutex
	nextID  uint64
	byID    *dmap[*handleKey, *MemHandle]
}

type handleKey struct{ idStr string }

func (k *handleKey) id() string { return k.idStr }

func newRMAManager() *rmaManager {
	return &rmaManager{
		nextID: 1,
		byID:   newDmap[*handleKey, *MemHandle](),
	}
}

// create allocates a handle shell over buf with the given access
// flags (§4.6). The handle is not yet usable for put/get until
// register is called.
func (m *rmaManager) create(buf []byte, flags HandleFlags) *MemHandle {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.mu.Unlock()

	return &MemHandle{
		id:    id,
		buf:   buf,
		flags: flags,
	}
}

// register binds h to the endpoint, always permitting local read and
// adding write permission if HandleWrite was requested (§4.6). Must
// be called before put/get against h.
func (m *rmaManager) register(h *MemHandle, t Transport) error {
	if h == nil {
		return newErr(InvalidParam, "register", "nil handle")
	}
	desc, err := t.RegisterMemory(h.buf, h.flags.writable())
	if err != nil {
		return newErr(Fail, "register", "transport RegisterMemory: %v", err)
	}
	h.descriptor = desc
	h.registered = true

	m.mu.Lock()
	m.byID.upsert(&handleKey{idStr: handleIDString(h.id)}, h)
	m.mu.Unlock()
	return nil
}

// deregister unregisters h. Safe only when no outstanding RMA
// operation still references it (§3 invariant); callers are
// responsible for sequencing this after the relevant completion.
func (m *rmaManager) deregister(h *MemHandle, t Transport) error {
	if h == nil || !h.registered {
		return newErr(InvalidParam, "deregister", "handle not registered")
	}
	if err := t.DeregisterMemory(h.descriptor); err != nil {
		return newErr(Fail, "deregister", "transport DeregisterMemory: %v", err)
	}
	h.registered = false

	m.mu.Lock()
	m.byID.upsert(&handleKey{idStr: handleIDString(h.id)}, nil)
	m.mu.Unlock()
	return nil
}

func handleIDString(id uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return string(b[:])
}

// serialize moves h bit-exactly across the wire (§4.6, §6).
func (m *rmaManager) serialize(h *MemHandle) HandleWireRep {
	return h.serialize()
}

// deserialize reconstructs a handle's wire shape into a usable
// MemHandle that the local side can pass to put/get against the
// remote region. The returned handle describes a region its owner has
// already registered, so it is marked registered; permission checks
// in requirePut/requireGet operate on its Flags.
func (m *rmaManager) deserialize(w HandleWireRep) *MemHandle {
	return &MemHandle{
		id:         w.Base,
		buf:        make([]byte, w.Size),
		flags:      w.Flags,
		descriptor: w.Descriptor,
		registered: true,
	}
}

// requirePut checks that remote has write permission before a put is
// posted (§4.6: "put requires the remote handle to have been
// registered with write permission").
func requirePut(remote *MemHandle) error {
	if remote == nil || !remote.Writable() {
		return newErr(PermissionError, "put", "remote handle lacks write permission")
	}
	return nil
}

// requireGet checks that remote has at least read permission before
// a get is posted (§4.6).
func requireGet(remote *MemHandle) error {
	if remote == nil || !remote.Readable() {
		return newErr(PermissionError, "get", "remote handle lacks read permission")
	}
	return nil
}
