package nexusrpc

import "hash/fnv"

// DecodeMode distinguishes the two invocation modes a registered
// decoder must support (§4.7): normal decode, and the release mode
// request_free uses to let the codec free dynamically-allocated
// output members. Encoding goes through the separate EncodeFunc.
type DecodeMode int

const (
	DecodeModeDecode DecodeMode = iota
	DecodeModeRelease
)

// EncodeFunc encodes in into dst (which has capacity but may be too
// small). If the encoding fits, it returns n and a nil overflow. If
// it doesn't fit, it returns the full encoded bytes as overflow
// (ownership of which passes to the caller, to be spilled to the
// extra buffer per §4.7 step 5) and n==0.
type EncodeFunc func(dst []byte, in any) (n int, overflow []byte, err error)

// DecodeFunc decodes src into out under mode (§4.7, §4.5).
type DecodeFunc func(mode DecodeMode, src []byte, out any) error

type registryEntry struct {
	name   string
	id     uint32
	encode EncodeFunc
	decode DecodeFunc
}

// registry is the process-wide function registry (§4.5). Shared
// state, mutated only between init and finalize per the concurrency
// model (§5).
type registry struct {
	byName *dmap[*regKey, *registryEntry]
	byID   *omap[uint32, *registryEntry]
}

type regKey struct{ name string }

func (k *regKey) id() string { return k.name }

func newRegistry() *registry {
	return &registry{
		byName: newDmap[*regKey, *registryEntry](),
		byID:   newOmap[uint32, *registryEntry](),
	}
}

// register hashes name to a 32-bit id via FNV-1a, stores the
// encode/decode pair under that id, and returns the id. A hash
// collision against a different already-registered name is a fatal
// registration error (§4.5).
func (r *registry) register(name string, enc EncodeFunc, dec DecodeFunc) (uint32, error) {
	if name == "" {
		return 0, newErr(InvalidParam, "register", "empty name")
	}
	id := fnv32a(name)
	if existing, found := r.byID.get2(id); found && existing.name != name {
		return 0, newErr(Fail, "register", "hash collision: %q and %q both hash to %d", existing.name, name, id)
	}
	entry := &registryEntry{name: name, id: id, encode: enc, decode: dec}
	r.byID.set(id, entry)
	r.byName.upsert(&regKey{name: name}, entry)
	return id, nil
}

// registered reports whether name has been registered and, if so,
// the id returned by register (§4.5).
func (r *registry) registered(name string) (bool, uint32) {
	entry, found := r.byName.get(&regKey{name: name})
	if !found {
		return false, 0
	}
	return true, entry.id
}

func (r *registry) lookup(id uint32) (*registryEntry, bool) {
	return r.byID.get2(id)
}

func fnv32a(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
