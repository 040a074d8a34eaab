package nexusrpc

import (
	"bytes"
	"testing"
)

func TestRMAHandleSerializeRoundTrip(t *testing.T) {
	net := newSimNetwork()
	tA := newSimTransport(net, "A", 1<<20)

	m := newRMAManager()
	buf := []byte("hello rma")
	h := m.create(buf, HandleReadOnly)
	if err := m.register(h, tA); err != nil {
		t.Fatalf("register: %v", err)
	}

	wire := m.serialize(h)
	back := m.deserialize(wire)

	if back.Readable() != h.Readable() || back.Writable() != h.Writable() {
		t.Fatalf("deserialized handle permissions differ: got readable=%v writable=%v, want readable=%v writable=%v",
			back.Readable(), back.Writable(), h.Readable(), h.Writable())
	}
	if wire.Size != uint64(len(buf)) {
		t.Fatalf("expected serialized size %v, got %v", len(buf), wire.Size)
	}
}

func TestRMAPutRequiresWritePermission(t *testing.T) {
	readOnly := &MemHandle{flags: HandleReadOnly}
	if err := requirePut(readOnly); CodeOf(err) != PermissionError {
		t.Fatalf("expected PermissionError for put against a read-only handle, got %v", CodeOf(err))
	}

	writable := &MemHandle{flags: HandleWrite}
	if err := requirePut(writable); err != nil {
		t.Fatalf("expected put to be permitted against a writable handle, got %v", err)
	}
}

func TestRMAGetRequiresReadPermission(t *testing.T) {
	none := &MemHandle{flags: 0}
	if err := requireGet(none); CodeOf(err) != PermissionError {
		t.Fatalf("expected PermissionError for get against a handle with no permissions, got %v", CodeOf(err))
	}

	readable := &MemHandle{flags: HandleReadOnly}
	if err := requireGet(readable); err != nil {
		t.Fatalf("expected get to be permitted against a read-only handle, got %v", err)
	}
}

func TestEndpointPostGetRejectsWriteOnlyHandle(t *testing.T) {
	net := newSimNetwork()
	tA := newSimTransport(net, "postget-write-only-A", 1<<20)
	tB := newSimTransport(net, "postget-write-only-B", 1<<20)
	epA := newEndpoint(tA, DefaultConfig())

	remoteBuf := make([]byte, 16)
	desc, err := tB.RegisterMemory(remoteBuf, true)
	if err != nil {
		t.Fatalf("RegisterMemory: %v", err)
	}
	wire := HandleWireRep{Descriptor: desc, Size: uint64(len(remoteBuf)), Flags: HandleWrite}

	out := make([]byte, len(remoteBuf))
	if _, err := epA.postGet(tB.selfAddr, out, wire, nil); CodeOf(err) != PermissionError {
		t.Fatalf("expected PermissionError getting from a write-only remote handle, got %v", CodeOf(err))
	}
}

func TestEndpointPostPutRejectsReadOnlyHandle(t *testing.T) {
	net := newSimNetwork()
	tA := newSimTransport(net, "postput-read-only-A", 1<<20)
	tB := newSimTransport(net, "postput-read-only-B", 1<<20)
	epA := newEndpoint(tA, DefaultConfig())

	remoteBuf := []byte("immutable remote payload")
	desc, err := tB.RegisterMemory(remoteBuf, false)
	if err != nil {
		t.Fatalf("RegisterMemory: %v", err)
	}
	wire := HandleWireRep{Descriptor: desc, Size: uint64(len(remoteBuf)), Flags: HandleReadOnly}

	if _, err := epA.postPut(tB.selfAddr, []byte("overwrite"), wire, nil); CodeOf(err) != PermissionError {
		t.Fatalf("expected PermissionError putting to a read-only remote handle, got %v", CodeOf(err))
	}
	if !bytes.Equal(remoteBuf, []byte("immutable remote payload")) {
		t.Fatal("expected the rejected put to leave the remote buffer untouched")
	}
}

func TestEndpointPostPutGetRoundTripWithPermission(t *testing.T) {
	net := newSimNetwork()
	tA := newSimTransport(net, "postputget-A", 1<<20)
	tB := newSimTransport(net, "postputget-B", 1<<20)
	epA := newEndpoint(tA, DefaultConfig())

	remoteBuf := make([]byte, 16)
	desc, err := tB.RegisterMemory(remoteBuf, true)
	if err != nil {
		t.Fatalf("RegisterMemory: %v", err)
	}
	wire := HandleWireRep{Descriptor: desc, Size: uint64(len(remoteBuf)), Flags: HandleWrite | HandleReadOnly}

	payload := []byte("gated rma payload")
	if _, err := epA.postPut(tB.selfAddr, payload, wire, nil); err != nil {
		t.Fatalf("postPut: %v", err)
	}
	if !bytes.Equal(remoteBuf[:len(payload)], payload) {
		t.Fatalf("expected remote buffer to contain the put payload, got %q", remoteBuf[:len(payload)])
	}

	out := make([]byte, len(payload))
	if _, err := epA.postGet(tB.selfAddr, out, wire, nil); err != nil {
		t.Fatalf("postGet: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("expected postGet to read back the put payload, got %q", out)
	}
}

func TestRMAPutGetOverSimTransport(t *testing.T) {
	net := newSimNetwork()
	tA := newSimTransport(net, "putgetA", 1<<20)
	tB := newSimTransport(net, "putgetB", 1<<20)

	remoteBuf := make([]byte, 16)
	desc, err := tB.RegisterMemory(remoteBuf, true)
	if err != nil {
		t.Fatalf("RegisterMemory: %v", err)
	}
	wire := HandleWireRep{Descriptor: desc, Size: uint64(len(remoteBuf)), Flags: HandleWrite}

	payload := []byte("rma put payload!")
	if _, err := tA.Put(tB.selfAddr, payload, wire); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !bytes.Equal(remoteBuf[:len(payload)], payload) {
		t.Fatalf("expected remote buffer to contain the put payload, got %q", remoteBuf[:len(payload)])
	}

	out := make([]byte, len(payload))
	if _, err := tA.Get(tB.selfAddr, out, wire); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(out, remoteBuf[:len(out)]) {
		t.Fatalf("expected get to read back the remote buffer contents")
	}
}
