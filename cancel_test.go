package nexusrpc

import "testing"

func TestCancelRecvExpectedDequeuesAndCompletes(t *testing.T) {
	net := newSimNetwork()
	transport := newSimTransport(net, "cancel-expected", 1<<20)
	rt, err := Init(transport, DefaultConfig())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	peer := rt.AddrSelf()
	buf := make([]byte, 8)
	op := rt.ep.postRecvExpected(peer, 3, buf, nil)
	if op.Completed {
		t.Fatal("expected op to remain pending before cancel")
	}
	if peer.rxsLen() != 1 {
		t.Fatalf("expected 1 rxs entry before cancel, got %v", peer.rxsLen())
	}

	if err := rt.Cancel(op); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !op.Completed {
		t.Fatal("expected op to be completed after cancel")
	}
	if peer.rxsLen() != 0 {
		t.Fatalf("expected rxs entry removed after cancel, got %v", peer.rxsLen())
	}

	if err := rt.Cancel(op); CodeOf(err) != NoMatch {
		t.Fatalf("expected NoMatch cancelling an already-completed op, got %v", err)
	}
}

func TestCancelRecvUnexpectedDequeues(t *testing.T) {
	net := newSimNetwork()
	transport := newSimTransport(net, "cancel-unexpected", 1<<20)
	rt, err := Init(transport, DefaultConfig())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	buf := make([]byte, 8)
	op := rt.ep.postRecvUnexpected(buf, nil)
	if rt.ep.uq.opQueueEmpty() {
		t.Fatal("expected the posted op to occupy the unexpected-op queue")
	}

	if err := rt.Cancel(op); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !rt.ep.uq.opQueueEmpty() {
		t.Fatal("expected the unexpected-op queue empty after cancel")
	}
	if CodeOf(op.Err) != Fail {
		t.Fatalf("expected a cancelled op to carry a Fail status, got %v", CodeOf(op.Err))
	}
}

func TestCancelAlreadyMatchedOpNotFound(t *testing.T) {
	net := newSimNetwork()
	transport := newSimTransport(net, "cancel-matched", 1<<20)
	rt, err := Init(transport, DefaultConfig())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	peer := rt.AddrSelf()
	buf := make([]byte, 4)
	op := rt.ep.postRecvExpected(peer, 9, buf, nil)

	// Deliver matches and removes it from rxs before cancel gets a chance;
	// mirror what progress.go's dispatchRecv does on a real arrival.
	matchedOp, actual, matched := peer.deliverExpected(9, []byte{1, 2, 3, 4})
	if !matched || matchedOp != op {
		t.Fatal("expected delivery to match the posted op")
	}
	op.complete(actual, nil)

	if err := rt.Cancel(op); CodeOf(err) != NoMatch {
		t.Fatalf("expected NoMatch cancelling an op matched out from under it, got %v", err)
	}
}
