package nexusrpc

// Cancel implements the top-level cancel(op) entry point (§9 of
// spec.md). The core reserves this entry point but permits a
// not-supported stub; this implementation instead does the full job:
// dequeue op from wherever it is still posted and complete it with a
// cancelled status. Returns NoMatch if op has already completed or is
// not a cancellable recv kind (sends and RMA ops are not cancellable
// once posted to the transport).
func (rt *Runtime) Cancel(op *Operation) error {
	if op == nil {
		return newErr(InvalidParam, "Cancel", "nil op")
	}
	if op.Completed {
		return newErr(NoMatch, "Cancel", "operation already completed")
	}

	var removed bool
	switch op.Kind {
	case OpRecvExpected:
		if op.Peer == nil {
			return newErr(InvalidParam, "Cancel", "recv-expected op has no peer")
		}
		removed = op.Peer.cancelRecvExpected(op)
	case OpRecvUnexpected:
		removed = rt.ep.uq.cancelRecv(op)
	default:
		return newErr(NoMatch, "Cancel", "cannot cancel op kind %v once posted", op.Kind)
	}

	if !removed {
		return newErr(NoMatch, "Cancel", "op not found in its posted queue (may already be matching)")
	}
	op.complete(0, newErr(Fail, "cancel", "operation cancelled"))
	return nil
}
