package nexusrpc

import "sync"

// unexpectedMsg is an arrived unexpected payload awaiting a posted
// receive (§4.2).
type unexpectedMsg struct {
	peer    *Addr
	tag     uint32
	payload []byte
}

// unexpectedQueues holds the two process-wide FIFOs of §4.2:
// arrived-but-unposted messages, and posted-but-unarrived receive
// ops. The invariant (§4.2) is that at most one is non-empty at a
// consistent observation point; postRecv and deliver enforce this by
// holding msgMu (and taking opMu inside it) while they match against
// the opposite queue.
type unexpectedQueues struct {
	msgMu sync.Mutex
	msgs  []*unexpectedMsg

	opMu sync.Mutex
	ops  []*Operation
}

func newUnexpectedQueues() *unexpectedQueues {
	return &unexpectedQueues{}
}

// postRecv implements the user-post half of §4.2: if a message is
// already queued, pop the oldest, copy into buf, and complete op
// synchronously (true). Otherwise enqueue op and return false.
func (q *unexpectedQueues) postRecv(buf []byte, op *Operation) (peer *Addr, actualSize int, matched bool) {
	q.msgMu.Lock()
	defer q.msgMu.Unlock()
	if len(q.msgs) > 0 {
		m := q.msgs[0]
		q.msgs = q.msgs[1:]
		n := min(len(buf), len(m.payload))
		copy(buf, m.payload[:n])
		op.Tag = m.tag
		return m.peer, n, true
	}

	q.opMu.Lock()
	q.ops = append(q.ops, op)
	q.opMu.Unlock()
	return nil, 0, false
}

// deliver implements the arrival half of §4.2: if an op is already
// posted, pop the oldest, copy the payload in, and return it for the
// caller to complete. Otherwise enqueue a heap copy of the payload
// and return nil.
func (q *unexpectedQueues) deliver(peer *Addr, tag uint32, payload []byte) (op *Operation, actualSize int, matched bool) {
	q.msgMu.Lock()
	defer q.msgMu.Unlock()
	q.opMu.Lock()
	if len(q.ops) > 0 {
		op := q.ops[0]
		q.ops = q.ops[1:]
		q.opMu.Unlock()
		n := min(len(op.Buf), len(payload))
		copy(op.Buf, payload[:n])
		op.Tag = tag
		return op, n, true
	}
	q.opMu.Unlock()

	cp := make([]byte, len(payload))
	copy(cp, payload)
	q.msgs = append(q.msgs, &unexpectedMsg{peer: peer, tag: tag, payload: cp})
	return nil, 0, false
}

// cancelRecv removes op from the posted-op queue if it is still
// waiting there, reporting whether it was found (§9 Open Question:
// cancel "MUST dequeue not-yet-delivered posted receives").
func (q *unexpectedQueues) cancelRecv(op *Operation) bool {
	q.opMu.Lock()
	defer q.opMu.Unlock()
	for i, queued := range q.ops {
		if queued == op {
			q.ops = append(q.ops[:i], q.ops[i+1:]...)
			return true
		}
	}
	return false
}

// opQueueEmpty reports whether finalize may proceed (§8 S6: finalize
// with a non-empty unexpected_op_queue is a ProtocolError).
func (q *unexpectedQueues) opQueueEmpty() bool {
	q.opMu.Lock()
	defer q.opMu.Unlock()
	return len(q.ops) == 0
}
