package nexusrpc

import (
	"time"

	"github.com/glycerine/loquet"
)

// Request is the top-level call record returned by forward()
// (§3 Request (top-level call), §4.7). ExtraBuf/ExtraHandle are
// either both present or both absent (§3 invariant); sendSub/recvSub
// must both fire — in either order — before the request is complete,
// using loquet.Chan as a pure completion signal the way the teacher's
// Message.DoneCh does (select on WhenClosed(), never read a payload
// off it).
type Request struct {
	CallID string // trace-correlation id, NewCallID(name)
	FnID   uint32

	sendBuf []byte
	recvBuf []byte

	extraBuf    []byte
	extraHandle *MemHandle

	out any

	sendSub *loquet.Chan[struct{}]
	recvSub *loquet.Chan[struct{}]

	sendErr error
	recvErr error
}

func newRequest(callID string, fnID uint32, out any) *Request {
	return &Request{
		CallID:  callID,
		FnID:    fnID,
		out:     out,
		sendSub: loquet.NewChan[struct{}](&struct{}{}),
		recvSub: loquet.NewChan[struct{}](&struct{}{}),
	}
}

// complete reports whether both sub-handles have fired (§4.7 wait).
func (r *Request) complete() bool {
	select {
	case <-r.sendSub.WhenClosed():
	default:
		return false
	}
	select {
	case <-r.recvSub.WhenClosed():
	default:
		return false
	}
	return true
}

// firstErr returns the first non-nil error observed between the
// send and recv sub-handles (§7: "wait returns the first error
// observed").
func (r *Request) firstErr() error {
	if r.sendErr != nil {
		return r.sendErr
	}
	return r.recvErr
}

// wait blocks on send-sub then recv-sub in sequence, charging elapsed
// time against timeout (§4.7), polling at pollInterval granularity
// (Config.WaitPollInterval, §10.3 of SPEC_FULL.md).
func (r *Request) wait(timeout, pollInterval time.Duration) error {
	deadline := time.Now().Add(timeout)

	if err := waitOnChan(r.sendSub.WhenClosed(), deadline, pollInterval); err != nil {
		return err
	}
	if err := waitOnChan(r.recvSub.WhenClosed(), deadline, pollInterval); err != nil {
		return err
	}
	return r.firstErr()
}

// waitOnChan polls ch at pollInterval granularity rather than parking
// a single timer for the whole remaining duration, so a caller driving
// progress() from another goroutine sees wait return promptly after
// ch closes instead of only at the next full-timeout tick.
func waitOnChan(ch <-chan struct{}, deadline time.Time, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ch:
			return nil
		case <-ticker.C:
			if time.Now().After(deadline) {
				select {
				case <-ch:
					return nil
				default:
					return newErr(Timeout, "wait", "deadline exceeded")
				}
			}
		}
	}
}
