// Package nexusrpc implements a remote procedure call runtime layered over
// a pluggable network abstraction (the NAL) that multiplexes two-sided
// send/recv message passing with tags and one-sided RMA (put/get) onto a
// single event queue.
//
// The two load-bearing state machines are:
//
//   - the NAL: an Endpoint that matches posted expected receives against
//     arriving expected messages (including early-arrival caching), dispatches
//     unexpected sends/receives through a pair of process-wide FIFOs, and
//     manages registered-memory handles for RMA.
//
//   - the forwarding engine: per-call state that encodes a typed argument,
//     pre-posts the response receive, sends the request unexpectedly, spills
//     oversize arguments to an RMA-readable side buffer, and decodes/verifies
//     the response.
//
// Connection establishment, authentication, and server-side handler dispatch
// are left to the caller; nexusrpc treats peer addresses as opaque values
// handed back from Transport.AddrLookup.
package nexusrpc

//go:generate greenpack
