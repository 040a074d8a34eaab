package nexusrpc

import (
	cryrand "crypto/rand"
	"math/rand/v2"
	"sync"

	cristalbase64 "github.com/cristalhq/base64"
)

// callIDRNG is seeded once from the OS CSPRNG and then used, under
// callIDRNGMu since a *rand.ChaCha8 is not safe for concurrent use,
// for generating trace-correlation call ids; not part of the wire
// protocol, only of diagnostic output (see vv()).
var callIDRNG = newChaCha8RNG()
var callIDRNGMu sync.Mutex

func newChaCha8RNG() *rand.ChaCha8 {
	var seed [32]byte
	if _, err := cryrand.Read(seed[:]); err != nil {
		panicOn(err)
	}
	return rand.NewChaCha8(seed)
}

// cryRandBytesBase64 returns n cryptographically-random bytes,
// URL-base64 encoded.
func cryRandBytesBase64(n int) string {
	by := make([]byte, n)
	callIDRNGMu.Lock()
	for i := range by {
		by[i] = byte(callIDRNG.Uint64())
	}
	callIDRNGMu.Unlock()
	return cristalbase64.URLEncoding.EncodeToString(by)
}

// NewCallID returns a short random identifier for correlating trace
// output across a single forward() call; name is folded in as a
// prefix for readability in logs.
func NewCallID(name string) string {
	if name == "" {
		return cryRandBytesBase64(9)
	}
	return name + "-" + cryRandBytesBase64(9)
}
