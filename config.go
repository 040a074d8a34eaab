package nexusrpc

import "time"

// Compression selects the codec applied to an overflowed extra buffer
// before it is registered for RMA (see magic7.go for the wire byte).
type Compression int

const (
	CompressNone Compression = iota
	CompressS2
	CompressLZ4
	CompressZstdFast
	CompressZstdDefault
	CompressZstdBetter
	CompressZstdBest
)

// magic7 maps a Compression selection to the wire byte the forwarding
// engine stamps into RequestHeader.Magic7/ResponseHeader.Magic7
// (magic7.go, §11.3 of SPEC_FULL.md); the two enums are declared in
// the same none/s2/lz4/zstd-1/zstd-3/zstd-7/zstd-11 order on purpose.
func (c Compression) magic7() magic7b {
	return magic7b(c)
}

// Config carries the knobs the core spec leaves implementation
// defined. Construct with DefaultConfig and call Validate before
// passing to Init.
type Config struct {
	// MaxUnexpectedSize bounds the buffer allocated for an unexpected
	// send (the request message, §4.7 step 2).
	MaxUnexpectedSize int

	// MaxExpectedSize bounds the buffer allocated for a pre-posted
	// expected receive (the response message, §4.7 step 2).
	MaxExpectedSize int

	// MaxTagBits caps MAX_TAG at (1<<MaxTagBits)-1 when that is smaller
	// than the transport-reported max right-shifted by two reserved
	// bits (§4.4); otherwise the transport-derived value stands. Zero
	// means derive entirely from the transport.
	MaxTagBits int

	// ProgressTimeout is the default passed to progress() when the
	// caller does not supply one.
	ProgressTimeout time.Duration

	// WaitPollInterval is the polling granularity wait/wait_all use
	// against the completion facility.
	WaitPollInterval time.Duration

	// Compression selects the codec for oversize extra-buffer spill
	// (§4.7 step 5, §11.3 of SPEC_FULL.md). CompressNone disables it.
	Compression Compression
}

// DefaultConfig returns a Config with the teacher's usual conservative
// defaults: generous buffers, sub-millisecond polling, no
// compression.
func DefaultConfig() Config {
	return Config{
		MaxUnexpectedSize: 64 * 1024,
		MaxExpectedSize:   64 * 1024,
		MaxTagBits:        0,
		ProgressTimeout:   100 * time.Millisecond,
		WaitPollInterval:  500 * time.Microsecond,
		Compression:       CompressNone,
	}
}

// Validate checks the Config for internally-inconsistent or
// out-of-range values, returning an InvalidParam *Error describing
// the first problem found.
func (c Config) Validate() error {
	if c.MaxUnexpectedSize <= 0 {
		return newErr(InvalidParam, "Config.Validate", "MaxUnexpectedSize must be > 0, got %d", c.MaxUnexpectedSize)
	}
	if c.MaxExpectedSize <= 0 {
		return newErr(InvalidParam, "Config.Validate", "MaxExpectedSize must be > 0, got %d", c.MaxExpectedSize)
	}
	if c.MaxTagBits < 0 || c.MaxTagBits > 29 {
		return newErr(InvalidParam, "Config.Validate", "MaxTagBits must be in [0,29], got %d", c.MaxTagBits)
	}
	if c.ProgressTimeout < 0 {
		return newErr(InvalidParam, "Config.Validate", "ProgressTimeout must be >= 0, got %v", c.ProgressTimeout)
	}
	if c.WaitPollInterval <= 0 {
		return newErr(InvalidParam, "Config.Validate", "WaitPollInterval must be > 0, got %v", c.WaitPollInterval)
	}
	switch c.Compression {
	case CompressNone, CompressS2, CompressLZ4, CompressZstdFast, CompressZstdDefault, CompressZstdBetter, CompressZstdBest:
	default:
		return newErr(InvalidParam, "Config.Validate", "unknown Compression value %d", c.Compression)
	}
	return nil
}
