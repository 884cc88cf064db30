package yellowpage

import "errors"

// Sentinel errors returned from the coordinator facade. Callers should use
// errors.Is to check for these rather than comparing error strings.
var (
	// ErrBindFailed is returned by Start when the UDP socket cannot bind
	// to the configured listen address.
	ErrBindFailed = errors.New("yellowpage: failed to bind gossip socket")

	// ErrInvalidConfig is returned by Start when the supplied Config is
	// malformed: empty NodeID, empty ListenAddr or one that is not
	// host:port, or inverted phi thresholds.
	ErrInvalidConfig = errors.New("yellowpage: invalid configuration")

	// ErrAlreadyStarted is returned by Start when called twice on the
	// same Coordinator.
	ErrAlreadyStarted = errors.New("yellowpage: coordinator already started")

	// errDeltaTooLarge marks a single KV entry that cannot fit within the
	// MTU budget even alone. It never escapes the engine: the entry is
	// logged and skipped.
	errDeltaTooLarge = errors.New("yellowpage: entry exceeds mtu budget")

	// errFrameDecode marks a malformed datagram. It never escapes the
	// transport: the frame is dropped and counted in metrics.
	errFrameDecode = errors.New("yellowpage: frame decode error")
)
