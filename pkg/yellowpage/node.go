package yellowpage

import "time"

// NodeID is a stable, printable, process-lifetime-unique identifier for a
// peer. It never changes across restarts; what changes is the Generation
// paired with it.
type NodeID string

// Generation is an incarnation marker for a NodeID. A higher Generation
// observed for a known NodeID invalidates all prior state held for that
// NodeID: the replica is replaced in-place, not merged.
//
// Coordinator.Start always takes the Generation from NewGeneration:
// wall-clock seconds at process start, which survives restarts as long
// as the system clock does not go backwards. Config has no field to
// supply a different clock source.
type Generation uint64

// NewGeneration returns a Generation derived from the current wall clock.
func NewGeneration() Generation {
	return Generation(time.Now().Unix())
}
