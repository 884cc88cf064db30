package yellowpage

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// KeyValue is one versioned entry in a node's key-value store.
// A Tombstone marks a deletion but retains its Version so peers converge
// on the absence of the key rather than resurrecting it.
type KeyValue struct {
	Key       string
	Value     string
	Version   uint64
	Tombstone bool
}

// NodeState is the complete per-(NodeID,Generation) view held locally:
// every known key plus the highest version seen across all of them.
// Entries is writable only by the node that owns it; every other Store
// mutates its copy exclusively through applyDelta.
type NodeState struct {
	ID         NodeID
	Generation Generation
	Entries    map[string]KeyValue
	MaxVersion uint64
}

func newNodeState(id NodeID, gen Generation) *NodeState {
	return &NodeState{ID: id, Generation: gen, Entries: map[string]KeyValue{}}
}

// Store holds every piece of shared, mutable state for one Coordinator:
// the cluster-wide KV replica set, per-node liveness bookkeeping, and the
// derived membership view. A single RWMutex guards all three, matching
// the teacher's StateMachine discipline (gossip/pkg/statemachine.go)
// generalized to cover liveness and membership as well as KV entries.
//
// Reads (digest compute, Get, live-node snapshots) take the read lock.
// Mutations (local Set/Delete, applyDelta, verdict transitions) take the
// write lock. No method here performs I/O while holding the lock.
type Store struct {
	mu sync.RWMutex

	selfID NodeID
	nodes  map[NodeID]*NodeState

	liveness map[NodeID]*livenessRecord

	membership   MembershipView
	membershipCh *membershipBroadcast

	cfg Config
	rng *rand.Rand

	metrics *metrics
}

// newStore creates an empty Store and seeds it with the local node's own
// NodeState at a fresh Generation, matching gossiper.go's initState: the
// local node always knows about itself before it knows about anyone else.
func newStore(cfg Config, gen Generation) *Store {
	s := &Store{
		selfID:       cfg.NodeID,
		nodes:        map[NodeID]*NodeState{},
		liveness:     map[NodeID]*livenessRecord{},
		membershipCh: newMembershipBroadcast(),
		cfg:          cfg,
		rng:          rand.New(rand.NewSource(seedFromNodeID(cfg.NodeID))),
		metrics:      newMetrics(cfg.Registry),
	}
	self := newNodeState(cfg.NodeID, gen)
	s.nodes[cfg.NodeID] = self
	s.liveness[cfg.NodeID] = newLivenessRecord(cfg.ArrivalWindowCapacity)
	s.liveness[cfg.NodeID].verdict = Live
	s.recomputeMembershipLocked()
	return s
}

// seedFromNodeID derives a PRNG seed from process start time and the
// NodeID's hash so that a fleet of processes restarted together does not
// gossip in lockstep (spec §9 "Random peer selection").
func seedFromNodeID(id NodeID) int64 {
	var h int64 = int64(time.Now().UnixNano())
	for _, r := range string(id) {
		h = h*31 + int64(r)
	}
	return h
}

func (s *Store) logger() *zap.Logger {
	return s.cfg.Logger
}
