package yellowpage

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// engine drives the periodic gossip tick and the Syn/SynAck/Ack message
// exchange. Structurally grounded on the teacher's gossip/pkg/
// gossiper.go: a heartbeat-and-round ticker loop plus a dispatch loop
// reacting to inbound messages, generalized from plain TCP round-trip
// RPC calls to the three-message digest/delta protocol spec §4.4
// mandates, and from "exchange everything" to "exchange a digest, then
// only the bounded delta the peer is missing".
type engine struct {
	store     *Store
	transport *transport
	seeds     *seedManager
	cfg       Config
	logger    *zap.Logger

	closing chan chan error
}

func newEngine(store *Store, t *transport, seeds *seedManager) *engine {
	return &engine{
		store:     store,
		transport: t,
		seeds:     seeds,
		cfg:       store.cfg,
		logger:    store.logger(),
		closing:   make(chan chan error),
	}
}

// run starts the tick loop and the inbound dispatch loop. It returns once
// both have exited, which happens within one tick interval of stop()
// being called (spec §5 "Cancellation & timeouts").
func (e *engine) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{}, 2)
	go func() { e.tickLoop(ctx); done <- struct{}{} }()
	go func() { e.dispatchLoop(ctx); done <- struct{}{} }()

	select {
	case errc := <-e.closing:
		cancel()
		<-done
		<-done
		errc <- nil
	case <-ctx.Done():
		<-done
		<-done
	}
}

func (e *engine) stop() error {
	errc := make(chan error)
	e.closing <- errc
	return <-errc
}

// tickLoop fires a gossip round on a jittered interval, matching the
// teacher's gossipRound goroutine but folding in the heartbeat bump spec
// §4.4 step 1 requires on the very same tick rather than a separate
// heartBeatInterval loop.
func (e *engine) tickLoop(ctx context.Context) {
	for {
		wait := jitteredInterval(e.cfg.GossipInterval, defaultGossipJitter, e.store.rng)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			e.tick()
		}
	}
}

// jitteredInterval returns interval scaled by a random factor within
// ±jitterFrac, to avoid lockstep gossip across a fleet of peers ticking
// on the same nominal interval (spec §4.4 "jittered ±10%").
func jitteredInterval(interval time.Duration, jitterFrac float64, rng *rand.Rand) time.Duration {
	if jitterFrac <= 0 {
		return interval
	}
	delta := (rng.Float64()*2 - 1) * jitterFrac
	return time.Duration(float64(interval) * (1 + delta))
}

// tick performs one gossip round: bump the local heartbeat, refresh the
// failure detector's verdicts, GC long-dead replicas, select peers, and
// send each of them our digest as a Syn.
func (e *engine) tick() {
	now := time.Now()

	var beat uint64
	if prev, ok := e.store.Get(e.cfg.NodeID, KeyHeartbeat); ok {
		beat, _ = strconv.ParseUint(prev, 10, 64)
	}
	e.store.Set(KeyHeartbeat, strconv.FormatUint(beat+1, 10))
	e.store.metrics.incGossipRounds()

	e.store.refreshLiveness(now)
	if evicted := e.store.gcDeadNodes(now); len(evicted) > 0 {
		for _, id := range evicted {
			e.logger.Info("evicted long-dead node", zap.String("node", string(id)))
		}
	}

	peers := e.selectPeers()
	if len(peers) == 0 {
		e.logger.Debug("no peers to gossip with this round", zap.String("node", string(e.cfg.NodeID)))
		return
	}

	digest := e.store.computeDigest()
	payload := encodeSyn(synMessage{Digest: digest})
	for _, addr := range peers {
		if err := e.transport.send(addr, payload); err != nil {
			e.logger.Debug("failed to send syn", zap.String("peer", addr), zap.Error(err))
		}
	}
}

// selectPeers implements spec §4.4 step 2: up to GossipFanoutLive random
// Live peers, up to GossipFanoutDead random Dead/Suspect peers, and up to
// GossipFanoutSeed random resolvable seeds when any seed is still unknown
// or the cluster has no live peers (one of each by default),
// deduplicated by address.
func (e *engine) selectPeers() []string {
	e.store.mu.RLock()
	var liveAddrs, deadAddrs []string
	knownSeedAddrs := map[string]struct{}{}
	for id, rec := range e.store.liveness {
		if id == e.store.selfID {
			continue
		}
		addr, ok := e.addrForLocked(id)
		if !ok {
			continue
		}
		if rec.verdict == Live {
			liveAddrs = append(liveAddrs, addr)
		} else {
			deadAddrs = append(deadAddrs, addr)
		}
		knownSeedAddrs[addr] = struct{}{}
	}
	noLivePeers := len(liveAddrs) == 0
	e.store.mu.RUnlock()

	selected := map[string]struct{}{}
	for _, a := range pickDistinct(e.store.rng, liveAddrs, e.cfg.GossipFanoutLive) {
		selected[a] = struct{}{}
	}
	for _, a := range pickDistinct(e.store.rng, deadAddrs, e.cfg.GossipFanoutDead) {
		selected[a] = struct{}{}
	}

	needSeeds := noLivePeers || e.seeds.hasUnresolved(knownSeedAddrs)
	if needSeeds {
		resolvable := e.seeds.resolvable(time.Now())
		for _, a := range pickDistinct(e.store.rng, resolvable, e.cfg.GossipFanoutSeed) {
			selected[a] = struct{}{}
		}
	}

	out := make([]string, 0, len(selected))
	for a := range selected {
		out = append(out, a)
	}
	return out
}

// addrForLocked looks up the UDP address a node advertised under
// keyAddr. Caller must already hold at least a read lock.
func (e *engine) addrForLocked(id NodeID) (string, bool) {
	ns, ok := e.store.nodes[id]
	if !ok {
		return "", false
	}
	kv, ok := ns.Entries[keyAddr]
	if !ok || kv.Tombstone {
		return "", false
	}
	return kv.Value, true
}

// dispatchLoop consumes decoded frames from the transport and drives the
// Syn/SynAck/Ack exchange. Because UDP gives us no persistent connection
// to hang per-round state off, each handler is self-contained: it reacts
// only to the message it was just given, matching spec §4.4's "any round
// is abandoned on the next tick; no explicit timeout".
func (e *engine) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-e.transport.recvCh:
			if !ok {
				return
			}
			e.handle(f)
		}
	}
}

func (e *engine) handle(f inboundFrame) {
	switch m := f.msg.(type) {
	case synMessage:
		e.handleSyn(f.addr, m)
	case synAckMessage:
		e.handleSynAck(f.addr, m)
	case ackMessage:
		e.handleAck(f.addr, m)
	default:
		e.logger.Debug("dropping frame of unexpected type", zap.String("peer", f.addr))
	}
}

// handleSyn responds to an initiator's Syn with our own digest plus the
// delta they're missing (spec §4.4 "On receiving a Syn from peer P").
func (e *engine) handleSyn(from string, m synMessage) {
	delta := e.store.computeDeltaFor(m.Digest, e.cfg.MTUBudget)
	ourDigest := e.store.computeDigest()
	payload := encodeSynAck(synAckMessage{Digest: ourDigest, Delta: delta})
	if err := e.transport.send(from, payload); err != nil {
		e.logger.Debug("failed to send synack", zap.String("peer", from), zap.Error(err))
	}
}

// handleSynAck applies the delta we were sent, records heartbeat
// arrivals, and replies with an Ack carrying whatever the peer's
// piggybacked digest shows they're still missing from us. The round ends
// here from the initiator's perspective.
func (e *engine) handleSynAck(from string, m synAckMessage) {
	e.applyIncoming(m.Delta)

	delta := e.store.computeDeltaFor(m.Digest, e.cfg.MTUBudget)
	payload := encodeAck(ackMessage{Delta: delta})
	if err := e.transport.send(from, payload); err != nil {
		e.logger.Debug("failed to send ack", zap.String("peer", from), zap.Error(err))
	}
}

// handleAck applies the final delta of a round. Terminal: no reply.
func (e *engine) handleAck(from string, m ackMessage) {
	e.applyIncoming(m.Delta)
}

// applyIncoming merges every node's delta into the store and records a
// heartbeat arrival for any node whose heartbeat key actually advanced,
// which is the phi-accrual detector's only input (spec §4.5).
func (e *engine) applyIncoming(deltas []deltaEntries) {
	now := time.Now()
	for _, d := range deltas {
		res := e.store.applyDelta(d)
		if res.heartbeatAdvanced {
			e.store.recordHeartbeatArrival(d.ID, res.newGeneration, now)
		}
	}
}
