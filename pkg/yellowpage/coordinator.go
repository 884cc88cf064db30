package yellowpage

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// Coordinator is the public facade of the yellowpage library (spec
// §4.7): join, set/get metadata, live nodes, self index, and a
// membership change stream. Grounded on the teacher's distributed-queue/
// main.go App type (a long-lived component holding a *zap.Logger and
// driven by Run()/Stop()-shaped lifecycle methods) combined with
// gossip/pkg/gossiper.go's own Serve/Shutdown channel handshake.
type Coordinator struct {
	mu        sync.Mutex
	started   bool
	cfg       Config
	store     *Store
	transport *transport
	seeds     *seedManager
	engine    *engine
	cancel    context.CancelFunc
}

// NewCoordinator returns an unstarted Coordinator. Call Start to join
// the cluster.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Start binds the UDP socket, initializes local state under a fresh
// Generation, and begins the gossip tick (spec §4.7). It returns
// ErrInvalidConfig, ErrBindFailed, or ErrAlreadyStarted; any other
// failure mode is absorbed internally and retried.
func (c *Coordinator) Start(cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}

	cfg, err := cfg.withDefaults()
	if err != nil {
		return err
	}

	gen := NewGeneration()
	store := newStore(cfg, gen)

	t, err := newTransport(cfg.ListenAddr, cfg.Logger, store.metrics)
	if err != nil {
		return err
	}

	store.setReserved(keyAddr, t.localAddr().String())
	store.setReserved(KeyGeneration, strconv.FormatUint(uint64(gen), 10))

	seeds := newSeedManager(cfg.Seeds, cfg.Logger, store.metrics)
	eng := newEngine(store, t, seeds)

	ctx, cancel := context.WithCancel(context.Background())

	c.cfg = cfg
	c.store = store
	c.transport = t
	c.seeds = seeds
	c.engine = eng
	c.cancel = cancel
	c.started = true

	go t.serveLoop()
	go eng.run(ctx)

	cfg.Logger.Info("coordinator started",
		zap.String("node_id", string(cfg.NodeID)),
		zap.String("listen_addr", t.localAddr().String()),
		zap.Uint64("generation", uint64(gen)),
		zap.Strings("seeds", cfg.Seeds))

	return nil
}

// SetMetadata writes key=value to the local node's KV store. It never
// fails; a write to a reserved key is logged and silently ignored rather
// than returned as an error, preserving the "never fails" contract of
// spec §4.7 while still protecting protocol-owned keys.
func (c *Coordinator) SetMetadata(key, value string) {
	if IsReservedKey(key) || key == KeyHeartbeat || key == KeyGeneration {
		c.store.logger().Warn("ignoring write to reserved key", zap.String("key", key))
		return
	}
	c.store.Set(key, value)
}

// DeleteMetadata tombstones key on the local node (spec §4.1 delete).
func (c *Coordinator) DeleteMetadata(key string) {
	if IsReservedKey(key) || key == KeyHeartbeat || key == KeyGeneration {
		c.store.logger().Warn("ignoring delete of reserved key", zap.String("key", key))
		return
	}
	c.store.Delete(key)
}

// GetMetadata performs a point lookup in ClusterState for (node, key).
func (c *Coordinator) GetMetadata(node NodeID, key string) (string, bool) {
	return c.store.Get(node, key)
}

// LiveNodes returns the current MembershipView: a cheap, immutable
// snapshot handle (spec §4.7).
func (c *Coordinator) LiveNodes() MembershipView {
	return c.store.liveNodesSnapshot()
}

// MyIndex is a convenience wrapper over LiveNodes that reports the local
// node's position, or false if self has not yet appeared in the view.
func (c *Coordinator) MyIndex() (int, bool) {
	v := c.store.liveNodesSnapshot()
	if v.SelfIndex < 0 {
		return 0, false
	}
	return v.SelfIndex, true
}

// Subscribe returns a stream of MembershipView snapshots. Slow consumers
// see only the latest snapshot after any gap, never a backlog (spec
// §4.6).
func (c *Coordinator) Subscribe() Subscription {
	return c.store.membershipCh.subscribeNew()
}

// Shutdown closes the socket, stops the tick, and issues a final
// tombstone on the reserved status key, best-effort (spec §4.7). It is
// safe to call more than once.
func (c *Coordinator) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}

	c.store.Delete(KeyStatus)
	// Best-effort: one last round to try to push the tombstone out
	// before the socket goes away. UDP gives no delivery guarantee here,
	// which is acceptable per spec §4.7 ("best-effort").
	c.engine.tick()

	err := c.engine.stop()
	if closeErr := c.transport.close(); closeErr != nil && err == nil {
		err = closeErr
	}
	c.store.membershipCh.close()
	c.cancel()
	c.started = false

	c.cfg.Logger.Info("coordinator stopped", zap.String("node_id", string(c.cfg.NodeID)))
	return err
}
