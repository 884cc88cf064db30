package yellowpage

import (
	"fmt"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Reserved key names. Local nodes write these; peers only ever read them.
const (
	// KeyHeartbeat is bumped by one on every gossip tick and is the
	// phi-accrual detector's only signal.
	KeyHeartbeat = "heartbeat"
	// KeyGeneration mirrors the NodeState's Generation for diagnostics.
	KeyGeneration = "generation"
	// KeyStatus carries a final tombstone written on graceful shutdown.
	KeyStatus = "status"

	// reservedPrefix may not be used as a prefix of a user-supplied key.
	reservedPrefix = "_zuk:"

	// keyAddr carries the UDP address peers should dial to reach this
	// node. It lives under the reserved prefix: address advertisement is
	// protocol bookkeeping, not spec.md's named heartbeat/generation
	// diagnostics, but needs the same write-once-at-startup,
	// read-only-to-replicas treatment.
	keyAddr = reservedPrefix + "addr"
)

const (
	defaultGossipInterval         = 500 * time.Millisecond
	defaultGossipJitter           = 0.10
	defaultArrivalWindowCapacity  = 1000
	defaultPhiSuspectThreshold    = 8.0
	defaultPhiDeadThreshold       = 12.0
	defaultMTUBudget              = 60_000
	defaultDeadNodeGrace          = 24 * time.Hour
	defaultBootstrapInterval      = 500 * time.Millisecond
	defaultMinStdDev              = 100 * time.Millisecond
	maxKeyLen                     = 256
	maxValueLen                   = 4096
	defaultSeedResolveBackoffBase = 250 * time.Millisecond
	defaultSeedResolveBackoffCap  = 30 * time.Second
)

// Config collects every tunable of a Coordinator instance. Zero-valued
// fields are filled in with defaults by Start except for NodeID and
// ListenAddr, which are required.
type Config struct {
	// NodeID is a non-empty, process-lifetime-unique identifier. Required.
	NodeID NodeID
	// ListenAddr is the UDP address to bind, e.g. "0.0.0.0:7890". Required.
	ListenAddr string
	// Seeds is a list of "host:port" strings contacted at startup and
	// whenever the cluster has no known live peers. May be empty.
	Seeds []string

	GossipInterval        time.Duration
	GossipFanoutLive      int
	GossipFanoutDead      int
	GossipFanoutSeed      int
	PhiSuspectThreshold   float64
	PhiDeadThreshold      float64
	ArrivalWindowCapacity int
	MTUBudget             int
	DeadNodeGrace         time.Duration
	BootstrapInterval     time.Duration

	// Registry, when non-nil, receives the library's Prometheus collectors.
	// A nil Registry disables metrics registration entirely; the
	// instruments are still updated in memory, just never exported.
	Registry *prometheus.Registry

	// Logger receives structured diagnostics. A nil Logger falls back to
	// zap.NewNop(), matching the rest of the ambient stack's convention
	// of always carrying a non-nil logger.
	Logger *zap.Logger
}

// withDefaults returns a copy of c with zero-valued optional fields filled
// in, and validates the required ones.
func (c Config) withDefaults() (Config, error) {
	if len(c.NodeID) == 0 {
		return c, fmt.Errorf("%w: node_id must not be empty", ErrInvalidConfig)
	}
	if len(c.ListenAddr) == 0 {
		return c, fmt.Errorf("%w: listen_addr must not be empty", ErrInvalidConfig)
	}
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return c, fmt.Errorf("%w: listen_addr must be host:port: %v", ErrInvalidConfig, err)
	}

	if c.GossipInterval <= 0 {
		c.GossipInterval = defaultGossipInterval
	}
	if c.GossipFanoutLive == 0 && c.GossipFanoutDead == 0 && c.GossipFanoutSeed == 0 {
		c.GossipFanoutLive, c.GossipFanoutDead, c.GossipFanoutSeed = 1, 1, 1
	}
	if c.PhiSuspectThreshold == 0 {
		c.PhiSuspectThreshold = defaultPhiSuspectThreshold
	}
	if c.PhiDeadThreshold == 0 {
		c.PhiDeadThreshold = defaultPhiDeadThreshold
	}
	if c.PhiDeadThreshold <= c.PhiSuspectThreshold {
		return c, fmt.Errorf("%w: phi_dead_threshold must be greater than phi_suspect_threshold", ErrInvalidConfig)
	}
	if c.ArrivalWindowCapacity <= 0 {
		c.ArrivalWindowCapacity = defaultArrivalWindowCapacity
	}
	if c.MTUBudget <= 0 {
		c.MTUBudget = defaultMTUBudget
	}
	if c.DeadNodeGrace <= 0 {
		c.DeadNodeGrace = defaultDeadNodeGrace
	}
	if c.BootstrapInterval <= 0 {
		c.BootstrapInterval = defaultBootstrapInterval
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c, nil
}
