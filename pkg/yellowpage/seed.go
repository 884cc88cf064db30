package yellowpage

import (
	"net"
	"time"

	"go.uber.org/zap"
)

// backoffStrategy is an exponential backoff with a cap, adapted from the
// teacher repo's distributed-queue/pkg/wait/backoff.go, used here to
// space out retries of seed addresses whose DNS resolution is currently
// failing (spec §4.8 "retried on the next tick, no permanent failure").
type backoffStrategy struct {
	initialDuration time.Duration
	factor          float32
	durationCap     time.Duration

	duration       time.Duration
	nextActivation time.Time
}

func newBackoff(base time.Duration, factor float32, cap time.Duration) *backoffStrategy {
	return &backoffStrategy{initialDuration: base, factor: factor, durationCap: cap}
}

func (b *backoffStrategy) backoff(now time.Time) {
	b.duration = b.initialDuration + time.Duration(float32(b.duration)*b.factor)
	if b.duration > b.durationCap {
		b.duration = b.durationCap
	}
	b.nextActivation = now.Add(b.duration)
}

// active reports whether the backoff timeout has expired and it is ok to
// retry the operation.
func (b *backoffStrategy) active(now time.Time) bool {
	return b.nextActivation.IsZero() || now.After(b.nextActivation)
}

func (b *backoffStrategy) reset() {
	b.duration = 0
	b.nextActivation = time.Time{}
}

// seedManager resolves the configured seed list lazily: a seed whose
// name resolution fails is not fatal (spec §7 SeedResolutionFailure is
// explicitly transient, never surfaced) and is simply retried on a later
// tick once its own backoff expires, so one unreachable seed never spams
// resolution attempts every single round.
type seedManager struct {
	addrs    []string
	backoffs map[string]*backoffStrategy
	logger   *zap.Logger
	metrics  *metrics
}

func newSeedManager(addrs []string, logger *zap.Logger, m *metrics) *seedManager {
	sm := &seedManager{
		addrs:    addrs,
		backoffs: make(map[string]*backoffStrategy, len(addrs)),
		logger:   logger,
		metrics:  m,
	}
	for _, a := range addrs {
		sm.backoffs[a] = newBackoff(defaultSeedResolveBackoffBase, 2.0, defaultSeedResolveBackoffCap)
	}
	return sm
}

// resolvable returns the subset of configured seeds that resolve right
// now, skipping any currently in backoff from a prior failed attempt.
func (sm *seedManager) resolvable(now time.Time) []string {
	var out []string
	for _, a := range sm.addrs {
		b := sm.backoffs[a]
		if !b.active(now) {
			continue
		}
		if _, err := net.ResolveUDPAddr("udp", a); err != nil {
			sm.logger.Debug("seed resolution failed, will retry later",
				zap.String("seed", a), zap.Error(err))
			sm.metrics.incSeedResolveFailures()
			b.backoff(now)
			continue
		}
		b.reset()
		out = append(out, a)
	}
	return out
}

// hasUnresolved reports whether any configured seed is currently unknown
// to the gossip engine's membership view, i.e. whether bootstrap contact
// is still warranted regardless of current liveness (spec §4.4 step 2).
func (sm *seedManager) hasUnresolved(knownAddrs map[string]struct{}) bool {
	for _, a := range sm.addrs {
		if _, ok := knownAddrs[a]; !ok {
			return true
		}
	}
	return false
}
