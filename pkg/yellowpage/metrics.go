package yellowpage

import "github.com/prometheus/client_golang/prometheus"

// metrics bundles every Prometheus collector the library emits. Grounded
// on SpechtLabs-tka/pkg/operator/metrics.go's package-level-vars-plus-
// explicit-registration shape, adapted so a library (not a standalone
// process) never forces global registration: a caller-supplied
// *prometheus.Registry opts in, a nil Registry just means the counters
// tick in memory and are never scraped.
type metrics struct {
	gossipRounds        prometheus.Counter
	frameDecodeErrors   prometheus.Counter
	deltaTruncations    prometheus.Counter
	deltaTooLarge       prometheus.Counter
	phi                 *prometheus.GaugeVec
	liveNodes           prometheus.Gauge
	seedResolveFailures prometheus.Counter
}

func newMetrics(reg *prometheus.Registry) *metrics {
	m := &metrics{
		gossipRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yellowpage_gossip_rounds_total",
			Help: "Total number of gossip rounds initiated by this node.",
		}),
		frameDecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yellowpage_frame_decode_errors_total",
			Help: "Total number of malformed incoming datagrams dropped.",
		}),
		deltaTruncations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yellowpage_delta_truncations_total",
			Help: "Total number of outgoing deltas truncated to fit the mtu budget.",
		}),
		deltaTooLarge: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yellowpage_delta_entry_dropped_total",
			Help: "Total number of KV entries dropped for exceeding the mtu budget on their own.",
		}),
		phi: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "yellowpage_phi",
			Help: "Current phi-accrual suspicion value per known peer.",
		}, []string{"node"}),
		liveNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yellowpage_live_nodes",
			Help: "Current number of nodes with a Live verdict, including self.",
		}),
		seedResolveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yellowpage_seed_resolve_failures_total",
			Help: "Total number of seed address resolution failures, retried on the next tick.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.gossipRounds, m.frameDecodeErrors, m.deltaTruncations,
			m.deltaTooLarge, m.phi, m.liveNodes, m.seedResolveFailures,
		)
	}
	return m
}

func (m *metrics) incGossipRounds()        { m.gossipRounds.Inc() }
func (m *metrics) incFrameDecodeErrors()   { m.frameDecodeErrors.Inc() }
func (m *metrics) incDeltaTruncations()    { m.deltaTruncations.Inc() }
func (m *metrics) incDeltaTooLarge()       { m.deltaTooLarge.Inc() }
func (m *metrics) incSeedResolveFailures() { m.seedResolveFailures.Inc() }

func (m *metrics) setPhi(node NodeID, phi float64) {
	m.phi.WithLabelValues(string(node)).Set(phi)
}

func (m *metrics) setLiveNodes(n int) {
	m.liveNodes.Set(float64(n))
}
