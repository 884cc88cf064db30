package yellowpage

import (
	"errors"
	"net"

	"go.uber.org/zap"
)

// maxDatagramSize bounds the reusable receive buffer. It must be large
// enough to hold any datagram built up to the configured MTU budget.
const maxDatagramSize = 65535

// inboundFrame pairs a decoded gossip message with the address it
// arrived from, so the engine knows who to reply to.
type inboundFrame struct {
	addr string
	kind frameKind
	msg  any
}

// transport is the unreliable, fire-and-forget UDP layer gossip rounds
// ride on (spec §4.3). Grounded on the teacher's sibling dns/udp.go
// module (net.ListenUDP, ReadFromUDP/WriteToUDP, a dedicated receive
// goroutine reading into one reusable buffer) in place of the gossip
// module's own net/rpc-over-TCP transport, per spec §9's UDP/TCP open
// question resolved in favor of UDP.
type transport struct {
	conn    *net.UDPConn
	logger  *zap.Logger
	metrics *metrics
	recvCh  chan inboundFrame
}

// newTransport binds a UDP socket at listenAddr. A bind failure is
// BindError (spec §7) and is fatal to the instance.
func newTransport(listenAddr string, logger *zap.Logger, m *metrics) (*transport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, errors.Join(ErrBindFailed, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, errors.Join(ErrBindFailed, err)
	}
	return &transport{
		conn:    conn,
		logger:  logger,
		metrics: m,
		recvCh:  make(chan inboundFrame, 64),
	}, nil
}

// localAddr returns the bound address, including the OS-assigned port
// when listenAddr requested an ephemeral one (":0").
func (t *transport) localAddr() *net.UDPAddr {
	return t.conn.LocalAddr().(*net.UDPAddr)
}

// serveLoop reads datagrams until the socket is closed, decoding each
// into a frame and handing it to recvCh. Malformed datagrams are
// silently dropped and counted (spec §4.3, §7 FrameDecodeError); the
// loop itself never panics or exits on a single bad frame.
func (t *transport) serveLoop() {
	defer close(t.recvCh)

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			// the socket was closed by Shutdown; this is the only exit.
			return
		}

		raw := make([]byte, n)
		copy(raw, buf[:n])

		msg, err := decodeMessage(raw)
		if err != nil {
			t.metrics.incFrameDecodeErrors()
			t.logger.Debug("dropping malformed gossip frame",
				zap.String("peer", addr.String()), zap.Error(err))
			continue
		}

		kind, _, _ := decodeFrame(raw)
		select {
		case t.recvCh <- inboundFrame{addr: addr.String(), kind: kind, msg: msg}:
		default:
			t.logger.Debug("dropping gossip frame: receive queue full",
				zap.String("peer", addr.String()))
		}
	}
}

// send transmits payload to addr best-effort: no retries, no delivery
// confirmation. Reliability emerges from the next gossip round's digest
// exchange, not from this layer (spec §4.3).
func (t *transport) send(addr string, payload []byte) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	_, err = t.conn.WriteToUDP(payload, udpAddr)
	return err
}

func (t *transport) close() error {
	return t.conn.Close()
}
