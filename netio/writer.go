package netio

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oharbase/processornode/errors"
	"github.com/oharbase/processornode/metric"
	"github.com/oharbase/processornode/packet"
)

// DefaultResendInterval is how long the Writer waits after its last send
// before resending everything still unacknowledged.
const DefaultResendInterval = 10 * time.Second

const ackPayload = "ack"

// Writer owns the outbound queue, sends Packets to their destination (or
// the configured default next hop), and runs the acknowledge-and-resend
// protocol when acks are enabled.
type Writer struct {
	name          string
	defaultTarget string
	conn          *net.UDPConn
	resendInterval time.Duration
	metrics       *metric.Metrics
	log           *slog.Logger

	useAcks bool
	running atomic.Bool

	mu          sync.Mutex
	outbound    []packet.Packet
	sentUnacked []packet.Packet
	signal      chan struct{}
	shutdown    chan struct{}
	done        chan struct{}
	wg          sync.WaitGroup
}

// NewWriter returns a Writer that sends to defaultTarget ("host:port")
// unless a Packet carries its own destination.
func NewWriter(name, defaultTarget string, metrics *metric.Metrics, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{
		name:           name,
		defaultTarget:  defaultTarget,
		resendInterval: DefaultResendInterval,
		metrics:        metrics,
		log:            log.With("component", "Writer", "name", name),
		signal:         make(chan struct{}, 1),
	}
}

// Start opens a UDP socket for sending and spawns the send loop.
func (w *Writer) Start(ctx context.Context, useAcks bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Writer", "Start", w.name)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return errors.WrapTransient(err, "Writer", "Start", "open send socket")
	}
	w.conn = conn
	w.useAcks = useAcks
	w.shutdown = make(chan struct{})
	w.done = make(chan struct{})

	w.running.Store(true)
	w.wg.Add(1)
	go w.sendLoop(ctx)
	return nil
}

// Stop signals the send loop to exit, waits for it, then closes the socket.
// Packets still queued for sending when the loop exits are not sent.
func (w *Writer) Stop() error {
	if !w.running.CompareAndSwap(true, false) {
		return nil
	}

	w.mu.Lock()
	close(w.shutdown)
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	if w.conn != nil {
		_ = w.conn.Close()
	}
	w.mu.Unlock()
	return nil
}

// Write enqueues pkt for sending and wakes the send loop.
func (w *Writer) Write(pkt packet.Packet) error {
	w.mu.Lock()
	if !w.running.Load() {
		w.mu.Unlock()
		return errors.WrapInvalid(errors.ErrNotStarted, "Writer", "Write", w.name)
	}
	w.outbound = append(w.outbound, pkt)
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
	return nil
}

// QueueSize reports the combined outbound and unacked queue lengths, for
// metrics.
func (w *Writer) QueueSize() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.outbound) + len(w.sentUnacked)
}

func (w *Writer) sendLoop(ctx context.Context) {
	defer w.wg.Done()
	defer close(w.done)

	timer := time.NewTimer(w.resendInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case <-timer.C:
			w.requeueUnacked()
			timer.Reset(w.resendInterval)
			continue
		case <-w.signal:
		}

		for {
			pkt, ok := w.popOutbound()
			if !ok {
				break
			}
			if w.handleOne(pkt) {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.resendInterval)
			}
		}
	}
}

func (w *Writer) popOutbound() (packet.Packet, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.outbound) == 0 {
		return packet.Packet{}, false
	}
	pkt := w.outbound[0]
	w.outbound = w.outbound[1:]
	return pkt, true
}

func (w *Writer) requeueUnacked() {
	w.mu.Lock()
	if len(w.sentUnacked) == 0 {
		w.mu.Unlock()
		return
	}
	w.outbound = append(w.sentUnacked, w.outbound...)
	w.sentUnacked = nil
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.RecordResend()
	}
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// handleOne processes one popped outbound packet and reports whether it
// performed a network send — only a real send resets the resend timer.
func (w *Writer) handleOne(pkt packet.Packet) bool {
	if w.useAcks && pkt.Kind() == packet.Ack && !pkt.HasDestination() {
		w.removeUnacked(pkt.ID(), pkt.PayloadString() == ackPayload)
		return false
	}

	target := pkt.Destination()
	if target == "" {
		target = w.defaultTarget
	}
	if target == "" {
		w.log.Warn("dropping packet with no destination and no default target", "id", pkt.ID())
		if w.metrics != nil {
			w.metrics.RecordPacketDropped("no_destination")
		}
		return false
	}

	if err := w.send(target, pkt); err != nil {
		w.log.Warn("send failed", "id", pkt.ID(), "target", target, "error", err)
		if w.metrics != nil {
			w.metrics.RecordPacketDropped("send_failed")
		}
		return false
	}

	if w.metrics != nil {
		w.metrics.RecordPacketSent(w.name, pkt.Kind().String())
	}

	if pkt.Kind() == packet.Data {
		w.mu.Lock()
		w.sentUnacked = append(w.sentUnacked, pkt)
		w.mu.Unlock()
	}
	return true
}

// removeUnacked removes the sentUnacked entry matching id, provided the
// incoming Ack's payload was the literal "ack" string. A non-"ack"
// payload leaves the entry in place — nacks are not currently removed
// (see Open Question (b) in the design notes).
func (w *Writer) removeUnacked(id string, isAck bool) {
	if !isAck {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, p := range w.sentUnacked {
		if p.ID() != id {
			continue
		}
		w.sentUnacked = append(w.sentUnacked[:i], w.sentUnacked[i+1:]...)
		if w.metrics != nil {
			w.metrics.RecordAckReceived()
		}
		return
	}
}

func (w *Writer) send(target string, pkt packet.Packet) error {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return errors.WrapInvalid(err, "Writer", "send", "resolve target "+target)
	}

	body, err := json.Marshal(pkt)
	if err != nil {
		return errors.WrapInvalid(err, "Writer", "send", "marshal packet")
	}

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return errors.WrapInvalid(errors.ErrNotStarted, "Writer", "send", w.name)
	}

	if _, err := conn.WriteToUDP(body, addr); err != nil {
		return errors.WrapTransient(err, "Writer", "send", "write datagram")
	}
	return nil
}
