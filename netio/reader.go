// Package netio implements the UDP transport: DataReader receives and
// decodes datagrams into Packets, and Writer sends Packets and runs the
// acknowledge-and-resend protocol.
package netio

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oharbase/processornode/buffer"
	"github.com/oharbase/processornode/errors"
	"github.com/oharbase/processornode/metric"
	"github.com/oharbase/processornode/packet"
	"github.com/oharbase/processornode/retry"
)

const maxDatagramSize = 4096

// Observer receives notifications from a DataReader: ReceivedData fires
// whenever one or more packets have been enqueued, ErrorInData fires when
// a datagram failed to decode.
type Observer interface {
	ReceivedData()
	ErrorInData(message string)
}

// DataReader listens on a UDP port, decodes each datagram as a Packet,
// stamps it with an origin, and enqueues it for the owning Node to drain.
type DataReader struct {
	name      string
	addr      string
	reuseAddr bool
	observer  Observer
	metrics   *metric.Metrics
	log       *slog.Logger

	conn    *net.UDPConn
	inbound buffer.Buffer[packet.Packet]

	useAcks bool
	running atomic.Bool
	mu      sync.Mutex
	shutdown chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewDataReader returns a DataReader bound to addr ("host:port") once
// started. reuseAddr enables SO_REUSEADDR, used for the dedicated
// configuration reader so multiple co-located nodes can share a port.
// Whether several processes can actually bind the same UDP port this way
// depends on the operating system; it is not exercised by the tests here.
//
// The inbound queue uses the Block overflow policy rather than dropping:
// a dropped Data packet would never be acked, so its sender would keep
// resending it.
func NewDataReader(name, addr string, reuseAddr bool, observer Observer, metrics *metric.Metrics, log *slog.Logger) *DataReader {
	if log == nil {
		log = slog.Default()
	}
	return &DataReader{
		name:      name,
		addr:      addr,
		reuseAddr: reuseAddr,
		observer:  observer,
		metrics:   metrics,
		log:       log.With("component", "DataReader", "name", name),
		inbound:   buffer.NewCircularBuffer[packet.Packet](1024, buffer.WithOverflowPolicy[packet.Packet](buffer.Block)),
	}
}

// Start binds the socket (retrying transient failures) and spawns the
// receive loop.
func (r *DataReader) Start(ctx context.Context, useAcks bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "DataReader", "Start", r.name)
	}

	r.useAcks = useAcks
	r.shutdown = make(chan struct{})
	r.done = make(chan struct{})

	bind := func() error {
		return r.bind()
	}
	if err := retry.Do(ctx, retry.Quick(), bind); err != nil {
		return errors.WrapTransient(err, "DataReader", "Start", "bind "+r.addr)
	}

	r.running.Store(true)
	r.wg.Add(1)
	go r.readLoop(ctx)
	return nil
}

func (r *DataReader) bind() error {
	udpAddr, err := net.ResolveUDPAddr("udp", r.addr)
	if err != nil {
		return err
	}

	if !r.reuseAddr {
		conn, err := net.ListenUDP("udp", udpAddr)
		if err != nil {
			return err
		}
		r.conn = conn
		return nil
	}

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	pconn, err := lc.ListenPacket(context.Background(), "udp", r.addr)
	if err != nil {
		return err
	}
	conn, ok := pconn.(*net.UDPConn)
	if !ok {
		_ = pconn.Close()
		return errors.WrapFatal(errors.ErrBadDatagram, "DataReader", "bind", "listener is not a UDP connection")
	}
	r.conn = conn
	return nil
}

// Stop cancels the pending receive and closes the socket. Idempotent.
func (r *DataReader) Stop() error {
	if !r.running.CompareAndSwap(true, false) {
		return nil
	}

	r.mu.Lock()
	close(r.shutdown)
	if r.conn != nil {
		_ = r.conn.Close()
	}
	r.mu.Unlock()

	r.wg.Wait()
	_ = r.inbound.Close()
	return nil
}

// Read pops the oldest enqueued Packet, or returns an empty Packet if the
// inbound queue has nothing ready.
func (r *DataReader) Read() packet.Packet {
	p, ok := r.inbound.Read()
	if !ok {
		return packet.Empty()
	}
	return p
}

// QueueSize reports how many packets are waiting to be drained, for
// metrics.
func (r *DataReader) QueueSize() int {
	return r.inbound.Size()
}

func (r *DataReader) readLoop(ctx context.Context) {
	defer r.wg.Done()
	defer close(r.done)

	buf := make([]byte, maxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.shutdown:
			return
		default:
		}

		r.mu.Lock()
		conn := r.conn
		r.mu.Unlock()
		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-r.shutdown:
				return
			default:
				continue
			}
		}

		r.handleDatagram(buf[:n], remote)
	}
}

func (r *DataReader) handleDatagram(data []byte, remote *net.UDPAddr) {
	var p packet.Packet
	if err := json.Unmarshal(data, &p); err != nil {
		if r.metrics != nil {
			r.metrics.RecordBadDatagram()
		}
		if r.observer != nil {
			r.observer.ErrorInData("failed to decode datagram from " + remote.String() + ": " + err.Error())
		}
		return
	}

	p.SetOrigin(remote.IP.String() + ":" + originPort(&p, remote))
	if err := r.inbound.Write(p); err != nil {
		r.log.Warn("failed to enqueue received packet", "error", err)
		return
	}
	if r.metrics != nil {
		r.metrics.RecordPacketReceived(r.name)
		r.metrics.UpdateQueueDepth(r.name, r.inbound.Size())
	}

	if r.useAcks && p.Kind() == packet.Data {
		ack := packet.NewWithID(p.ID(), packet.Ack, "ack")
		ack.SetDestination(p.Origin())
		if err := r.inbound.Write(ack); err != nil {
			r.log.Warn("failed to enqueue synthesized ack", "error", err)
		}
	}

	if r.observer != nil {
		r.observer.ReceivedData()
	}
}

// originPort reports the port to stamp a received packet's origin with: the
// payload's own originatingListenPort field if it carries one, else the UDP
// source port the datagram actually arrived from.
func originPort(p *packet.Packet, remote *net.UDPAddr) string {
	var fields struct {
		OriginatingListenPort string `json:"originatingListenPort"`
	}
	if err := json.Unmarshal([]byte(p.PayloadString()), &fields); err == nil && fields.OriginatingListenPort != "" {
		return fields.OriginatingListenPort
	}
	return strconv.Itoa(remote.Port)
}
