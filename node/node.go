// Package node wires together a configuration, a handler chain, and the
// UDP transport into a running pipes-and-filters Node: the runtime that
// reads packets from the network, offers them to a handler chain, and
// writes the results on to the next node.
package node

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oharbase/processornode/errors"
	"github.com/oharbase/processornode/handler"
	"github.com/oharbase/processornode/metric"
	"github.com/oharbase/processornode/netio"
	"github.com/oharbase/processornode/nodeconfig"
	"github.com/oharbase/processornode/packet"
)

// shutdownPause is how long the node waits after forwarding a shutdown
// packet (an inbound one, or one sent for the local "shutdown" command)
// before stopping, to give the writer a chance to flush it.
const shutdownPause = 200 * time.Millisecond

// commandQueueSize bounds the number of pending commands the command loop
// has not yet processed.
const commandQueueSize = 8

// defaultShutdownTimeout bounds how long a self-initiated shutdown (local
// "quit"/"shutdown" command, or a peer-initiated shutdown packet) waits for
// the worker loops to exit before giving up on a graceful stop.
const defaultShutdownTimeout = 5 * time.Second

// Observer is the embedding application's view into a Node: UI-facing
// notifications distinct from the internal netio.Observer wiring used
// between a Node and its DataReaders.
type Observer interface {
	// ShowMessage surfaces a routine notification (e.g. "ping sent").
	ShowMessage(message string)
	// LogAndShowMessage surfaces a warning-level notification, such as a
	// datagram that failed to decode.
	LogAndShowMessage(message string)
	// InitiateShutdown is called when a peer-initiated shutdown packet
	// has brought this Node down, so the embedding application can exit.
	InitiateShutdown()
}

// Node is the running instance of a single pipeline stage.
type Node struct {
	name   string
	config *nodeconfig.Configuration

	dataReader   *netio.DataReader
	configReader *netio.DataReader
	writer       *netio.Writer
	configWriter *netio.Writer

	chain   *handler.Chain
	useAck  bool
	metrics *metric.Metrics
	log     *slog.Logger
	obs     Observer

	incoming chan struct{}
	command  chan string

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	done    chan struct{}

	peerInitiatedShutdown atomic.Bool
}

// New returns an unconfigured Node. Call Configure before Start.
func New(metrics *metric.Metrics, log *slog.Logger, obs Observer) *Node {
	if log == nil {
		log = slog.Default()
	}
	return &Node{
		metrics:  metrics,
		log:      log,
		obs:      obs,
		incoming: make(chan struct{}, 1),
		command:  make(chan string, commandQueueSize),
		chain:    handler.NewChain(),
		done:     make(chan struct{}),
	}
}

// AddHandlers appends user-supplied handlers after the built-in
// PingHandler and ConfigurationHandler. Must be called before Configure.
func (n *Node) AddHandlers(handlers ...handler.Handler) {
	n.chain.Append(handlers...)
}

// Configure reads the configuration file at path and wires up the
// components it describes: a DataReader for "input", a dedicated
// configuration DataReader for "config-in", a Writer for "output" (or a
// configWriter if only "config-in" is set), and the built-in handlers.
func (n *Node) Configure(path string) error {
	cfg, err := nodeconfig.LoadFile(path)
	if err != nil {
		return errors.WrapFatal(err, "Node", "Configure", "load configuration file")
	}
	n.config = cfg

	if name, ok := cfg.Value("name"); ok {
		n.name = name
	}

	n.useAck = false
	if v, ok := cfg.Value("use-ack"); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			n.useAck = parsed
		}
	}

	if addr, ok := cfg.Value(nodeconfig.InputAddress); ok && addr != "" {
		n.dataReader = netio.NewDataReader(n.name+"-data", addr, false, n, n.metrics, n.log)
	}
	if addr, ok := cfg.Value("config-in"); ok && addr != "" {
		n.configReader = netio.NewDataReader(n.name+"-config", addr, true, n, n.metrics, n.log)
	}
	if addr, ok := cfg.Value(nodeconfig.OutputAddress); ok && addr != "" {
		n.writer = netio.NewWriter(n.name+"-writer", addr, n.metrics, n.log)
	} else if n.configReader != nil {
		n.configWriter = netio.NewWriter(n.name+"-configwriter", "", n.metrics, n.log)
	}

	// Built-in handlers are appended directly to the chain that will become
	// n.chain, rather than assembled in a separate slice first, because
	// FileReadHandler needs a reference to that same chain to pass the
	// packets it generates on to whatever handler follows it (e.g.
	// EncryptHandler).
	merged := handler.NewChain()
	merged.Append(handler.NewPingHandler(n, n.log), handler.NewConfigurationHandler(n, n.log))
	if _, ok := cfg.Value(nodeconfig.InputFile); ok {
		merged.Append(handler.NewFileReadHandler(n, merged, n.log))
	}
	if mode, ok := cfg.Value("encrypt"); ok {
		encMode := handler.Encrypt
		if mode == "decrypt" {
			encMode = handler.Decrypt
		}
		merged.Append(handler.NewEncryptHandler(encMode))
	}
	merged.Append(n.chain.Handlers()...)
	n.chain = merged

	return nil
}

// NodeName returns the node's logical name, satisfying handler.ConfigNode.
func (n *Node) NodeName() string { return n.name }

// Configuration returns the node's current configuration, satisfying
// handler.ConfigNode.
func (n *Node) Configuration() *nodeconfig.Configuration { return n.config }

// Start starts every configured reader/writer and spawns the dispatch and
// command worker loops.
func (n *Node) Start(ctx context.Context) error {
	if !n.running.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Node", "Start", n.name)
	}

	n.ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})

	type starter struct {
		name string
		fn   func(context.Context, bool) error
	}
	var starters []starter
	if n.dataReader != nil {
		starters = append(starters, starter{"dataReader", n.dataReader.Start})
	}
	if n.configReader != nil {
		starters = append(starters, starter{"configReader", n.configReader.Start})
	}
	if n.writer != nil {
		starters = append(starters, starter{"writer", n.writer.Start})
	}
	if n.configWriter != nil {
		starters = append(starters, starter{"configWriter", n.configWriter.Start})
	}

	for _, s := range starters {
		if err := s.fn(n.ctx, n.useAck); err != nil {
			n.running.Store(false)
			return errors.WrapTransient(err, "Node", "Start", "start "+s.name)
		}
	}

	n.wg.Add(2)
	go n.dispatchLoop()
	go n.commandLoop()
	return nil
}

// Stop stops the worker loops and every reader/writer, bounded by timeout.
func (n *Node) Stop(timeout time.Duration) error {
	if !n.running.CompareAndSwap(true, false) {
		return nil
	}

	n.cancel()

	waitDone := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(timeout):
		n.log.Warn("stop timed out waiting for worker loops", "node", n.name)
	}

	if n.dataReader != nil {
		_ = n.dataReader.Stop()
	}
	if n.configReader != nil {
		_ = n.configReader.Stop()
	}
	if n.writer != nil {
		_ = n.writer.Stop()
	}
	if n.configWriter != nil {
		_ = n.configWriter.Stop()
	}

	close(n.done)
	return nil
}

// Done returns a channel closed once the Node has fully stopped, whether
// stopped locally (HandleCommand("quit")) or via an inbound shutdown
// packet.
func (n *Node) Done() <-chan struct{} {
	return n.done
}

// SendData routes pkt to the writer, falling back to the configWriter for
// Configuration replies when the node has no data writer, else drops it.
func (n *Node) SendData(pkt packet.Packet) {
	if n.writer != nil {
		if err := n.writer.Write(pkt); err != nil {
			n.log.Warn("failed to enqueue outbound packet", "id", pkt.ID(), "error", err)
		}
		return
	}
	if n.configWriter != nil && pkt.Kind() == packet.Configuration {
		if err := n.configWriter.Write(pkt); err != nil {
			n.log.Warn("failed to enqueue outbound configuration packet", "id", pkt.ID(), "error", err)
		}
		return
	}
	n.log.Debug("dropping packet: no writer available", "id", pkt.ID(), "kind", pkt.Kind())
	if n.metrics != nil {
		n.metrics.RecordPacketDropped("no_writer")
	}
}

// HandleCommand queues cmd for the command loop: "ping", "readfile",
// "quit", or "shutdown".
func (n *Node) HandleCommand(cmd string) {
	select {
	case n.command <- cmd:
	default:
		n.log.Warn("command queue full, dropping command", "command", cmd)
	}
}

// ReceivedData implements netio.Observer: wakes the dispatch loop.
func (n *Node) ReceivedData() {
	select {
	case n.incoming <- struct{}{}:
	default:
	}
}

// ErrorInData implements netio.Observer: a datagram failed to decode.
func (n *Node) ErrorInData(message string) {
	n.log.Warn("bad datagram received", "node", n.name, "message", message)
	if n.obs != nil {
		n.obs.LogAndShowMessage(message)
	}
}

func (n *Node) dispatchLoop() {
	defer n.wg.Done()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-n.incoming:
			if n.configReader != nil {
				n.HandlePackagesFrom(n.configReader)
				if n.metrics != nil {
					n.metrics.UpdateQueueDepth(n.name+"-config", n.configReader.QueueSize())
				}
			}
			if n.dataReader != nil {
				n.HandlePackagesFrom(n.dataReader)
				if n.metrics != nil {
					n.metrics.UpdateQueueDepth(n.name+"-data", n.dataReader.QueueSize())
				}
			}
		}
	}
}

// HandlePackagesFrom drains reader until it yields an empty packet,
// routing each to the writer (Ack), triggering local shutdown (Control
// "shutdown"), or the handler chain (everything else).
func (n *Node) HandlePackagesFrom(reader *netio.DataReader) {
	for {
		pkt := reader.Read()
		if pkt.IsEmpty() {
			return
		}

		if pkt.Kind() == packet.Control && pkt.PayloadString() == "shutdown" {
			n.SendData(pkt.Clone())
			time.Sleep(shutdownPause)
			n.peerInitiatedShutdown.Store(true)
			n.HandleCommand("quit")
			return
		}

		if pkt.Kind() == packet.Ack {
			n.SendData(pkt)
			continue
		}

		start := time.Now()
		func() {
			defer func() {
				if r := recover(); r != nil {
					n.log.Error("handler panicked, skipping remaining handlers",
						"id", pkt.ID(), "error", errors.ErrHandlerPanicked, "panic", r)
				}
			}()
			n.chain.Dispatch(&pkt)
		}()
		if n.metrics != nil {
			n.metrics.RecordHandlerDuration(n.name, time.Since(start))
		}
	}
}

func (n *Node) commandLoop() {
	defer n.wg.Done()
	for {
		select {
		case <-n.ctx.Done():
			return
		case cmd := <-n.command:
			if n.runCommand(cmd) {
				return
			}
		}
	}
}

// runCommand executes one command, reporting whether the command loop
// should exit (quit/shutdown).
func (n *Node) runCommand(cmd string) bool {
	switch cmd {
	case "ping":
		n.SendData(packet.New(packet.Control, "ping"))
		if n.obs != nil {
			n.obs.ShowMessage("ping sent")
		}
	case "readfile":
		p := packet.New(packet.Control, "readfile")
		n.chain.Dispatch(&p)
	case "shutdown":
		n.SendData(packet.New(packet.Control, "shutdown"))
		time.Sleep(shutdownPause)
		n.finishShutdown()
		return true
	case "quit":
		n.finishShutdown()
		return true
	default:
		n.log.Warn("unknown command", "command", cmd)
	}
	return false
}

// finishShutdown cancels the node's context and, for a peer-initiated
// shutdown, notifies the embedding application. The actual stop sequence
// (draining the worker loops, closing readers/writers, closing done) runs
// on its own goroutine via Stop, since finishShutdown executes on the
// command loop itself and so cannot wait for that same loop to exit.
func (n *Node) finishShutdown() {
	n.cancel()
	if n.peerInitiatedShutdown.Load() && n.obs != nil {
		n.obs.InitiateShutdown()
	}
	go func() {
		if err := n.Stop(defaultShutdownTimeout); err != nil {
			n.log.Warn("self-initiated stop failed", "node", n.name, "error", err)
		}
	}()
}
