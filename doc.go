// Package processornode implements a small pipes-and-filters framework for
// building single-purpose stream-processing stages that communicate over
// UDP: a Node reads packets from an inbound socket, offers each one to a
// chain of Handlers, and forwards the result to the next stage's socket.
//
// # Layout
//
//   - packet: the wire envelope (kind, payload, correlation id) exchanged
//     between nodes.
//   - nodeconfig: the line-oriented configuration file format describing a
//     single node's wiring (addresses, name, flags).
//   - netio: UDP DataReader/Writer built on buffer and retry, with
//     acknowledgement and backoff.
//   - handler: the Handler/Chain contract plus the built-in Ping,
//     Configuration, FileRead, and Encrypt handlers.
//   - node: wires packet, nodeconfig, netio, and handler together into a
//     runnable Node lifecycle (Configure, Start, Stop).
//   - metric: Prometheus instrumentation shared by netio and node.
//   - cmd/node: the command-line entry point running one Node process.
//
// A complete processing pipeline is one operating-system process per stage,
// each running cmd/node against its own configuration file, chained
// together by the UDP addresses those files name.
package processornode
