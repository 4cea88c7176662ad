package handler

import (
	"bufio"
	"log/slog"
	"os"

	"github.com/oharbase/processornode/nodeconfig"
	"github.com/oharbase/processornode/packet"
)

// FileSource supplies the node configuration a FileReadHandler reads its
// data file path from.
type FileSource interface {
	Configuration() *nodeconfig.Configuration
}

// FileReadHandler answers a Control "readfile" command by streaming a
// local data file: its first line names a content type, and each
// following non-empty line becomes one outbound Data packet, offered to
// the handlers installed after this one (so e.g. an EncryptHandler further
// down the chain still sees file-sourced data). It claims only the
// readfile command; every other packet passes through untouched.
type FileReadHandler struct {
	node  FileSource
	chain *Chain
	log   *slog.Logger
}

// NewFileReadHandler returns a FileReadHandler reading the file named by
// the node's nodeconfig.InputFile configuration item, and offering the
// resulting packets to chain's handlers following this one.
func NewFileReadHandler(node FileSource, chain *Chain, log *slog.Logger) *FileReadHandler {
	if log == nil {
		log = slog.Default()
	}
	return &FileReadHandler{node: node, chain: chain, log: log.With("component", "FileReadHandler")}
}

// Consume implements Handler.
func (h *FileReadHandler) Consume(pkt *packet.Packet) bool {
	if pkt.Kind() != packet.Control || pkt.PayloadString() != "readfile" {
		return false
	}

	path, ok := h.node.Configuration().Value(nodeconfig.InputFile)
	if !ok || path == "" {
		h.log.Warn("readfile command received but no input data file is configured")
		return true
	}

	if err := h.readFile(path); err != nil {
		h.log.Warn("failed to read data file", "path", path, "error", err)
	}
	return true
}

func (h *FileReadHandler) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return scanner.Err()
	}
	contentType := scanner.Text()

	sent := 0
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		out := packet.New(packet.Data, line)
		h.chain.PassToNextHandlers(h, &out)
		sent++
	}
	h.log.Info("streamed data file", "path", path, "content_type", contentType, "packets_sent", sent)
	return scanner.Err()
}
