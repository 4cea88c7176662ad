package handler

import "github.com/oharbase/processornode/packet"

// EncryptMode selects whether an EncryptHandler enciphers or deciphers a
// Data packet's payload. Since the handler uses ROT13, both modes apply
// the identical transform; the two constants exist to document intent at
// the call site.
type EncryptMode int

const (
	Encrypt EncryptMode = iota
	Decrypt
)

// EncryptHandler obscures (or restores) a Data packet's string payload
// with ROT13, a toy cipher used here to demonstrate a payload-mutating
// handler rather than to provide real confidentiality. It never claims a
// packet, so later handlers still see it, transformed.
type EncryptHandler struct {
	mode EncryptMode
}

// NewEncryptHandler returns an EncryptHandler running in mode.
func NewEncryptHandler(mode EncryptMode) *EncryptHandler {
	return &EncryptHandler{mode: mode}
}

// Consume rewrites pkt's payload in place via rot13 and always returns
// false, letting the chain continue.
func (h *EncryptHandler) Consume(pkt *packet.Packet) bool {
	if pkt.Kind() != packet.Data {
		return false
	}
	if s := pkt.PayloadString(); s != "" {
		pkt.SetPayload(rot13(s))
	}
	return false
}

func rot13(source string) string {
	out := make([]rune, 0, len(source))
	for _, c := range source {
		switch {
		case (c >= 'A' && c <= 'M') || (c >= 'a' && c <= 'm'):
			out = append(out, c+13)
		case (c >= 'N' && c <= 'Z') || (c >= 'n' && c <= 'z'):
			out = append(out, c-13)
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
