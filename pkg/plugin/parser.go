// Package plugin defines plugin interfaces.
package plugin

import (
	"firestige.xyz/sipscan/internal/core"
)

// Parser parses application-layer protocols.
type Parser interface {
	Plugin
	// CanHandle is a cheap pre-check run on every decoded packet.
	CanHandle(pkt *core.DecodedPacket) bool
	// Handle decodes the payload. It returns core.ErrNotSIP when the payload
	// is not a message of the parser's protocol.
	Handle(pkt *core.DecodedPacket) (*core.SIPRecord, error)
}
