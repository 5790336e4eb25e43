// Package models re-exports core types for parser plugins built outside this module.
package models

import "firestige.xyz/sipscan/internal/core"

// Re-export core packet types for plugins
type (
	RawPacket       = core.RawPacket
	DecodedPacket   = core.DecodedPacket
	EthernetHeader  = core.EthernetHeader
	IPHeader        = core.IPHeader
	TransportHeader = core.TransportHeader
	SIPRecord       = core.SIPRecord
	PacketRecord    = core.PacketRecord
	Labels          = core.Labels
)

// Errors a parser returns from Handle.
var (
	ErrNotSIP         = core.ErrNotSIP
	ErrConfigInvalid  = core.ErrConfigInvalid
	ErrPluginNotFound = core.ErrPluginNotFound
)

// StringPtr returns a pointer to s, for building optional record fields.
func StringPtr(s string) *string {
	return core.StringPtr(s)
}
