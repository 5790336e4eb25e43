// Package core defines core data structures with zero external dependencies.
package core

import (
	"time"
)

// RawPacket is one frame read from a capture file.
type RawPacket struct {
	Data       []byte    // Raw frame data
	Timestamp  time.Time // Capture timestamp from the file record header
	CaptureLen uint32    // Captured length
	OrigLen    uint32    // Original frame length on the wire
	LinkType   uint8     // Link type of the capture (layers.LinkType value)
	Index      int       // 1-based frame number within the file
}

// DecodedPacket is the result of L2-L4 protocol stack decoding.
type DecodedPacket struct {
	Timestamp  time.Time
	Index      int
	Ethernet   EthernetHeader
	IP         IPHeader
	Transport  TransportHeader
	Payload    []byte // Application layer payload
	CaptureLen uint32
	OrigLen    uint32
}
