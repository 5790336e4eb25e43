// Package core defines core types with zero external dependencies.
package core

import "net/netip"

// EthernetHeader represents L2 Ethernet frame header.
type EthernetHeader struct {
	SrcMAC    [6]byte
	DstMAC    [6]byte
	EtherType uint16   // 0x0800=IPv4, 0x86DD=IPv6
	VLANs     []uint16 // 0~2 VLAN IDs (QinQ scenarios have 2)
}

// IPHeader represents L3 IP header (IPv4/IPv6).
type IPHeader struct {
	Version  uint8
	SrcIP    netip.Addr
	DstIP    netip.Addr
	Protocol uint8 // TCP=6, UDP=17
	TTL      uint8
}

// TransportHeader represents L4 transport layer header (TCP/UDP).
type TransportHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

// HasPort reports whether either side of the transport header uses port.
func (t TransportHeader) HasPort(port uint16) bool {
	return t.SrcPort == port || t.DstPort == port
}
