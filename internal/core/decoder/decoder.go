// Package decoder implements L2-L4 protocol stack decoding on top of gopacket.
package decoder

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/ip4defrag"
	"github.com/google/gopacket/layers"

	"firestige.xyz/sipscan/internal/core"
)

// Decoder decodes raw packets into structured format.
type Decoder interface {
	Decode(raw core.RawPacket) (core.DecodedPacket, error)
}

// Config controls optional decoding stages.
type Config struct {
	// Defragment enables IPv4 fragment reassembly. Large INVITEs with SDP
	// bodies are routinely fragmented over UDP.
	Defragment bool
}

// StandardDecoder decodes Ethernet, Linux SLL and raw-IP frames carrying
// IPv4/IPv6 with UDP or TCP. It keeps per-instance layer buffers and must not
// be shared between goroutines.
type StandardDecoder struct {
	eth     layers.Ethernet
	sll     layers.LinuxSLL
	dot1q   layers.Dot1Q
	ip4     layers.IPv4
	ip6     layers.IPv6
	udp     layers.UDP
	tcp     layers.TCP
	payload gopacket.Payload

	parsers map[gopacket.LayerType]*gopacket.DecodingLayerParser
	decoded []gopacket.LayerType
	defrag  *ip4defrag.IPv4Defragmenter
}

// NewStandardDecoder creates a decoder.
func NewStandardDecoder(cfg Config) *StandardDecoder {
	d := &StandardDecoder{
		parsers: make(map[gopacket.LayerType]*gopacket.DecodingLayerParser, 4),
		decoded: make([]gopacket.LayerType, 0, 8),
	}
	for _, first := range []gopacket.LayerType{
		layers.LayerTypeEthernet,
		layers.LayerTypeLinuxSLL,
		layers.LayerTypeIPv4,
		layers.LayerTypeIPv6,
	} {
		p := gopacket.NewDecodingLayerParser(first,
			&d.eth, &d.sll, &d.dot1q, &d.ip4, &d.ip6, &d.udp, &d.tcp, &d.payload)
		p.IgnoreUnsupported = true
		d.parsers[first] = p
	}
	if cfg.Defragment {
		d.defrag = ip4defrag.NewIPv4Defragmenter()
	}
	return d
}

// firstLayer maps a capture link type to the layer decoding starts at.
func firstLayer(linkType layers.LinkType, data []byte) (gopacket.LayerType, error) {
	switch linkType {
	case layers.LinkTypeEthernet:
		return layers.LayerTypeEthernet, nil
	case layers.LinkTypeLinuxSLL:
		return layers.LayerTypeLinuxSLL, nil
	case layers.LinkTypeIPv4:
		return layers.LayerTypeIPv4, nil
	case layers.LinkTypeIPv6:
		return layers.LayerTypeIPv6, nil
	case layers.LinkTypeRaw:
		if len(data) == 0 {
			return 0, core.ErrPacketTooShort
		}
		if data[0]>>4 == 6 {
			return layers.LayerTypeIPv6, nil
		}
		return layers.LayerTypeIPv4, nil
	}
	return 0, fmt.Errorf("%w: link type %s", core.ErrUnsupportedProto, linkType)
}

// Decode decodes one frame. Frames without an IP/UDP or IP/TCP stack return
// ErrUnsupportedProto; a non-final IPv4 fragment returns ErrFragmentPending.
func (d *StandardDecoder) Decode(raw core.RawPacket) (core.DecodedPacket, error) {
	out := core.DecodedPacket{
		Timestamp:  raw.Timestamp,
		Index:      raw.Index,
		CaptureLen: raw.CaptureLen,
		OrigLen:    raw.OrigLen,
	}

	first, err := firstLayer(layers.LinkType(raw.LinkType), raw.Data)
	if err != nil {
		return out, err
	}

	if err := d.parsers[first].DecodeLayers(raw.Data, &d.decoded); err != nil {
		var unsupported gopacket.UnsupportedLayerType
		if !errors.As(err, &unsupported) {
			return out, fmt.Errorf("%w: %v", core.ErrPacketTooShort, err)
		}
	}

	var haveIP, haveTransport bool
	for _, lt := range d.decoded {
		switch lt {
		case layers.LayerTypeEthernet:
			copy(out.Ethernet.SrcMAC[:], d.eth.SrcMAC)
			copy(out.Ethernet.DstMAC[:], d.eth.DstMAC)
			out.Ethernet.EtherType = uint16(d.eth.EthernetType)
		case layers.LayerTypeDot1Q:
			out.Ethernet.VLANs = append(out.Ethernet.VLANs, d.dot1q.VLANIdentifier)
			out.Ethernet.EtherType = uint16(d.dot1q.Type)
		case layers.LayerTypeIPv4:
			haveIP = true
			out.IP = ipv4Header(&d.ip4)
			if d.defrag != nil && isFragment(&d.ip4) {
				return d.reassemble(out, raw)
			}
		case layers.LayerTypeIPv6:
			haveIP = true
			out.IP = ipv6Header(&d.ip6)
		case layers.LayerTypeUDP:
			haveTransport = true
			out.Transport = core.TransportHeader{
				SrcPort:  uint16(d.udp.SrcPort),
				DstPort:  uint16(d.udp.DstPort),
				Protocol: uint8(layers.IPProtocolUDP),
			}
			out.Payload = d.udp.Payload
		case layers.LayerTypeTCP:
			haveTransport = true
			out.Transport = core.TransportHeader{
				SrcPort:  uint16(d.tcp.SrcPort),
				DstPort:  uint16(d.tcp.DstPort),
				Protocol: uint8(layers.IPProtocolTCP),
			}
			out.Payload = d.tcp.Payload
		}
	}

	if !haveIP || !haveTransport {
		return out, fmt.Errorf("%w: no IP/UDP or IP/TCP stack", core.ErrUnsupportedProto)
	}
	return out, nil
}

func isFragment(ip *layers.IPv4) bool {
	return ip.Flags&layers.IPv4MoreFragments != 0 || ip.FragOffset != 0
}

// reassemble feeds a fragment to the defragmenter and decodes the transport
// header of the completed datagram.
func (d *StandardDecoder) reassemble(out core.DecodedPacket, raw core.RawPacket) (core.DecodedPacket, error) {
	frag := d.ip4
	frag.Payload = append([]byte(nil), d.ip4.Payload...)

	whole, err := d.defrag.DefragIPv4WithTimestamp(&frag, raw.Timestamp)
	if err != nil {
		return out, fmt.Errorf("%w: ipv4 reassembly: %v", core.ErrUnsupportedProto, err)
	}
	if whole == nil {
		return out, core.ErrFragmentPending
	}

	switch whole.Protocol {
	case layers.IPProtocolUDP:
		var udp layers.UDP
		if err := udp.DecodeFromBytes(whole.Payload, gopacket.NilDecodeFeedback); err != nil {
			return out, fmt.Errorf("%w: %v", core.ErrPacketTooShort, err)
		}
		out.Transport = core.TransportHeader{
			SrcPort:  uint16(udp.SrcPort),
			DstPort:  uint16(udp.DstPort),
			Protocol: uint8(layers.IPProtocolUDP),
		}
		out.Payload = udp.Payload
	case layers.IPProtocolTCP:
		var tcp layers.TCP
		if err := tcp.DecodeFromBytes(whole.Payload, gopacket.NilDecodeFeedback); err != nil {
			return out, fmt.Errorf("%w: %v", core.ErrPacketTooShort, err)
		}
		out.Transport = core.TransportHeader{
			SrcPort:  uint16(tcp.SrcPort),
			DstPort:  uint16(tcp.DstPort),
			Protocol: uint8(layers.IPProtocolTCP),
		}
		out.Payload = tcp.Payload
	default:
		return out, fmt.Errorf("%w: ip protocol %s", core.ErrUnsupportedProto, whole.Protocol)
	}
	return out, nil
}

func ipv4Header(ip *layers.IPv4) core.IPHeader {
	h := core.IPHeader{Version: 4, Protocol: uint8(ip.Protocol), TTL: ip.TTL}
	if addr, ok := netip.AddrFromSlice(ip.SrcIP); ok {
		h.SrcIP = addr.Unmap()
	}
	if addr, ok := netip.AddrFromSlice(ip.DstIP); ok {
		h.DstIP = addr.Unmap()
	}
	return h
}

func ipv6Header(ip *layers.IPv6) core.IPHeader {
	h := core.IPHeader{Version: 6, Protocol: uint8(ip.NextHeader), TTL: ip.HopLimit}
	if addr, ok := netip.AddrFromSlice(ip.SrcIP); ok {
		h.SrcIP = addr
	}
	if addr, ok := netip.AddrFromSlice(ip.DstIP); ok {
		h.DstIP = addr
	}
	return h
}
