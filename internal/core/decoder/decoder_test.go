package decoder

import (
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/sipscan/internal/core"
)

var (
	srcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC = net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}
	srcIP  = net.IPv4(10, 0, 0, 1).To4()
	dstIP  = net.IPv4(10, 0, 0, 2).To4()
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return append([]byte(nil), buf.Bytes()...)
}

func udpFrame(t *testing.T, payload []byte) []byte {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: srcIP, DstIP: dstIP}
	udp := &layers.UDP{SrcPort: 5060, DstPort: 5060}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return serialize(t, eth, ip, udp, gopacket.Payload(payload))
}

func raw(data []byte, linkType layers.LinkType, index int) core.RawPacket {
	return core.RawPacket{
		Data:       data,
		Timestamp:  time.Unix(1700000000, 0),
		CaptureLen: uint32(len(data)),
		OrigLen:    uint32(len(data)),
		LinkType:   uint8(linkType),
		Index:      index,
	}
}

func TestDecodeEthernetUDP(t *testing.T) {
	payload := []byte("REGISTER sip:ims.example.com SIP/2.0\r\n\r\n")
	d := NewStandardDecoder(Config{})

	pkt, err := d.Decode(raw(udpFrame(t, payload), layers.LinkTypeEthernet, 3))
	require.NoError(t, err)

	assert.Equal(t, 3, pkt.Index)
	assert.Equal(t, [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}, pkt.Ethernet.SrcMAC)
	assert.Equal(t, uint16(layers.EthernetTypeIPv4), pkt.Ethernet.EtherType)
	assert.Equal(t, uint8(4), pkt.IP.Version)
	assert.Equal(t, "10.0.0.1", pkt.IP.SrcIP.String())
	assert.Equal(t, "10.0.0.2", pkt.IP.DstIP.String())
	assert.Equal(t, uint8(layers.IPProtocolUDP), pkt.Transport.Protocol)
	assert.True(t, pkt.Transport.HasPort(5060))
	assert.Equal(t, payload, pkt.Payload)
}

func TestDecodeVLANTCP(t *testing.T) {
	payload := []byte("INVITE sip:bob@example.com SIP/2.0\r\n\r\n")
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeDot1Q}
	vlan := &layers.Dot1Q{VLANIdentifier: 100, Type: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: srcIP, DstIP: dstIP}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 5060, Seq: 1, PSH: true, ACK: true, Window: 1024}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	d := NewStandardDecoder(Config{})
	pkt, err := d.Decode(raw(serialize(t, eth, vlan, ip, tcp, gopacket.Payload(payload)), layers.LinkTypeEthernet, 1))
	require.NoError(t, err)

	assert.Equal(t, []uint16{100}, pkt.Ethernet.VLANs)
	assert.Equal(t, uint8(layers.IPProtocolTCP), pkt.Transport.Protocol)
	assert.Equal(t, uint16(5060), pkt.Transport.DstPort)
	assert.Equal(t, payload, pkt.Payload)
}

func TestDecodeRawIPv6(t *testing.T) {
	payload := []byte("OPTIONS sip:x SIP/2.0\r\n\r\n")
	ip := &layers.IPv6{
		Version:    6,
		NextHeader: layers.IPProtocolUDP,
		HopLimit:   32,
		SrcIP:      net.ParseIP("2001:db8::1"),
		DstIP:      net.ParseIP("2001:db8::2"),
	}
	udp := &layers.UDP{SrcPort: 5062, DstPort: 5060}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	d := NewStandardDecoder(Config{})
	pkt, err := d.Decode(raw(serialize(t, ip, udp, gopacket.Payload(payload)), layers.LinkTypeRaw, 1))
	require.NoError(t, err)

	assert.Equal(t, uint8(6), pkt.IP.Version)
	assert.Equal(t, "2001:db8::1", pkt.IP.SrcIP.String())
	assert.Equal(t, uint8(32), pkt.IP.TTL)
	assert.Equal(t, payload, pkt.Payload)
}

func TestDecodeNonIP(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeARP}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: srcIP,
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    dstIP,
	}

	d := NewStandardDecoder(Config{})
	_, err := d.Decode(raw(serialize(t, eth, arp), layers.LinkTypeEthernet, 1))
	assert.ErrorIs(t, err, core.ErrUnsupportedProto)
}

func TestDecodeUnsupportedLinkType(t *testing.T) {
	d := NewStandardDecoder(Config{})
	_, err := d.Decode(raw([]byte{0x01, 0x02}, layers.LinkTypeTokenRing, 1))
	assert.ErrorIs(t, err, core.ErrUnsupportedProto)
}

func TestDecodeEmptyRaw(t *testing.T) {
	d := NewStandardDecoder(Config{})
	_, err := d.Decode(raw(nil, layers.LinkTypeRaw, 1))
	assert.ErrorIs(t, err, core.ErrPacketTooShort)
}

// fragments splits a UDP datagram into two IPv4 fragments.
func fragments(t *testing.T, payload []byte) ([]byte, []byte) {
	t.Helper()
	whole := &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: srcIP, DstIP: dstIP}
	udp := &layers.UDP{SrcPort: 5060, DstPort: 5060}
	require.NoError(t, udp.SetNetworkLayerForChecksum(whole))
	datagram := serialize(t, udp, gopacket.Payload(payload))

	split := 800
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	first := &layers.IPv4{
		Version: 4, IHL: 5, TTL: 64, Id: 4242,
		Flags:    layers.IPv4MoreFragments,
		Protocol: layers.IPProtocolUDP, SrcIP: srcIP, DstIP: dstIP,
	}
	second := &layers.IPv4{
		Version: 4, IHL: 5, TTL: 64, Id: 4242,
		FragOffset: uint16(split / 8),
		Protocol:   layers.IPProtocolUDP, SrcIP: srcIP, DstIP: dstIP,
	}
	return serialize(t, eth, first, gopacket.Payload(datagram[:split])),
		serialize(t, eth, second, gopacket.Payload(datagram[split:]))
}

func TestDecodeReassemblesFragments(t *testing.T) {
	payload := make([]byte, 1200)
	copy(payload, "INVITE sip:bob@example.com SIP/2.0\r\n")
	for i := 36; i < len(payload); i++ {
		payload[i] = 'a'
	}
	head, tail := fragments(t, payload)

	d := NewStandardDecoder(Config{Defragment: true})
	_, err := d.Decode(raw(head, layers.LinkTypeEthernet, 1))
	assert.ErrorIs(t, err, core.ErrFragmentPending)

	pkt, err := d.Decode(raw(tail, layers.LinkTypeEthernet, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, pkt.Index)
	assert.Equal(t, uint16(5060), pkt.Transport.SrcPort)
	assert.Equal(t, payload, pkt.Payload)
}

func TestDecodeFragmentWithoutDefrag(t *testing.T) {
	head, _ := fragments(t, make([]byte, 1200))

	d := NewStandardDecoder(Config{})
	_, err := d.Decode(raw(head, layers.LinkTypeEthernet, 1))
	assert.ErrorIs(t, err, core.ErrUnsupportedProto)
}
