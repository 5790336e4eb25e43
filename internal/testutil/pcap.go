// Package testutil synthesises capture files for tests.
package testutil

import (
	"encoding/binary"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/require"
)

var (
	clientMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	serverMAC = net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}
	clientIP  = net.IPv4(10, 0, 0, 1).To4()
	serverIP  = net.IPv4(10, 0, 0, 2).To4()
)

// Frame is one Ethernet frame with its capture time.
type Frame struct {
	Data []byte
	Time time.Time
}

// SIPMessage joins header lines with CRLF and terminates the header section.
func SIPMessage(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n\r\n")
}

// Register is a REGISTER carrying every extracted header.
var Register = SIPMessage(
	"REGISTER sip:ims.example.com SIP/2.0",
	"Via: SIP/2.0/UDP 10.0.0.1:5060;branch=z9hG4bK776asdhds",
	"Max-Forwards: 70",
	"To: <sip:alice@ims.example.com>",
	"From: <sip:alice@ims.example.com>;tag=456248",
	"Call-ID: 843817637684230@998sdasdh09",
	"CSeq: 1826 REGISTER",
	"P-Access-Network-Info: 3GPP-E-UTRAN-FDD;utran-cell-id-3gpp=2080100010000001",
	"Cellular-Network-Info: 3GPP-E-UTRAN-FDD;utran-cell-id-3gpp=2080100010000001;cell-info-age=12",
	"Content-Length: 0",
)

// Invite is an INVITE without access-network headers.
var Invite = SIPMessage(
	"INVITE sip:bob@example.com SIP/2.0",
	"Via: SIP/2.0/UDP 10.0.0.1:5060;branch=z9hG4bKnashds8",
	"Max-Forwards: 70",
	"To: Bob <sip:bob@example.com>",
	"From: Alice <sip:alice@example.com>;tag=1928301774",
	"Call-ID: a84b4c76e66710",
	"CSeq: 314159 INVITE",
	"Content-Length: 0",
)

// OK is a response to the REGISTER.
var OK = SIPMessage(
	"SIP/2.0 200 OK",
	"Via: SIP/2.0/UDP 10.0.0.1:5060;branch=z9hG4bK776asdhds",
	"To: <sip:alice@ims.example.com>;tag=2493k59kd",
	"From: <sip:alice@ims.example.com>;tag=456248",
	"Call-ID: 843817637684230@998sdasdh09",
	"CSeq: 1826 REGISTER",
	"Content-Length: 0",
)

func serialize(t testing.TB, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return append([]byte(nil), buf.Bytes()...)
}

func ipv4(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: proto, SrcIP: clientIP, DstIP: serverIP}
}

func ethernet() *layers.Ethernet {
	return &layers.Ethernet{SrcMAC: clientMAC, DstMAC: serverMAC, EthernetType: layers.EthernetTypeIPv4}
}

// UDP builds an Ethernet/IPv4/UDP frame.
func UDP(t testing.TB, srcPort, dstPort uint16, payload []byte) []byte {
	t.Helper()
	ip := ipv4(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ethernet(), ip, udp, gopacket.Payload(payload))
}

// TCP builds an Ethernet/IPv4/TCP frame carrying payload in one segment.
func TCP(t testing.TB, srcPort, dstPort uint16, payload []byte) []byte {
	t.Helper()
	ip := ipv4(layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort), DstPort: layers.TCPPort(dstPort),
		Seq: 1000, ACK: true, PSH: true, Window: 65535,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ethernet(), ip, tcp, gopacket.Payload(payload))
}

// FragmentedUDP splits one UDP datagram into two IPv4 fragments. split must
// be a multiple of 8 and smaller than the datagram.
func FragmentedUDP(t testing.TB, srcPort, dstPort uint16, payload []byte, split int, id uint16) [][]byte {
	t.Helper()
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ipv4(layers.IPProtocolUDP)))
	datagram := serialize(t, udp, gopacket.Payload(payload))
	require.Less(t, split, len(datagram))

	first := ipv4(layers.IPProtocolUDP)
	first.Id = id
	first.Flags = layers.IPv4MoreFragments
	second := ipv4(layers.IPProtocolUDP)
	second.Id = id
	second.FragOffset = uint16(split / 8)

	return [][]byte{
		serialize(t, ethernet(), first, gopacket.Payload(datagram[:split])),
		serialize(t, ethernet(), second, gopacket.Payload(datagram[split:])),
	}
}

// WritePcap writes frames to a classic pcap file at path.
func WritePcap(t testing.TB, path string, frames ...Frame) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	for _, fr := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     fr.Time,
			CaptureLength: len(fr.Data),
			Length:        len(fr.Data),
		}
		require.NoError(t, w.WritePacket(ci, fr.Data))
	}
}

// AppendCorruptRecord appends a record header whose capture length exceeds
// the snap length, so readers fail after the frames already in the file.
func AppendCorruptRecord(t testing.TB, path string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	defer f.Close()

	hdr := make([]byte, 16)
	binary.LittleEndian.PutUint32(hdr[0:4], 1709294400)
	binary.LittleEndian.PutUint32(hdr[8:12], 0x7fffffff)
	binary.LittleEndian.PutUint32(hdr[12:16], 0x7fffffff)
	_, err = f.Write(hdr)
	require.NoError(t, err)
}

// At returns base shifted by n milliseconds.
func At(base time.Time, n int) time.Time {
	return base.Add(time.Duration(n) * time.Millisecond)
}
