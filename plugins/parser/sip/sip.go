// Package sip implements the SIP protocol parser plugin.
// It turns a UDP or TCP payload into a core.SIPRecord carrying the request
// method and the verbatim To, From, P-Access-Network-Info and
// Cellular-Network-Info header values.
package sip

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ghettovoice/gosip/sip"
	"github.com/ghettovoice/gosip/sip/parser"
	"github.com/mitchellh/mapstructure"

	"firestige.xyz/sipscan/internal/core"
	"firestige.xyz/sipscan/internal/log"
	"firestige.xyz/sipscan/pkg/plugin"
)

// Name is the registry name of the parser.
const Name = "sip"

const sipVersion = "SIP/2.0"

// Known request methods, used for payload sniffing on non-standard ports.
var sipMethods = [][]byte{
	[]byte("INVITE"),
	[]byte("ACK"),
	[]byte("BYE"),
	[]byte("CANCEL"),
	[]byte("REGISTER"),
	[]byte("OPTIONS"),
	[]byte("PRACK"),
	[]byte("SUBSCRIBE"),
	[]byte("NOTIFY"),
	[]byte("PUBLISH"),
	[]byte("INFO"),
	[]byte("REFER"),
	[]byte("MESSAGE"),
	[]byte("UPDATE"),
}

// Header names as they appear in lower-case in headerBlock.
const (
	headerTo                  = "to"
	headerFrom                = "from"
	headerPAccessNetworkInfo  = "p-access-network-info"
	headerCellularNetworkInfo = "cellular-network-info"
)

// Options configures the parser. Decoded from the plugin option map.
type Options struct {
	Ports        []int `mapstructure:"ports"`
	PayloadSniff bool  `mapstructure:"payload_sniff"`
}

// DefaultOptions returns the standard SIP ports with payload sniffing enabled.
func DefaultOptions() Options {
	return Options{Ports: []int{5060, 5061}, PayloadSniff: true}
}

// SIPParser parses SIP signaling messages.
type SIPParser struct {
	name     string
	ports    map[uint16]struct{}
	sniff    bool
	delegate *parser.PacketParser
}

// NewSIPParser creates a new SIP parser with default options.
func NewSIPParser() plugin.Parser {
	p := &SIPParser{
		name:     Name,
		delegate: parser.NewPacketParser(newParserLogger()),
	}
	p.apply(DefaultOptions())
	return p
}

// Name returns the plugin name.
func (p *SIPParser) Name() string {
	return p.name
}

// Init decodes the option map onto the defaults.
func (p *SIPParser) Init(cfg map[string]any) error {
	opts := DefaultOptions()
	if len(cfg) > 0 {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &opts,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		})
		if err != nil {
			return err
		}
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("%w: sip parser options: %v", core.ErrConfigInvalid, err)
		}
	}
	for _, port := range opts.Ports {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("%w: sip parser port %d out of range", core.ErrConfigInvalid, port)
		}
	}
	p.apply(opts)
	return nil
}

func (p *SIPParser) apply(opts Options) {
	p.ports = make(map[uint16]struct{}, len(opts.Ports))
	for _, port := range opts.Ports {
		p.ports[uint16(port)] = struct{}{}
	}
	p.sniff = opts.PayloadSniff
}

// Start starts the parser.
func (p *SIPParser) Start(ctx context.Context) error {
	return nil
}

// Stop stops the parser.
func (p *SIPParser) Stop(ctx context.Context) error {
	return nil
}

// CanHandle checks if this packet is likely SIP: a configured SIP port on
// either side, or a SIP start line at the head of the payload.
func (p *SIPParser) CanHandle(pkt *core.DecodedPacket) bool {
	if len(pkt.Payload) == 0 {
		return false
	}
	for port := range p.ports {
		if pkt.Transport.HasPort(port) {
			return true
		}
	}
	return p.sniff && detect(pkt.Payload)
}

// detect reports whether data starts like a SIP request or response.
func detect(data []byte) bool {
	if bytes.HasPrefix(data, []byte(sipVersion+" ")) {
		return true
	}
	for _, method := range sipMethods {
		if bytes.HasPrefix(data, method) && len(data) > len(method) && data[len(method)] == ' ' {
			return true
		}
	}
	return false
}

// Handle parses the payload into a SIP record.
//
// The request method is the first token of the request line exactly as sent.
// gosip only decides whether the line is a request line at all; when it
// rejects the whole message the line alone is checked with ParseRequestLine.
// The raw start line is kept so the caller can still classify it. Header
// values are always taken verbatim from the header section.
func (p *SIPParser) Handle(pkt *core.DecodedPacket) (*core.SIPRecord, error) {
	block := scanHeaders(pkt.Payload)
	if !looksLikeStartLine(block.startLine) {
		return nil, core.ErrNotSIP
	}

	rec := &core.SIPRecord{
		To:                  block.get(headerTo),
		From:                block.get(headerFrom),
		PAccessNetworkInfo:  block.get(headerPAccessNetworkInfo),
		CellularNetworkInfo: block.get(headerCellularNetworkInfo),
	}
	if isStatusLine(block.startLine) {
		return rec, nil
	}

	rec.RequestLine = core.StringPtr(block.startLine)
	if p.isRequestLine(pkt.Payload, block.startLine) {
		rec.RequestMethod = core.StringPtr(strings.Fields(block.startLine)[0])
	}
	return rec, nil
}

// isRequestLine reports whether gosip accepts line as a request line.
func (p *SIPParser) isRequestLine(payload []byte, line string) bool {
	msg, err := p.parse(payload)
	if err == nil {
		_, ok := msg.(sip.Request)
		return ok
	}

	log.GetLogger().WithError(err).Debugf("gosip rejected message, falling back to start line: %q", line)
	_, _, _, err = parser.ParseRequestLine(line)
	return err == nil
}

// parse runs the gosip packet parser, turning a parser panic into an error.
func (p *SIPParser) parse(payload []byte) (msg sip.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg, err = nil, fmt.Errorf("sip parser panic: %v", r)
		}
	}()
	return p.delegate.ParseMessage(payload)
}

// isStatusLine reports whether line starts a response.
func isStatusLine(line string) bool {
	return strings.HasPrefix(line, sipVersion+" ")
}

// looksLikeStartLine accepts a status line, or a line shaped like a request
// line: ending in the SIP version after at least a method and a URI.
func looksLikeStartLine(line string) bool {
	if isStatusLine(line) {
		return true
	}
	return strings.HasSuffix(line, " "+sipVersion) && len(strings.Fields(line)) >= 3
}
