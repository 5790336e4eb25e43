package core

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// PacketRecord is one decoded packet handed to the analyzer.
// The analyzer only reads it and never retains it past the call that processes it.
type PacketRecord struct {
	Timestamp time.Time
	Index     int        // 1-based frame number in the capture, 0 if unknown
	SIP       *SIPRecord // nil when the packet carried no decodable SIP message
}

// SIPRecord exposes the SIP fields of a packet. Every field is optional;
// nil means the message did not carry it.
type SIPRecord struct {
	RequestMethod       *string // method token of a parsed request line
	RequestLine         *string // raw first line, set when no method could be parsed
	To                  *string
	From                *string
	PAccessNetworkInfo  *string
	CellularNetworkInfo *string
}

// StringPtr returns a pointer to s, for building optional record fields.
func StringPtr(s string) *string {
	return &s
}

// Validate checks the shape contract of a SIP record: present fields are
// single-line valid UTF-8 and a present request method is not empty.
// Violations wrap ErrMalformedRecord.
func (r *SIPRecord) Validate() error {
	if r == nil {
		return nil
	}
	if r.RequestMethod != nil && *r.RequestMethod == "" {
		return fmt.Errorf("%w: empty request method", ErrMalformedRecord)
	}
	for _, f := range r.fields() {
		if f.value == nil {
			continue
		}
		if !utf8.ValidString(*f.value) {
			return fmt.Errorf("%w: %s is not valid UTF-8", ErrMalformedRecord, f.name)
		}
		if strings.ContainsAny(*f.value, "\r\n") {
			return fmt.Errorf("%w: %s spans multiple lines", ErrMalformedRecord, f.name)
		}
	}
	return nil
}

type namedField struct {
	name  string
	value *string
}

func (r *SIPRecord) fields() []namedField {
	return []namedField{
		{"request_method", r.RequestMethod},
		{"request_line", r.RequestLine},
		{"to", r.To},
		{"from", r.From},
		{"p_access_network_info", r.PAccessNetworkInfo},
		{"cellular_network_info", r.CellularNetworkInfo},
	}
}

// Validate checks the record as a whole. A record without SIP data is always valid.
func (p PacketRecord) Validate() error {
	if p.SIP == nil {
		return nil
	}
	if p.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing capture timestamp", ErrMalformedRecord)
	}
	return p.SIP.Validate()
}
