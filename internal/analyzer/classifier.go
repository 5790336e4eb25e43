package analyzer

import (
	"strings"

	"firestige.xyz/sipscan/internal/core"
)

// Process classifies one record, updates sum and returns the per-record result.
//
// Every record counts toward TotalRecords. Records without SIP data, or whose
// method cannot be determined as REGISTER or INVITE, are skipped. Records that
// break the SIP record contract are reported as malformed and touch neither
// kind counter. Process never mutates rec.
func Process(rec core.PacketRecord, sum *Summary) Result {
	sum.TotalRecords++

	if rec.SIP == nil {
		return Result{Outcome: OutcomeSkipped}
	}
	if err := rec.Validate(); err != nil {
		sum.Malformed++
		return Result{Outcome: OutcomeMalformed, Err: err}
	}

	kind, ok := classify(rec.SIP)
	if !ok {
		return Result{Outcome: OutcomeSkipped}
	}

	switch kind {
	case KindRegister:
		sum.RegisterCount++
	case KindInvite:
		sum.InviteCount++
	}

	return Result{Outcome: OutcomeMatched, Finding: extract(kind, rec)}
}

// classify prefers the structured request method and only falls back to the
// raw request line when no method was decoded.
func classify(sip *core.SIPRecord) (Kind, bool) {
	if sip.RequestMethod != nil {
		return kindFromMethod(*sip.RequestMethod)
	}
	if sip.RequestLine != nil {
		return kindFromRequestLine(*sip.RequestLine)
	}
	return "", false
}

// kindFromMethod matches the method token exactly (case-sensitive).
func kindFromMethod(method string) (Kind, bool) {
	switch method {
	case string(KindRegister):
		return KindRegister, true
	case string(KindInvite):
		return KindInvite, true
	}
	return "", false
}

// kindFromRequestLine sniffs the raw line by substring, REGISTER first.
// Captures carry lines like "SIP/2.0 200 OK (in response to REGISTER)", so
// this deliberately does not tokenize.
func kindFromRequestLine(line string) (Kind, bool) {
	if strings.Contains(line, string(KindRegister)) {
		return KindRegister, true
	}
	if strings.Contains(line, string(KindInvite)) {
		return KindInvite, true
	}
	return "", false
}

func extract(kind Kind, rec core.PacketRecord) *Finding {
	sip := rec.SIP
	return &Finding{
		Kind:                kind,
		Timestamp:           rec.Timestamp.Format(TimestampLayout),
		PacketIndex:         rec.Index,
		To:                  addressHeader(sip.To),
		From:                addressHeader(sip.From),
		PAccessNetworkInfo:  infoHeader(sip.PAccessNetworkInfo),
		CellularNetworkInfo: infoHeader(sip.CellularNetworkInfo),
	}
}

// addressHeader decomposes To/From only when they carry parameters.
func addressHeader(raw *string) *Header {
	if raw == nil {
		return nil
	}
	h := &Header{Raw: *raw}
	if strings.Contains(*raw, ";") {
		h.Params = Decompose(*raw)
	}
	return h
}

// infoHeader always decomposes the access-network headers.
func infoHeader(raw *string) *Header {
	if raw == nil {
		return nil
	}
	return &Header{Raw: *raw, Params: Decompose(*raw)}
}

// Collector runs Process over a record stream and keeps the findings in input order.
type Collector struct {
	Summary  Summary
	Findings []Finding
}

// Feed processes one record and appends its finding, if any.
func (c *Collector) Feed(rec core.PacketRecord) Result {
	res := Process(rec, &c.Summary)
	if res.Outcome == OutcomeMatched {
		c.Findings = append(c.Findings, *res.Finding)
	}
	return res
}
