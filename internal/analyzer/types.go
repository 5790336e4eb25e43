// Package analyzer classifies decoded SIP records as REGISTER or INVITE and
// extracts their To, From, P-Access-Network-Info and Cellular-Network-Info headers.
package analyzer

// Kind is the SIP request kind a record was classified as.
type Kind string

const (
	KindRegister Kind = "REGISTER"
	KindInvite   Kind = "INVITE"
)

// TimestampLayout is the finding timestamp format (YYYY-MM-DD HH:MM:SS.ffffff).
const TimestampLayout = "2006-01-02 15:04:05.000000"

// Header is one extracted header: the verbatim value and, when decomposed, its parameters.
type Header struct {
	Raw    string  `json:"raw" yaml:"raw"`
	Params []Param `json:"params,omitempty" yaml:"params,omitempty"`
}

// HasParams reports whether the header was decomposed.
func (h *Header) HasParams() bool {
	return h != nil && h.Params != nil
}

// Finding is the structured result for one REGISTER or INVITE record.
type Finding struct {
	Kind                Kind    `json:"kind" yaml:"kind"`
	Timestamp           string  `json:"timestamp" yaml:"timestamp"`
	PacketIndex         int     `json:"packet_index,omitempty" yaml:"packet_index,omitempty"`
	To                  *Header `json:"to,omitempty" yaml:"to,omitempty"`
	From                *Header `json:"from,omitempty" yaml:"from,omitempty"`
	PAccessNetworkInfo  *Header `json:"p_access_network_info,omitempty" yaml:"p_access_network_info,omitempty"`
	CellularNetworkInfo *Header `json:"cellular_network_info,omitempty" yaml:"cellular_network_info,omitempty"`
}

// Summary accumulates counts over one record stream.
// RegisterCount + InviteCount never exceeds TotalRecords.
type Summary struct {
	TotalRecords  int `json:"total_records" yaml:"total_records"`
	RegisterCount int `json:"register_count" yaml:"register_count"`
	InviteCount   int `json:"invite_count" yaml:"invite_count"`
	Malformed     int `json:"malformed" yaml:"malformed"`
}

// Add merges other into s.
func (s *Summary) Add(other Summary) {
	s.TotalRecords += other.TotalRecords
	s.RegisterCount += other.RegisterCount
	s.InviteCount += other.InviteCount
	s.Malformed += other.Malformed
}

// Outcome is the per-record result of Process.
type Outcome int

const (
	// OutcomeSkipped: no SIP data or not a REGISTER/INVITE.
	OutcomeSkipped Outcome = iota
	// OutcomeMatched: the record produced a finding.
	OutcomeMatched
	// OutcomeMalformed: the SIP record broke its shape contract and was dropped.
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeMatched:
		return "matched"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Result carries the outcome of processing one record.
type Result struct {
	Outcome Outcome
	Finding *Finding // set for OutcomeMatched
	Err     error    // set for OutcomeMalformed
}
