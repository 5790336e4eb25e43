// Package core defines core types.
package core

// Labels represents key-value metadata attached to log entries.
type Labels map[string]string

// Fields converts labels into logger fields.
func (l Labels) Fields() map[string]interface{} {
	fields := make(map[string]interface{}, len(l))
	for k, v := range l {
		fields[k] = v
	}
	return fields
}

// Label naming constants following {scope}.{field} convention.
const (
	LabelFile        = "file"
	LabelRunID       = "run_id"
	LabelPacketIndex = "packet.index"

	LabelSIPMethod      = "sip.method"
	LabelSIPRequestLine = "sip.request_line"
	LabelSIPKind        = "sip.kind"
)
