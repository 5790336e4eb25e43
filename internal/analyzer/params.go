package analyzer

import "strings"

// Param is one semicolon-delimited parameter of a SIP header.
// A bare token is a flag (HasValue false); key=value splits on the first '='.
type Param struct {
	Name     string `json:"name" yaml:"name"`
	Value    string `json:"value,omitempty" yaml:"value,omitempty"`
	HasValue bool   `json:"has_value" yaml:"has_value"`
}

// Flag builds a bare parameter.
func Flag(name string) Param {
	return Param{Name: name}
}

// KeyValue builds a key=value parameter.
func KeyValue(key, value string) Param {
	return Param{Name: key, Value: value, HasValue: true}
}

// String renders the parameter the way the text report prints it.
func (p Param) String() string {
	if !p.HasValue {
		return p.Name
	}
	return p.Name + ": " + p.Value
}

// Decompose splits a raw header value into its parameters.
//
// The first segment is the header's primary value and is dropped once at least
// one ';' is present; a header with no ';' yields its whole value as a single flag.
// Empty segments are kept as empty flags and values are never re-split, so
// "k=v=w" gives k -> "v=w".
func Decompose(raw string) []Param {
	segments := strings.Split(raw, ";")
	if len(segments) > 1 {
		segments = segments[1:]
	}

	params := make([]Param, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if key, value, ok := strings.Cut(seg, "="); ok {
			params = append(params, KeyValue(strings.TrimSpace(key), strings.TrimSpace(value)))
			continue
		}
		params = append(params, Flag(seg))
	}
	return params
}
