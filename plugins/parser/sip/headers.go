package sip

import (
	"bytes"
	"strings"
)

// compactForms maps RFC 3261 compact header names to their long form.
var compactForms = map[string]string{
	"t": "to",
	"f": "from",
	"i": "call-id",
	"m": "contact",
	"v": "via",
	"l": "content-length",
	"c": "content-type",
}

// headerBlock is the verbatim start line and header section of a message.
type headerBlock struct {
	startLine string
	values    map[string]string // lower-case long name -> first occurrence
}

func (h headerBlock) get(name string) *string {
	v, ok := h.values[name]
	if !ok {
		return nil
	}
	return &v
}

// scanHeaders reads the header section line by line, keeping values as they
// appear on the wire. Folded lines are joined with a single space and the
// first occurrence of a repeated header wins.
func scanHeaders(payload []byte) headerBlock {
	block := headerBlock{values: make(map[string]string)}

	lines := bytes.Split(payload, []byte("\n"))
	if len(lines) == 0 {
		return block
	}
	block.startLine = strings.TrimSpace(string(trimCR(lines[0])))

	var name string
	var value strings.Builder
	flush := func() {
		if name == "" {
			return
		}
		if _, seen := block.values[name]; !seen {
			block.values[name] = strings.TrimSpace(value.String())
		}
		name = ""
		value.Reset()
	}

	for _, raw := range lines[1:] {
		line := trimCR(raw)
		if len(line) == 0 {
			break
		}
		if line[0] == ' ' || line[0] == '\t' {
			if name != "" {
				value.WriteByte(' ')
				value.Write(bytes.TrimSpace(line))
			}
			continue
		}

		flush()
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		name = canonicalName(string(line[:colon]))
		value.Write(bytes.TrimSpace(line[colon+1:]))
	}
	flush()

	return block
}

func canonicalName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if long, ok := compactForms[name]; ok {
		return long
	}
	return name
}

func trimCR(line []byte) []byte {
	return bytes.TrimSuffix(line, []byte("\r"))
}
