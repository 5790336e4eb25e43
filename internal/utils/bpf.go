package utils

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// CompileBpf compiles a tcpdump-style filter expression for the given link type.
func CompileBpf(linkType layers.LinkType, filter string, snapLen int) ([]bpf.RawInstruction, error) {
	pcapBpf, err := pcap.CompileBPFFilter(linkType, snapLen, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to compile BPF filter: %w", err)
	}

	rawBpf := make([]bpf.RawInstruction, len(pcapBpf))
	for i, ins := range pcapBpf {
		rawBpf[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return rawBpf, nil
}

// Matcher evaluates a compiled BPF program against frames in user space.
type Matcher struct {
	vm *bpf.VM
}

// NewMatcher builds a matcher from raw instructions.
func NewMatcher(raw []bpf.RawInstruction) (*Matcher, error) {
	prog, ok := bpf.Disassemble(raw)
	if !ok {
		return nil, fmt.Errorf("failed to disassemble BPF program")
	}
	vm, err := bpf.NewVM(prog)
	if err != nil {
		return nil, fmt.Errorf("failed to load BPF program: %w", err)
	}
	return &Matcher{vm: vm}, nil
}

// CompileMatcher compiles filter and wraps it in a Matcher.
func CompileMatcher(linkType layers.LinkType, filter string, snapLen int) (*Matcher, error) {
	raw, err := CompileBpf(linkType, filter, snapLen)
	if err != nil {
		return nil, err
	}
	return NewMatcher(raw)
}

// Match reports whether the frame passes the filter. A nil matcher accepts everything.
func (m *Matcher) Match(data []byte) bool {
	if m == nil {
		return true
	}
	n, err := m.vm.Run(data)
	return err == nil && n > 0
}
