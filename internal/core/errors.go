// Package core defines sentinel errors.
package core

import "errors"

var (
	// Packet decoding errors
	ErrPacketTooShort   = errors.New("sipscan: packet too short")
	ErrUnsupportedProto = errors.New("sipscan: unsupported protocol")
	ErrNotSIP           = errors.New("sipscan: payload is not a SIP message")
	ErrFragmentPending  = errors.New("sipscan: IP fragment awaiting reassembly")

	// Record errors, recovered per record
	ErrMalformedRecord = errors.New("sipscan: malformed SIP record")

	// Stream errors, fatal for one input file only
	ErrStreamFailed = errors.New("sipscan: capture stream failed")

	// Batch errors
	ErrTracesDirNotFound = errors.New("sipscan: traces directory not found")
	ErrNoInputFiles      = errors.New("sipscan: no input files")

	// Configuration errors
	ErrConfigInvalid  = errors.New("sipscan: invalid configuration")
	ErrPluginNotFound = errors.New("sipscan: plugin not found")
)
