// Package file reads frames from pcap and pcapng capture files.
package file

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/sipscan/internal/core"
)

// Name identifies the source in logs.
const Name = "file"

// pcapng section header block type.
var ngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source streams packets from one capture file.
type Source struct {
	path   string
	file   *os.File
	reader packetReader
	index  int
}

// Open opens path and detects whether it holds pcap or pcapng data.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", core.ErrStreamFailed, path, err)
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: read header of %s: %v", core.ErrStreamFailed, path, err)
	}

	var r packetReader
	if bytes.Equal(magic, ngMagic) {
		r, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		r, err = pcapgo.NewReader(br)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", core.ErrStreamFailed, path, err)
	}

	return &Source{path: path, file: f, reader: r}, nil
}

// Path returns the file the source reads from.
func (s *Source) Path() string {
	return s.path
}

// LinkType returns the link type of the capture.
func (s *Source) LinkType() layers.LinkType {
	if s.reader == nil {
		return layers.LinkTypeEthernet
	}
	return s.reader.LinkType()
}

// ReadPacket returns the next frame. It returns io.EOF once the file is
// exhausted; a truncated trailing record is also reported as io.EOF.
func (s *Source) ReadPacket() (core.RawPacket, error) {
	if s.reader == nil {
		return core.RawPacket{}, fmt.Errorf("%w: source closed", core.ErrStreamFailed)
	}

	data, ci, err := s.reader.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return core.RawPacket{}, io.EOF
		}
		return core.RawPacket{}, fmt.Errorf("%w: read %s: %v", core.ErrStreamFailed, s.path, err)
	}

	s.index++
	return core.RawPacket{
		Data:       data,
		Timestamp:  ci.Timestamp,
		CaptureLen: uint32(ci.CaptureLength),
		OrigLen:    uint32(ci.Length),
		LinkType:   uint8(s.LinkType()),
		Index:      s.index,
	}, nil
}

// Close releases the underlying file.
func (s *Source) Close() error {
	s.reader = nil
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
