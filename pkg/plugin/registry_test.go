package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/sipscan/internal/core"
)

type mockParser struct {
	name    string
	initErr error
	cfg     map[string]any
}

func (m *mockParser) Name() string { return m.name }
func (m *mockParser) Init(cfg map[string]any) error { m.cfg = cfg; return m.initErr }
func (m *mockParser) Start(ctx context.Context) error { return nil }
func (m *mockParser) Stop(ctx context.Context) error { return nil }

func (m *mockParser) CanHandle(pkt *core.DecodedPacket) bool { return true }

func (m *mockParser) Handle(pkt *core.DecodedPacket) (*core.SIPRecord, error) {
	return nil, core.ErrNotSIP
}

func TestRegisterAndGetParser(t *testing.T) {
	parserReg.Reset()

	RegisterParser("test_parser", func() Parser { return &mockParser{name: "test_parser"} })

	factory, err := GetParserFactory("test_parser")
	require.NoError(t, err)
	assert.Equal(t, "test_parser", factory().Name())
}

func TestGetNotFoundReturnsError(t *testing.T) {
	parserReg.Reset()

	_, err := GetParserFactory("nonexistent")
	assert.ErrorIs(t, err, core.ErrPluginNotFound)

	_, err = NewParser("nonexistent", nil)
	assert.ErrorIs(t, err, core.ErrPluginNotFound)
}

func TestNewParserInitialises(t *testing.T) {
	parserReg.Reset()

	var created *mockParser
	RegisterParser("p", func() Parser {
		created = &mockParser{name: "p"}
		return created
	})

	p, err := NewParser("p", map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Same(t, created, p)
	assert.Equal(t, map[string]any{"k": "v"}, created.cfg)
}

func TestNewParserInitFailure(t *testing.T) {
	parserReg.Reset()

	boom := errors.New("boom")
	RegisterParser("bad", func() Parser { return &mockParser{name: "bad", initErr: boom} })

	_, err := NewParser("bad", nil)
	assert.ErrorIs(t, err, boom)
}

func TestRegisterPanics(t *testing.T) {
	parserReg.Reset()
	factory := func() Parser { return &mockParser{name: "dup"} }

	RegisterParser("dup", factory)
	assert.Panics(t, func() { RegisterParser("dup", factory) }, "duplicate")
	assert.Panics(t, func() { RegisterParser("", factory) }, "empty name")
	assert.Panics(t, func() { RegisterParser("nil", nil) }, "nil factory")
}

func TestListParsersSorted(t *testing.T) {
	parserReg.Reset()
	assert.Empty(t, ListParsers())

	RegisterParser("parser_z", func() Parser { return &mockParser{name: "parser_z"} })
	RegisterParser("parser_x", func() Parser { return &mockParser{name: "parser_x"} })

	assert.Equal(t, []string{"parser_x", "parser_z"}, ListParsers())
}
