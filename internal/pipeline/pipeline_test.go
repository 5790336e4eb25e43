package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/bpf"

	"firestige.xyz/sipscan/internal/analyzer"
	"firestige.xyz/sipscan/internal/core"
	"firestige.xyz/sipscan/internal/testutil"
	"firestige.xyz/sipscan/internal/utils"
	"firestige.xyz/sipscan/plugins/parser/sip"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 123456000, time.UTC)

func bigInvite() []byte {
	return testutil.SIPMessage(
		"INVITE sip:carol@example.com SIP/2.0",
		"To: <sip:carol@example.com>",
		"From: <sip:alice@example.com>;tag=99",
		"P-Access-Network-Info: 3GPP-E-UTRAN-FDD;utran-cell-id-3gpp=2080100010000002",
		"X-Padding: "+strings.Repeat("a", 1200),
		"Content-Length: 0",
	)
}

func malformedRegister() []byte {
	return testutil.SIPMessage(
		"REGISTER sip:ims.example.com SIP/2.0",
		"To: <sip:\xff\xfe@ims.example.com>",
		"Content-Length: 0",
	)
}

func writeCapture(t *testing.T) string {
	t.Helper()
	frags := testutil.FragmentedUDP(t, 5060, 5060, bigInvite(), 800, 7)
	path := filepath.Join(t.TempDir(), "mixed.pcap")
	testutil.WritePcap(t, path,
		testutil.Frame{Data: testutil.UDP(t, 5060, 5060, testutil.Register), Time: base},
		testutil.Frame{Data: testutil.UDP(t, 40000, 53, []byte("not a sip payload")), Time: testutil.At(base, 1)},
		testutil.Frame{Data: testutil.UDP(t, 5060, 5060, testutil.OK), Time: testutil.At(base, 2)},
		testutil.Frame{Data: testutil.UDP(t, 5060, 5060, []byte("keepalive")), Time: testutil.At(base, 3)},
		testutil.Frame{Data: frags[0], Time: testutil.At(base, 4)},
		testutil.Frame{Data: frags[1], Time: testutil.At(base, 5)},
		testutil.Frame{Data: testutil.TCP(t, 40000, 5060, testutil.Invite), Time: testutil.At(base, 6)},
		testutil.Frame{Data: testutil.UDP(t, 5060, 5060, malformedRegister()), Time: testutil.At(base, 7)},
	)
	return path
}

func TestRunMixedCapture(t *testing.T) {
	var observed []analyzer.Outcome
	p := NewBuilder(writeCapture(t)).
		WithParser(sip.NewSIPParser()).
		WithLocation(time.UTC).
		WithLabel(core.LabelRunID, "test").
		WithObserver(func(rec core.PacketRecord, res analyzer.Result) {
			observed = append(observed, res.Outcome)
		}).
		Build()

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, analyzer.Summary{TotalRecords: 5, RegisterCount: 1, InviteCount: 2, Malformed: 1}, res.Summary)
	assert.Equal(t, []analyzer.Outcome{
		analyzer.OutcomeMatched,
		analyzer.OutcomeSkipped,
		analyzer.OutcomeMatched,
		analyzer.OutcomeMatched,
		analyzer.OutcomeMalformed,
	}, observed)

	require.Len(t, res.Findings, 3)
	reg := res.Findings[0]
	assert.Equal(t, analyzer.KindRegister, reg.Kind)
	assert.Equal(t, "2024-03-01 12:00:00.123456", reg.Timestamp)
	assert.Equal(t, 1, reg.PacketIndex)
	assert.Equal(t, "<sip:alice@ims.example.com>", reg.To.Raw)
	assert.False(t, reg.To.HasParams())
	assert.Equal(t, []analyzer.Param{analyzer.KeyValue("tag", "456248")}, reg.From.Params)
	require.NotNil(t, reg.CellularNetworkInfo)
	assert.Len(t, reg.CellularNetworkInfo.Params, 2)

	reassembled := res.Findings[1]
	assert.Equal(t, analyzer.KindInvite, reassembled.Kind)
	assert.Equal(t, 6, reassembled.PacketIndex)
	assert.Equal(t, "2024-03-01 12:00:00.128456", reassembled.Timestamp)
	require.NotNil(t, reassembled.PAccessNetworkInfo)
	assert.Nil(t, reassembled.CellularNetworkInfo)

	assert.Equal(t, 7, res.Findings[2].PacketIndex)

	assert.Equal(t, Stats{
		Received:   8,
		Fragments:  1,
		Candidates: 6,
		NotSIP:     1,
		Records:    5,
	}, res.Stats)
	assert.Equal(t, res.Stats, p.Stats())
}

func TestRunAppliesMatcher(t *testing.T) {
	// ip[9] == 17: UDP only.
	raw, err := bpf.Assemble([]bpf.Instruction{
		bpf.LoadAbsolute{Off: 23, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 17, SkipFalse: 1},
		bpf.RetConstant{Val: 65535},
		bpf.RetConstant{Val: 0},
	})
	require.NoError(t, err)
	m, err := utils.NewMatcher(raw)
	require.NoError(t, err)

	res, err := NewBuilder(writeCapture(t)).
		WithParser(sip.NewSIPParser()).
		WithMatcher(m).
		Build().
		Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), res.Stats.Filtered)
	assert.Equal(t, 1, res.Summary.InviteCount)
	assert.Equal(t, 4, res.Summary.TotalRecords)
}

func TestRunLocalTimeByDefault(t *testing.T) {
	res, err := New(Config{Path: writeCapture(t), Parser: sip.NewSIPParser()}).Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, res.Findings)
	assert.Equal(t, base.In(time.Local).Format(analyzer.TimestampLayout), res.Findings[0].Timestamp)
}

func TestRunMissingFile(t *testing.T) {
	_, err := New(Config{
		Path:   filepath.Join(t.TempDir(), "missing.pcap"),
		Parser: sip.NewSIPParser(),
	}).Run(context.Background())
	assert.ErrorIs(t, err, core.ErrStreamFailed)
}

func TestRunStreamFailsMidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truncated.pcap")
	testutil.WritePcap(t, path,
		testutil.Frame{Data: testutil.UDP(t, 5060, 5060, testutil.Register), Time: base},
		testutil.Frame{Data: testutil.UDP(t, 5060, 5060, testutil.Invite), Time: testutil.At(base, 1)},
	)
	testutil.AppendCorruptRecord(t, path)

	res, err := New(Config{Path: path, Parser: sip.NewSIPParser(), Location: time.UTC}).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStreamFailed)

	assert.Equal(t, analyzer.Summary{TotalRecords: 2, RegisterCount: 1, InviteCount: 1}, res.Summary)
	require.Len(t, res.Findings, 2)
	assert.Equal(t, analyzer.KindRegister, res.Findings[0].Kind)
	assert.Equal(t, analyzer.KindInvite, res.Findings[1].Kind)
	assert.Equal(t, uint64(2), res.Stats.Received)
}

func TestRunWithoutParser(t *testing.T) {
	_, err := New(Config{Path: writeCapture(t)}).Run(context.Background())
	assert.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{Path: writeCapture(t), Parser: sip.NewSIPParser()}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
