// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cell

import (
	"strings"
	"testing"

	"github.com/CoolNamesAllTaken/scbs/pkg/scbs"
)

// ============================================================
// Test Helpers
// ============================================================

// recordingObserver counts observer notifications
type recordingObserver struct {
	received  map[scbs.PacketType]int
	invalid   int
	responses map[scbs.ErrorCode]int
	forwarded map[scbs.PacketType]int
	assigned  []uint16
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		received:  make(map[scbs.PacketType]int),
		responses: make(map[scbs.ErrorCode]int),
		forwarded: make(map[scbs.PacketType]int),
	}
}

func (o *recordingObserver) Received(t scbs.PacketType, valid bool) {
	o.received[t]++
	if !valid {
		o.invalid++
	}
}

func (o *recordingObserver) Responded(code scbs.ErrorCode) { o.responses[code]++ }
func (o *recordingObserver) Forwarded(t scbs.PacketType)    { o.forwarded[t]++ }
func (o *recordingObserver) Assigned(cellID uint16)         { o.assigned = append(o.assigned, cellID) }

// newTestNode creates a node with default registers and a collecting sink
func newTestNode(opts ...Option) (*Node, *SimulatedRegisters, *CollectSink) {
	regs := NewSimulatedRegisters(DefaultConfig())
	sink := &CollectSink{}
	return NewNode(regs, sink, opts...), regs, sink
}

// discovered returns a node that has been assigned cell ID id
func discovered(t *testing.T, id uint16) (*Node, *SimulatedRegisters, *CollectSink) {
	t.Helper()
	n, regs, sink := newTestNode()
	n.HandleLine(scbs.NewDiscover(id - 1).Raw())
	if n.CellID() != id {
		t.Fatalf("CellID = %d, want %d", n.CellID(), id)
	}
	sink.Reset()
	return n, regs, sink
}

// expectSent checks that the sink holds exactly the given frames
func expectSent(t *testing.T, sink *CollectSink, want ...string) {
	t.Helper()
	got := sink.Lines()
	if len(got) != len(want) {
		t.Fatalf("sent %d frames %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// ============================================================
// Discover Tests
// ============================================================

func TestNode_Discover(t *testing.T) {
	n, _, sink := newTestNode()
	if n.Assigned() {
		t.Fatal("new node should not be assigned")
	}

	n.HandleLine("$BSDIS,0*53")
	if !n.Assigned() || n.CellID() != 1 {
		t.Errorf("assigned=%v cell=%d", n.Assigned(), n.CellID())
	}
	expectSent(t, sink, "$BSDIS,1*52")

	// every discover reassigns
	sink.Reset()
	n.HandleLine("$BSDIS,53*65")
	if n.CellID() != 54 {
		t.Errorf("CellID = %d, want 54", n.CellID())
	}
	expectSent(t, sink, "$BSDIS,54*62")
}

func TestNode_DiscoverWithLineTerminator(t *testing.T) {
	n, _, sink := newTestNode()
	n.HandleLine("$BSDIS,0*53\r\n")
	expectSent(t, sink, "$BSDIS,1*52")
}

func TestNode_DiscoverOutOfIDs(t *testing.T) {
	last := scbs.NewDiscover(65535).Raw()

	fresh, _, freshSink := newTestNode()
	fresh.HandleLine(last)
	if fresh.Assigned() {
		t.Error("node should stay unassigned")
	}
	expectSent(t, freshSink, "$BSSRS,0,ERR:02*0E")

	// cell 0 still never matches
	freshSink.Reset()
	srd := scbs.NewSingleRead(0, scbs.RegSetOutputVoltage).Raw()
	fresh.HandleLine(srd)
	expectSent(t, freshSink, srd)

	n, _, sink := discovered(t, 7)
	n.HandleLine(last)
	if !n.Assigned() || n.CellID() != 7 {
		t.Errorf("assigned=%v cell=%d, want cell 7 kept", n.Assigned(), n.CellID())
	}
	expectSent(t, sink, "$BSSRS,7,ERR:02*09")
}

// ============================================================
// Single Packet Tests
// ============================================================

func TestNode_SingleBeforeDiscovery(t *testing.T) {
	n, _, sink := newTestNode()

	// cell ID 0 matches the unassigned default but is not for this node
	srd := scbs.NewSingleRead(0, scbs.RegSetOutputVoltage).Raw()
	swr := scbs.NewSingleWrite(0, scbs.RegSetOutputVoltage, "1").Raw()
	n.HandleLine(srd)
	n.HandleLine(swr)
	expectSent(t, sink, srd, swr)
}

func TestNode_SingleReadForMe(t *testing.T) {
	tests := []struct {
		name string
		addr uint32
		want string
	}{
		{"voltage", scbs.RegSetOutputVoltage, "0.000"},
		{"current", scbs.RegReadOutputCurrent, "0.000"},
		{"firmware", scbs.RegReadFirmwareVersion, DefaultFirmwareVersion},
		{"unknown", 0x4000, scbs.ErrCodeAddrNotRecognized.Value()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, _, sink := discovered(t, 1)
			n.HandleLine(scbs.NewSingleRead(1, tt.addr).Raw())
			expectSent(t, sink, scbs.NewSingleResponse(1, tt.want).Raw())
		})
	}
}

func TestNode_SingleWriteForMe(t *testing.T) {
	tests := []struct {
		name  string
		addr  uint32
		value string
		want  string
	}{
		{"voltage", scbs.RegSetOutputVoltage, "3.3", scbs.ResponseOK},
		{"current is read-only", scbs.RegReadOutputCurrent, "1", "ERR:03"},
		{"firmware is read-only", scbs.RegReadFirmwareVersion, "x", "ERR:03"},
		{"unknown register", 0x4000, "1", "ERR:01"},
		{"unparsable voltage", scbs.RegSetOutputVoltage, "abc", "ERR:0F"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, _, sink := discovered(t, 1)
			n.HandleLine(scbs.NewSingleWrite(1, tt.addr, tt.value).Raw())
			expectSent(t, sink, scbs.NewSingleResponse(1, tt.want).Raw())
		})
	}
}

func TestNode_WriteThenRead(t *testing.T) {
	n, regs, sink := discovered(t, 2)

	n.HandleLine("$BSSWR,2,1000,5*6D")
	n.HandleLine("$BSSRD,2,1000*67")
	n.HandleLine("$BSSRD,2,2000*64")
	expectSent(t, sink,
		"$BSSRS,2,OK*75",
		scbs.NewSingleResponse(2, "5.000").Raw(),
		scbs.NewSingleResponse(2, "500.000").Raw(),
	)
	if regs.OutputVoltage() != 5 {
		t.Errorf("OutputVoltage = %v", regs.OutputVoltage())
	}
}

func TestNode_SingleForOtherCell(t *testing.T) {
	n, _, sink := discovered(t, 1)

	lines := []string{
		scbs.NewSingleRead(2, scbs.RegSetOutputVoltage).Raw(),
		scbs.NewSingleWrite(3, scbs.RegSetOutputVoltage, "1.0").Raw(),
		"$BSSRS,2,OK*75",
	}
	for _, line := range lines {
		n.HandleLine(line)
	}
	expectSent(t, sink, lines...)
}

// ============================================================
// Multi Packet Tests
// ============================================================

func TestNode_MultiWrite(t *testing.T) {
	n, regs, sink := discovered(t, 1)

	line := scbs.NewMultiWrite(scbs.RegSetOutputVoltage, "2.5").Raw()
	n.HandleLine(line)
	expectSent(t, sink, line)
	if regs.OutputVoltage() != 2.5 {
		t.Errorf("OutputVoltage = %v", regs.OutputVoltage())
	}
}

func TestNode_MultiWriteError(t *testing.T) {
	n, _, sink := discovered(t, 1)

	n.HandleLine(scbs.NewMultiWrite(scbs.RegReadOutputCurrent, "2.5").Raw())
	expectSent(t, sink, scbs.NewErrorResponse(1, scbs.ErrCodeWriteNotSupported).Raw())
}

func TestNode_MultiRead(t *testing.T) {
	n, _, sink := discovered(t, 1)

	n.HandleLine(scbs.NewMultiRead(scbs.RegReadFirmwareVersion).Raw())
	n.HandleLine(scbs.NewMultiRead(scbs.RegReadOutputCurrent, "1.000").Raw())
	expectSent(t, sink,
		scbs.NewMultiRead(scbs.RegReadFirmwareVersion, DefaultFirmwareVersion).Raw(),
		scbs.NewMultiRead(scbs.RegReadOutputCurrent, "1.000", "0.000").Raw(),
	)
}

func TestNode_MultiReadFull(t *testing.T) {
	n, _, sink := discovered(t, 1)

	values := strings.Split(strings.TrimSuffix(strings.Repeat("1,", scbs.MaxMultiValues), ","), ",")
	n.HandleLine(scbs.NewMultiRead(scbs.RegSetOutputVoltage, values...).Raw())
	expectSent(t, sink, "$BSSRS,1,ERR:02*0F")
}

// fixedRegisters answers every read with the same value
type fixedRegisters struct{ value string }

func (r fixedRegisters) ReadRegister(uint32) (string, error) { return r.value, nil }
func (r fixedRegisters) WriteRegister(uint32, string) error  { return scbs.ErrCodeWriteNotSupported }

func TestNode_MultiReadFrameFull(t *testing.T) {
	sink := &CollectSink{}
	n := NewNode(fixedRegisters{value: strings.Repeat("8", scbs.MaxFieldLen-1)}, sink)
	n.HandleLine(scbs.NewDiscover(0).Raw())
	sink.Reset()

	line := scbs.NewMultiRead(scbs.RegReadOutputCurrent).Raw()
	for hop := 1; hop <= 9; hop++ {
		n.HandleLine(line)
		sent := sink.Lines()
		if len(sent) != 1 {
			t.Fatalf("hop %d: sent %v", hop, sent)
		}
		p := scbs.ParseMultiRead(sent[0])
		if !p.IsValid() || p.NumValues() != hop {
			t.Fatalf("hop %d: got %q (values=%d err=%v)", hop, sent[0], p.NumValues(), p.Err())
		}
		line = sent[0]
		sink.Reset()
	}

	n.HandleLine(line)
	expectSent(t, sink, "$BSSRS,1,ERR:02*0F")
}

func TestNode_MultiReadUnknownRegister(t *testing.T) {
	n, _, sink := discovered(t, 1)

	n.HandleLine(scbs.NewMultiRead(0x4000).Raw())
	expectSent(t, sink, scbs.NewErrorResponse(1, scbs.ErrCodeAddrNotRecognized).Raw())
}

// ============================================================
// Invalid Packet Tests
// ============================================================

func TestNode_InvalidPackets(t *testing.T) {
	tests := []string{
		"garbage",
		"$BSSRD,53,0285*5C", // corrupted checksum
		"BSSRD,53,0285*5D",  // missing start token
		"$BSSRD,53,02855D",  // missing end token
		"$BSXXX,1*54",       // unknown header
		"$BSSRD,1*49",       // wrong field count
		"$BSSRD,1,ZZZ*3F",   // malformed address
	}

	for _, line := range tests {
		t.Run(line, func(t *testing.T) {
			n, _, sink := discovered(t, 1)
			n.HandleLine(line)
			expectSent(t, sink, "$BSSRS,1,ERR:0F*7B")
		})
	}
}

func TestNode_BlankLinesIgnored(t *testing.T) {
	obs := newRecordingObserver()
	n, _, sink := newTestNode(WithObserver(obs))
	for _, line := range []string{"", "\r\n", "   ", "\t\r"} {
		n.HandleLine(line)
	}
	expectSent(t, sink)
	if obs.invalid != 0 {
		t.Errorf("blank lines counted as invalid: %d", obs.invalid)
	}
}

// ============================================================
// Poll Tests
// ============================================================

func TestNode_Poll(t *testing.T) {
	n, _, sink := newTestNode()
	q := &Queue{}

	if n.Poll(q) {
		t.Error("Poll on empty source should return false")
	}

	q.Send("$BSDIS,0*53")
	q.Send(scbs.NewSingleRead(1, scbs.RegSetOutputVoltage).Raw())
	if !n.Poll(q) {
		t.Fatal("Poll should handle a queued line")
	}
	if q.Len() != 1 {
		t.Errorf("Poll should handle one line at a time, %d left", q.Len())
	}
	if !n.Poll(q) || n.Poll(q) {
		t.Error("expected exactly one more line")
	}
	expectSent(t, sink, "$BSDIS,1*52", scbs.NewSingleResponse(1, "0.000").Raw())
}

// ============================================================
// Observer Tests
// ============================================================

func TestNode_Observer(t *testing.T) {
	obs := newRecordingObserver()
	other := newRecordingObserver()
	n, _, _ := newTestNode(WithObserver(obs), WithObserver(other))

	n.HandleLine("$BSDIS,0*53")
	n.HandleLine("garbage")
	n.HandleLine(scbs.NewSingleRead(1, 0x4000).Raw())
	n.HandleLine("$BSSRS,2,OK*75")

	for _, o := range []*recordingObserver{obs, other} {
		if o.received[scbs.PacketDiscover] != 1 || o.received[scbs.PacketUnknown] != 1 {
			t.Errorf("received = %v", o.received)
		}
		if o.invalid != 1 {
			t.Errorf("invalid = %d", o.invalid)
		}
		if o.responses[scbs.ErrCodeReceivedInvalidPacket] != 1 || o.responses[scbs.ErrCodeAddrNotRecognized] != 1 {
			t.Errorf("responses = %v", o.responses)
		}
		if o.forwarded[scbs.PacketDiscover] != 1 || o.forwarded[scbs.PacketSingleResponse] != 1 {
			t.Errorf("forwarded = %v", o.forwarded)
		}
		if len(o.assigned) != 1 || o.assigned[0] != 1 {
			t.Errorf("assigned = %v", o.assigned)
		}
	}
}
