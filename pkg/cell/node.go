// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package cell implements an SCBS bus cell: it decodes each received line,
// acts on the packets addressed to it and forwards the rest down the chain.
package cell

import (
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/CoolNamesAllTaken/scbs/pkg/scbs"
)

// Node is a single cell on the bus. It is not safe for concurrent use; one
// goroutine drives it through Poll or HandleLine.
type Node struct {
	regs     RegisterBackend
	sink     TransmitSink
	log      zerolog.Logger
	observer Observer

	cellID   uint16
	assigned bool
}

// Option configures a Node
type Option func(*Node)

// WithLogger sets the node's logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(n *Node) {
		n.log = log
	}
}

// WithObserver adds an observer. May be given more than once.
func WithObserver(obs Observer) Option {
	return func(n *Node) {
		if existing, ok := n.observer.(Observers); ok {
			n.observer = append(existing, obs)
			return
		}
		n.observer = Observers{obs}
	}
}

// NewNode creates an unassigned node backed by regs that transmits on sink
func NewNode(regs RegisterBackend, sink TransmitSink, opts ...Option) *Node {
	n := &Node{
		regs:     regs,
		sink:     sink,
		log:      zerolog.Nop(),
		observer: Observers(nil),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// CellID returns the ID assigned by the last discover packet (0 before discovery)
func (n *Node) CellID() uint16 {
	return n.cellID
}

// Assigned reports whether the node has been discovered
func (n *Node) Assigned() bool {
	return n.assigned
}

// Poll runs at most one decode-dispatch-respond cycle. It returns false
// without doing anything when src has no complete line.
func (n *Node) Poll(src LineSource) bool {
	line, ok := src.TryReceiveLine()
	if !ok {
		return false
	}
	n.HandleLine(line)
	return true
}

// HandleLine decodes one received line and acts on it. Invalid packets are
// answered with ERR:0F and never forwarded. Blank lines are ignored.
func (n *Node) HandleLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	msg, err := scbs.Decode(line)
	if err != nil {
		t := scbs.PacketUnknown
		if msg != nil {
			t = msg.Type()
		}
		n.log.Warn().Err(err).Str("line", line).Stringer("type", t).Msg("invalid packet")
		n.observer.Received(t, false)
		n.respondError(scbs.ErrCodeReceivedInvalidPacket)
		return
	}
	n.observer.Received(msg.Type(), true)

	switch p := msg.(type) {
	case *scbs.Discover:
		n.handleDiscover(p)
	case *scbs.MultiWrite:
		n.handleMultiWrite(p)
	case *scbs.MultiRead:
		n.handleMultiRead(p)
	case *scbs.SingleWrite:
		n.handleSingleWrite(p)
	case *scbs.SingleRead:
		n.handleSingleRead(p)
	case *scbs.SingleResponse:
		n.forward(p)
	}
}

// handleDiscover takes the next cell ID. A chain that has used every ID is
// refused with ERR:02 and the node keeps its current assignment.
func (n *Node) handleDiscover(p *scbs.Discover) {
	if p.LastCellID == math.MaxUint16 {
		n.log.Warn().Uint16("last_cell_id", p.LastCellID).Msg("no cell id left to assign")
		n.respondError(scbs.ErrCodePacketLengthExceeded)
		return
	}
	n.cellID = p.LastCellID + 1
	n.assigned = true
	n.log.Info().Uint16("cell_id", n.cellID).Msg("assigned cell id")
	n.observer.Assigned(n.cellID)

	n.transmit(scbs.NewDiscover(n.cellID))
	n.observer.Forwarded(scbs.PacketDiscover)
}

func (n *Node) handleMultiWrite(p *scbs.MultiWrite) {
	if err := n.regs.WriteRegister(p.RegAddr, p.Value); err != nil {
		n.log.Debug().Err(err).Str("reg", scbs.FormatAddress(p.RegAddr)).Msg("multi write failed")
		n.respondError(scbs.CodeOf(err))
		return
	}
	n.forward(p)
}

func (n *Node) handleMultiRead(p *scbs.MultiRead) {
	if p.NumValues() >= scbs.MaxMultiValues {
		n.respondError(scbs.ErrCodePacketLengthExceeded)
		return
	}
	value, err := n.regs.ReadRegister(p.RegAddr)
	if err != nil {
		n.log.Debug().Err(err).Str("reg", scbs.FormatAddress(p.RegAddr)).Msg("multi read failed")
		n.respondError(scbs.CodeOf(err))
		return
	}
	next, err := p.Append(value)
	if err != nil {
		n.respondError(scbs.ErrCodePacketLengthExceeded)
		return
	}
	n.transmit(next)
	n.observer.Forwarded(scbs.PacketMultiRead)
}

func (n *Node) handleSingleWrite(p *scbs.SingleWrite) {
	if !n.isForMe(p.CellID) {
		n.forward(p)
		return
	}
	if err := n.regs.WriteRegister(p.RegAddr, p.Value); err != nil {
		n.respondError(scbs.CodeOf(err))
		return
	}
	n.respond(scbs.ResponseOK)
}

func (n *Node) handleSingleRead(p *scbs.SingleRead) {
	if !n.isForMe(p.CellID) {
		n.forward(p)
		return
	}
	value, err := n.regs.ReadRegister(p.RegAddr)
	if err != nil {
		n.respondError(scbs.CodeOf(err))
		return
	}
	n.respond(value)
}

// isForMe never matches before discovery
func (n *Node) isForMe(cellID uint16) bool {
	return n.assigned && cellID == n.cellID
}

// forward retransmits a packet unchanged
func (n *Node) forward(msg scbs.Message) {
	n.log.Debug().Stringer("type", msg.Type()).Msg("forward")
	n.sink.Send(msg.Raw())
	n.observer.Forwarded(msg.Type())
}

func (n *Node) respond(value string) {
	n.transmit(scbs.NewSingleResponse(n.cellID, value))
	n.observer.Responded(scbs.ErrCodeNone)
}

func (n *Node) respondError(code scbs.ErrorCode) {
	n.log.Debug().Str("code", code.Value()).Msg("error response")
	n.transmit(scbs.NewErrorResponse(n.cellID, code))
	n.observer.Responded(code)
}

func (n *Node) transmit(msg scbs.Message) {
	n.sink.Send(msg.Raw())
}
