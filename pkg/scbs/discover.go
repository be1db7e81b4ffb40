// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scbs

// Discover is a cell discover packet (BSDIS). Each cell takes LastCellID+1 as
// its own ID and passes a new Discover carrying that ID down the chain.
type Discover struct {
	Packet
	LastCellID uint16
}

// NewDiscover creates a Discover packet carrying lastCellID
func NewDiscover(lastCellID uint16) *Discover {
	p := &Discover{LastCellID: lastCellID}
	p.Packet = framed(PacketDiscover, p.body())
	return p
}

// ParseDiscover decodes a Discover packet. On failure LastCellID is zero.
func ParseDiscover(raw string) *Discover {
	p := &Discover{}
	fields, err := p.decodeAs(PacketDiscover, raw, 2, 2)
	if err != nil {
		return p
	}
	id, err := parseCellID(fields[1])
	if err != nil {
		p.fail(PacketDiscover, err)
		return p
	}
	p.LastCellID = id
	return p
}

// Encode formats the packet fields into a framed string
func (p *Discover) Encode() string {
	return Frame(PacketDiscover, p.body())
}

func (p *Discover) body() string {
	return formatCellID(p.LastCellID)
}
