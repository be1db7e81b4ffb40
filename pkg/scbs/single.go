// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scbs

// SingleWrite writes Value to register RegAddr on cell CellID only (BSSWR).
type SingleWrite struct {
	Packet
	CellID  uint16
	RegAddr uint32
	Value   string
}

// NewSingleWrite creates a SingleWrite packet. value is clipped to the field width.
func NewSingleWrite(cellID uint16, regAddr uint32, value string) *SingleWrite {
	p := &SingleWrite{CellID: cellID, RegAddr: regAddr, Value: ClipToFieldWidth(value)}
	p.Packet = framed(PacketSingleWrite, p.body())
	return p
}

// ParseSingleWrite decodes a SingleWrite packet. On failure all fields are zero.
func ParseSingleWrite(raw string) *SingleWrite {
	p := &SingleWrite{}
	fields, err := p.decodeAs(PacketSingleWrite, raw, 4, 4)
	if err != nil {
		return p
	}
	id, err := parseCellID(fields[1])
	if err != nil {
		p.fail(PacketSingleWrite, err)
		return p
	}
	addr, err := parseAddress(fields[2])
	if err != nil {
		p.fail(PacketSingleWrite, err)
		return p
	}
	p.CellID = id
	p.RegAddr = addr
	p.Value = ClipToFieldWidth(fields[3])
	return p
}

// Encode formats the packet fields into a framed string
func (p *SingleWrite) Encode() string {
	return Frame(PacketSingleWrite, p.body())
}

func (p *SingleWrite) body() string {
	return formatCellID(p.CellID) + string(Delimiter) +
		FormatAddress(p.RegAddr) + string(Delimiter) + p.Value
}

// SingleRead reads register RegAddr from cell CellID only (BSSRD).
type SingleRead struct {
	Packet
	CellID  uint16
	RegAddr uint32
}

// NewSingleRead creates a SingleRead packet
func NewSingleRead(cellID uint16, regAddr uint32) *SingleRead {
	p := &SingleRead{CellID: cellID, RegAddr: regAddr}
	p.Packet = framed(PacketSingleRead, p.body())
	return p
}

// ParseSingleRead decodes a SingleRead packet. On failure all fields are zero.
func ParseSingleRead(raw string) *SingleRead {
	p := &SingleRead{}
	fields, err := p.decodeAs(PacketSingleRead, raw, 3, 3)
	if err != nil {
		return p
	}
	id, err := parseCellID(fields[1])
	if err != nil {
		p.fail(PacketSingleRead, err)
		return p
	}
	addr, err := parseAddress(fields[2])
	if err != nil {
		p.fail(PacketSingleRead, err)
		return p
	}
	p.CellID = id
	p.RegAddr = addr
	return p
}

// Encode formats the packet fields into a framed string
func (p *SingleRead) Encode() string {
	return Frame(PacketSingleRead, p.body())
}

func (p *SingleRead) body() string {
	return formatCellID(p.CellID) + string(Delimiter) + FormatAddress(p.RegAddr)
}

// SingleResponse is a cell's reply to a SingleWrite or SingleRead, or an error
// report (BSSRS). Value is a reading, ResponseOK, or "ERR:<HEX>".
type SingleResponse struct {
	Packet
	CellID uint16
	Value  string
}

// NewSingleResponse creates a SingleResponse packet. value is clipped to the field width.
func NewSingleResponse(cellID uint16, value string) *SingleResponse {
	p := &SingleResponse{CellID: cellID, Value: ClipToFieldWidth(value)}
	p.Packet = framed(PacketSingleResponse, p.body())
	return p
}

// NewErrorResponse creates a SingleResponse reporting code from cell cellID
func NewErrorResponse(cellID uint16, code ErrorCode) *SingleResponse {
	return NewSingleResponse(cellID, code.Value())
}

// ParseSingleResponse decodes a SingleResponse packet. On failure all fields are zero.
func ParseSingleResponse(raw string) *SingleResponse {
	p := &SingleResponse{}
	fields, err := p.decodeAs(PacketSingleResponse, raw, 3, 3)
	if err != nil {
		return p
	}
	id, err := parseCellID(fields[1])
	if err != nil {
		p.fail(PacketSingleResponse, err)
		return p
	}
	p.CellID = id
	p.Value = ClipToFieldWidth(fields[2])
	return p
}

// ErrorCode returns the code carried by an error response
func (p *SingleResponse) ErrorCode() (ErrorCode, bool) {
	return ParseErrorValue(p.Value)
}

// Encode formats the packet fields into a framed string
func (p *SingleResponse) Encode() string {
	return Frame(PacketSingleResponse, p.body())
}

func (p *SingleResponse) body() string {
	return formatCellID(p.CellID) + string(Delimiter) + p.Value
}
