// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scbs

import (
	"fmt"
	"strings"
)

// MultiWrite writes Value to register RegAddr on every cell (BSMWR).
type MultiWrite struct {
	Packet
	RegAddr uint32
	Value   string
}

// NewMultiWrite creates a MultiWrite packet. value is clipped to the field width.
func NewMultiWrite(regAddr uint32, value string) *MultiWrite {
	p := &MultiWrite{RegAddr: regAddr, Value: ClipToFieldWidth(value)}
	p.Packet = framed(PacketMultiWrite, p.body())
	return p
}

// ParseMultiWrite decodes a MultiWrite packet. On failure all fields are zero.
func ParseMultiWrite(raw string) *MultiWrite {
	p := &MultiWrite{}
	fields, err := p.decodeAs(PacketMultiWrite, raw, 3, 3)
	if err != nil {
		return p
	}
	addr, err := parseAddress(fields[1])
	if err != nil {
		p.fail(PacketMultiWrite, err)
		return p
	}
	p.RegAddr = addr
	p.Value = ClipToFieldWidth(fields[2])
	return p
}

// Encode formats the packet fields into a framed string
func (p *MultiWrite) Encode() string {
	return Frame(PacketMultiWrite, p.body())
}

func (p *MultiWrite) body() string {
	return FormatAddress(p.RegAddr) + string(Delimiter) + p.Value
}

// MultiRead reads register RegAddr on every cell (BSMRD). Each cell appends
// its reading to Values before passing the packet on.
type MultiRead struct {
	Packet
	RegAddr uint32
	Values  []string
}

// NewMultiRead creates a MultiRead packet. Values are clipped to the field
// width; values beyond MaxMultiValues or the packet content budget are dropped.
func NewMultiRead(regAddr uint32, values ...string) *MultiRead {
	clipped := make([]string, 0, len(values))
	for _, v := range values {
		if len(clipped) == MaxMultiValues {
			break
		}
		clipped = append(clipped, ClipToFieldWidth(v))
	}
	p := &MultiRead{
		RegAddr: regAddr,
		Values:  DropExcessValues(FormatAddress(regAddr), clipped),
	}
	p.Packet = framed(PacketMultiRead, p.body())
	return p
}

// ParseMultiRead decodes a MultiRead packet. A packet carrying more than
// MaxMultiValues values is invalid. On failure all fields are zero.
func ParseMultiRead(raw string) *MultiRead {
	p := &MultiRead{}
	fields, err := p.decodeAs(PacketMultiRead, raw, 2, -1)
	if err != nil {
		return p
	}
	addr, err := parseAddress(fields[1])
	if err != nil {
		p.fail(PacketMultiRead, err)
		return p
	}
	values := fields[2:]
	if len(values) > MaxMultiValues {
		p.fail(PacketMultiRead, ErrTooManyValues)
		return p
	}
	p.RegAddr = addr
	p.Values = make([]string, len(values))
	for i, v := range values {
		p.Values[i] = ClipToFieldWidth(v)
	}
	return p
}

// NumValues returns the number of readings accumulated so far
func (p *MultiRead) NumValues() int {
	return len(p.Values)
}

// Append returns a new MultiRead with value added after the existing values.
// The receiver is not modified. Returns ErrTooManyValues when the packet
// already holds MaxMultiValues values or the frame has no room left for value.
func (p *MultiRead) Append(value string) (*MultiRead, error) {
	if len(p.Values) >= MaxMultiValues {
		return nil, ErrTooManyValues
	}
	values := make([]string, 0, len(p.Values)+1)
	values = append(values, p.Values...)
	values = append(values, value)
	next := NewMultiRead(p.RegAddr, values...)
	if len(next.Values) != len(values) {
		return nil, fmt.Errorf("%w: frame full after %d values", ErrTooManyValues, len(p.Values))
	}
	return next, nil
}

// Encode formats the packet fields into a framed string
func (p *MultiRead) Encode() string {
	return Frame(PacketMultiRead, p.body())
}

func (p *MultiRead) body() string {
	var b strings.Builder
	b.WriteString(FormatAddress(p.RegAddr))
	for _, v := range DropExcessValues(FormatAddress(p.RegAddr), p.Values) {
		b.WriteByte(Delimiter)
		b.WriteString(v)
	}
	return b.String()
}
