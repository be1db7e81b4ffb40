// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scbs

import (
	"fmt"
	"strconv"
	"strings"
)

// Packet holds the framing shared by every SCBS packet: the frame text, the
// packet type and the result of decoding it.
type Packet struct {
	raw   string
	ptype PacketType
	err   error
}

// ParsePacket decodes the framing of raw: start and end tokens, checksum and
// header. Field contents are not checked; use Decode or a variant parser for
// that. The returned packet is never nil.
func ParsePacket(raw string) *Packet {
	p := &Packet{ptype: PacketUnknown}
	p.decode(raw)
	return p
}

// decode fills p from raw and returns the comma-separated fields of the frame
// body (header first, without '$').
func (p *Packet) decode(raw string) []string {
	p.raw = boundFrame(raw)
	p.ptype = PacketUnknown
	p.err = nil

	end := strings.IndexByte(p.raw, EndToken)
	if end < 0 {
		p.err = ErrNoEndToken
		return nil
	}
	if p.raw[0] != StartToken {
		p.err = ErrNoStartToken
		return nil
	}

	received, digits := parseChecksum(p.raw[end+1:])
	if digits == 0 {
		p.err = ErrNoChecksum
		return nil
	}
	p.raw = p.raw[:end+1+digits]
	expected := Checksum(p.raw)
	if expected != received {
		p.err = &ChecksumError{Expected: expected, Received: received}
		return nil
	}

	fields := strings.Split(p.raw[1:end], string(Delimiter))
	t, ok := ParseHeader(fields[0])
	if !ok {
		p.err = fmt.Errorf("%w: %q", ErrUnknownHeader, fields[0])
		return nil
	}
	p.ptype = t
	return fields
}

// decodeAs runs the framing decode for a specific variant and checks the
// field count. maxFields < 0 means unbounded. The packet keeps type t even
// when decoding fails.
func (p *Packet) decodeAs(t PacketType, raw string, minFields, maxFields int) ([]string, error) {
	fields := p.decode(raw)
	if p.err != nil {
		p.ptype = t
		return nil, p.err
	}
	if fields[0] != t.Header() {
		p.fail(t, fmt.Errorf("%w: expected %s, got %s", ErrHeaderMismatch, t.Header(), fields[0]))
		return nil, p.err
	}
	if len(fields) < minFields || (maxFields >= 0 && len(fields) > maxFields) {
		p.fail(t, fmt.Errorf("%w: %s has %d", ErrFieldCount, t, len(fields)-1))
		return nil, p.err
	}
	return fields, nil
}

func (p *Packet) fail(t PacketType, err error) {
	p.ptype = t
	p.err = err
}

// Type returns the packet type (PacketUnknown if the framing was not valid)
func (p *Packet) Type() PacketType {
	return p.ptype
}

// IsValid reports whether the packet decoded without error
func (p *Packet) IsValid() bool {
	return p.err == nil
}

// Err returns the reason the packet is invalid, or nil
func (p *Packet) Err() error {
	return p.err
}

// Raw returns the frame text as received or constructed, without line terminator
func (p *Packet) Raw() string {
	return p.raw
}

// String implements fmt.Stringer
func (p *Packet) String() string {
	return p.raw
}

func (p *Packet) isMessage() {}

// framed builds the packet state for a freshly constructed variant.
func framed(t PacketType, body string) Packet {
	return Packet{raw: Frame(t, body), ptype: t}
}

// Frame wraps body (the comma-joined fields) with the header, end token and
// checksum. The content section is clipped to MaxPacketContents bytes.
func Frame(t PacketType, body string) string {
	contents := string(Delimiter) + body
	if len(contents) > MaxPacketContents {
		contents = contents[:MaxPacketContents]
	}
	frame := string(StartToken) + t.Header() + contents + string(EndToken)
	return frame + fmt.Sprintf("%02X", Checksum(frame))
}

// boundFrame strips line terminators and bounds raw to MaxPacketLen bytes.
func boundFrame(raw string) string {
	raw = strings.TrimRight(raw, "\r\n")
	if len(raw) > MaxPacketLen {
		raw = raw[:MaxPacketLen]
	}
	return raw
}

// ClipToFieldWidth bounds a value field: it is cut at the first character
// that would break framing and limited to MaxFieldLen-1 bytes.
func ClipToFieldWidth(value string) string {
	if i := strings.IndexAny(value, ",*\r\n"); i >= 0 {
		value = value[:i]
	}
	if len(value) > MaxFieldLen-1 {
		value = value[:MaxFieldLen-1]
	}
	return value
}

// DropExcessValues returns the leading values that fit into one packet body
// after prefix. Values past the content budget are dropped, not split.
func DropExcessValues(prefix string, values []string) []string {
	length := len(prefix)
	for i, v := range values {
		if length >= MaxPacketContents-MaxFieldLen-1 {
			return values[:i]
		}
		length += 1 + len(v)
	}
	return values
}

// Field codecs

func formatCellID(id uint16) string {
	return strconv.FormatUint(uint64(id), numberBase)
}

func parseCellID(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, numberBase, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: cell id %q", ErrFieldValue, s)
	}
	return uint16(v), nil
}

// FormatAddress renders a register address the way it appears on the wire
func FormatAddress(addr uint32) string {
	return strings.ToUpper(strconv.FormatUint(uint64(addr), addressBase))
}

func parseAddress(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, addressBase, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: register address %q", ErrFieldValue, s)
	}
	return uint32(v), nil
}
