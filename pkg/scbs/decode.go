// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scbs

// Message is implemented by the six packet variants: *Discover, *MultiWrite,
// *MultiRead, *SingleWrite, *SingleRead and *SingleResponse.
type Message interface {
	Type() PacketType
	IsValid() bool
	Err() error
	Raw() string
	Encode() string
	isMessage()
}

var (
	_ Message = (*Discover)(nil)
	_ Message = (*MultiWrite)(nil)
	_ Message = (*MultiRead)(nil)
	_ Message = (*SingleWrite)(nil)
	_ Message = (*SingleRead)(nil)
	_ Message = (*SingleResponse)(nil)
)

// Decode sniffs the packet type from the framing and decodes raw as that
// variant. When the framing is invalid the message is nil. When the framing
// is valid but the fields are not, the (invalid, zeroed) variant is returned
// together with the error.
func Decode(raw string) (Message, error) {
	base := ParsePacket(raw)
	if !base.IsValid() {
		return nil, base.Err()
	}

	var msg Message
	switch base.Type() {
	case PacketDiscover:
		msg = ParseDiscover(raw)
	case PacketMultiWrite:
		msg = ParseMultiWrite(raw)
	case PacketMultiRead:
		msg = ParseMultiRead(raw)
	case PacketSingleWrite:
		msg = ParseSingleWrite(raw)
	case PacketSingleRead:
		msg = ParseSingleRead(raw)
	case PacketSingleResponse:
		msg = ParseSingleResponse(raw)
	default:
		return nil, ErrUnknownHeader
	}
	return msg, msg.Err()
}
