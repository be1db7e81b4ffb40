// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package scbs provides a Go implementation of the SCBS daisy-chain bus protocol.
//
// SCBS is a newline-delimited ASCII protocol of the form
//
//	$<HEADER>,<field>,<field>...*<CC>
//
// where CC is the XOR of every byte between '$' and '*'. Packets travel
// through a chain of cells; each cell either answers, accumulates data into,
// or forwards every packet it receives. This package provides checksum
// framing, packet encoding/decoding, command builders and formatting.
package scbs

// Protocol framing tokens
const (
	StartToken = '$'
	EndToken   = '*'
	Delimiter  = ','
)

// Packet size limits
const (
	MaxPacketLen      = 200 // whole frame including tokens
	MaxFieldLen       = 20  // 19 significant characters + terminator
	PacketHeaderLen   = 6   // $BSDIS
	PacketTailLen     = 3   // *FC
	MaxPacketContents = MaxPacketLen - PacketHeaderLen - PacketTailLen
	MaxMultiValues    = 20 // values carried by a single MRD packet
)

// Field encoding bases
const (
	numberBase  = 10
	addressBase = 16
)

// Register addresses exposed by every cell
const (
	RegSetOutputVoltage    uint32 = 0x1000
	RegReadOutputCurrent   uint32 = 0x2000
	RegReadFirmwareVersion uint32 = 0x3000
)

// ResponseOK is the SRS value sent when a single write succeeds.
const ResponseOK = "OK"

// PacketType identifies one of the six SCBS packet kinds.
type PacketType int

// Packet type values. PacketUnknown doubles as the number of real types.
const (
	PacketDiscover PacketType = iota
	PacketMultiWrite
	PacketMultiRead
	PacketSingleWrite
	PacketSingleRead
	PacketSingleResponse
	PacketUnknown
)

// NumPacketTypes is the number of recognized packet kinds.
const NumPacketTypes = int(PacketUnknown)

// Header returns the 5-character header token for t, without the '$'.
func (t PacketType) Header() string {
	switch t {
	case PacketDiscover:
		return "BSDIS"
	case PacketMultiWrite:
		return "BSMWR"
	case PacketMultiRead:
		return "BSMRD"
	case PacketSingleWrite:
		return "BSSWR"
	case PacketSingleRead:
		return "BSSRD"
	case PacketSingleResponse:
		return "BSSRS"
	default:
		return "?????"
	}
}

// String returns the short mnemonic for t (DIS, MWR, ...).
func (t PacketType) String() string {
	switch t {
	case PacketDiscover:
		return "DIS"
	case PacketMultiWrite:
		return "MWR"
	case PacketMultiRead:
		return "MRD"
	case PacketSingleWrite:
		return "SWR"
	case PacketSingleRead:
		return "SRD"
	case PacketSingleResponse:
		return "SRS"
	default:
		return "UNKNOWN"
	}
}

// ParseHeader maps a header token (without '$') to its packet type.
// Comparison is case sensitive.
func ParseHeader(header string) (PacketType, bool) {
	for t := PacketType(0); t < PacketUnknown; t++ {
		if t.Header() == header {
			return t, true
		}
	}
	return PacketUnknown, false
}
