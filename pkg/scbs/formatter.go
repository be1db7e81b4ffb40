// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scbs

import (
	"fmt"
	"strings"
	"time"
)

// FormatPacket decodes line and formats it as human-readable text
func FormatPacket(ts time.Time, line string) string {
	timestamp := ts.Format("15:04:05.000")
	msg, err := Decode(line)
	if msg == nil {
		return fmt.Sprintf("[%s] INVALID %q\n  Error: %v\n", timestamp, strings.TrimRight(line, "\r\n"), err)
	}

	result := fmt.Sprintf("[%s] %s ($%s)\n", timestamp, FormatMessageType(msg.Type()), msg.Type().Header())
	if err != nil {
		return result + fmt.Sprintf("  Error: %v\n", err)
	}
	return result + FormatFields(msg)
}

// FormatMessageType returns a human-readable name for a packet type
func FormatMessageType(t PacketType) string {
	switch t {
	case PacketDiscover:
		return "DISCOVER"
	case PacketMultiWrite:
		return "MULTI_WRITE"
	case PacketMultiRead:
		return "MULTI_READ"
	case PacketSingleWrite:
		return "SINGLE_WRITE"
	case PacketSingleRead:
		return "SINGLE_READ"
	case PacketSingleResponse:
		return "SINGLE_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// FormatRegister returns a human-readable name for a register address
func FormatRegister(addr uint32) string {
	switch addr {
	case RegSetOutputVoltage:
		return "SET_OUTPUT_VOLTAGE"
	case RegReadOutputCurrent:
		return "READ_OUTPUT_CURRENT"
	case RegReadFirmwareVersion:
		return "READ_FIRMWARE_VERSION"
	default:
		return "UNKNOWN"
	}
}

// FormatFields formats the typed fields of a decoded packet, one per line
func FormatFields(msg Message) string {
	switch p := msg.(type) {
	case *Discover:
		return fmt.Sprintf("  Last Cell ID: %d\n", p.LastCellID)

	case *MultiWrite:
		return formatRegisterLine(p.RegAddr) + fmt.Sprintf("  Value: %q\n", p.Value)

	case *MultiRead:
		result := formatRegisterLine(p.RegAddr)
		result += fmt.Sprintf("  Values: %d\n", len(p.Values))
		for i, v := range p.Values {
			result += fmt.Sprintf("    [%d] %q\n", i, v)
		}
		return result

	case *SingleWrite:
		return fmt.Sprintf("  Cell ID: %d\n", p.CellID) + formatRegisterLine(p.RegAddr) +
			fmt.Sprintf("  Value: %q\n", p.Value)

	case *SingleRead:
		return fmt.Sprintf("  Cell ID: %d\n", p.CellID) + formatRegisterLine(p.RegAddr)

	case *SingleResponse:
		result := fmt.Sprintf("  Cell ID: %d\n", p.CellID)
		if code, ok := p.ErrorCode(); ok {
			return result + fmt.Sprintf("  Error: %s (0x%02X)\n", code.Error(), uint8(code))
		}
		return result + fmt.Sprintf("  Value: %q\n", p.Value)
	}
	return ""
}

func formatRegisterLine(addr uint32) string {
	return fmt.Sprintf("  Register: 0x%s (%s)\n", FormatAddress(addr), FormatRegister(addr))
}

// FormatSummary returns a one-line summary of a packet, e.g. "SRS cell=2 value=OK"
func FormatSummary(msg Message) string {
	switch p := msg.(type) {
	case *Discover:
		return fmt.Sprintf("DIS last_cell=%d", p.LastCellID)
	case *MultiWrite:
		return fmt.Sprintf("MWR reg=0x%s value=%s", FormatAddress(p.RegAddr), p.Value)
	case *MultiRead:
		return fmt.Sprintf("MRD reg=0x%s values=[%s]", FormatAddress(p.RegAddr), strings.Join(p.Values, " "))
	case *SingleWrite:
		return fmt.Sprintf("SWR cell=%d reg=0x%s value=%s", p.CellID, FormatAddress(p.RegAddr), p.Value)
	case *SingleRead:
		return fmt.Sprintf("SRD cell=%d reg=0x%s", p.CellID, FormatAddress(p.RegAddr))
	case *SingleResponse:
		return fmt.Sprintf("SRS cell=%d value=%s", p.CellID, p.Value)
	}
	return "UNKNOWN"
}
