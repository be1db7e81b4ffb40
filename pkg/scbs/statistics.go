// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scbs

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks packet statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalPackets   uint64
	ValidPackets   uint64
	ChecksumErrors uint64
	FramingErrors  uint64
	HeaderErrors   uint64
	FieldErrors    uint64
	ErrorResponses uint64
	ByType         [NumPacketTypes]uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update updates statistics with the result of Decode
func (s *Statistics) Update(msg Message, decodeErr error) {
	s.TotalPackets++
	s.LastUpdateTime = time.Now()

	if msg != nil && msg.Type() < PacketUnknown {
		s.ByType[msg.Type()]++
	}

	if decodeErr != nil {
		var csErr *ChecksumError
		switch {
		case errors.As(decodeErr, &csErr):
			s.ChecksumErrors++
		case errors.Is(decodeErr, ErrUnknownHeader), errors.Is(decodeErr, ErrHeaderMismatch):
			s.HeaderErrors++
		case msg != nil:
			s.FieldErrors++
		default:
			s.FramingErrors++
		}
		return
	}

	s.ValidPackets++
	if srs, ok := msg.(*SingleResponse); ok {
		if _, isErr := srs.ErrorCode(); isErr {
			s.ErrorResponses++
		}
	}
}

// Errors returns the number of packets that failed to decode
func (s *Statistics) Errors() uint64 {
	return s.ChecksumErrors + s.FramingErrors + s.HeaderErrors + s.FieldErrors
}

// CalculateRates calculates packet and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

func percent(n, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100.0 / float64(total)
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Packets:   %8d\n", s.TotalPackets)
	result += fmt.Sprintf("Valid Packets:   %8d (%.1f%%)\n", s.ValidPackets, percent(s.ValidPackets, s.TotalPackets))

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, percent(s.ChecksumErrors, s.TotalPackets))
	}
	if s.FramingErrors > 0 {
		result += fmt.Sprintf("Framing Errors:  %8d (%.1f%%)\n", s.FramingErrors, percent(s.FramingErrors, s.TotalPackets))
	}
	if s.HeaderErrors > 0 {
		result += fmt.Sprintf("Header Errors:   %8d (%.1f%%)\n", s.HeaderErrors, percent(s.HeaderErrors, s.TotalPackets))
	}
	if s.FieldErrors > 0 {
		result += fmt.Sprintf("Field Errors:    %8d (%.1f%%)\n", s.FieldErrors, percent(s.FieldErrors, s.TotalPackets))
	}
	if s.ErrorResponses > 0 {
		result += fmt.Sprintf("ERR Responses:   %8d\n", s.ErrorResponses)
	}

	for t := PacketType(0); t < PacketUnknown; t++ {
		if s.ByType[t] > 0 {
			result += fmt.Sprintf("  %s:            %8d\n", t, s.ByType[t])
		}
	}

	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
