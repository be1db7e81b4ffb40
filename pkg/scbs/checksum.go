// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scbs

import "strings"

// Checksum computes the XOR checksum of every byte strictly between the first
// '$' and the first '*' in frame. Returns 0 when either token is missing; a
// zero result is therefore not proof of a valid frame.
func Checksum(frame string) uint8 {
	start, end, ok := frameBounds(frame)
	if !ok {
		return 0
	}
	var sum uint8
	for i := start; i < end; i++ {
		sum ^= frame[i]
	}
	return sum
}

// frameBounds returns the index range of the checksummed region of frame.
func frameBounds(frame string) (start, end int, ok bool) {
	s := strings.IndexByte(frame, StartToken)
	e := strings.IndexByte(frame, EndToken)
	if s < 0 || e < 0 {
		return 0, 0, false
	}
	return s + 1, e, true
}

// parseChecksum reads the 1-2 hex digits that follow the end token and
// returns how many were consumed. Anything after the digits is not part of
// the frame.
func parseChecksum(tail string) (uint8, int) {
	var sum uint8
	n := 0
	for n < len(tail) && n < 2 {
		v, ok := hexValue(tail[n])
		if !ok {
			break
		}
		sum = sum<<4 | v
		n++
	}
	return sum, n
}

func hexValue(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
