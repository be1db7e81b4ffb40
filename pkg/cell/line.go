// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cell

import "github.com/CoolNamesAllTaken/scbs/pkg/scbs"

// LineAssembler accumulates bytes into newline-terminated lines in a single
// buffer of scbs.MaxPacketLen bytes.
type LineAssembler struct {
	buf      [scbs.MaxPacketLen]byte
	n        int
	overflow int // times the buffer filled without a terminator
}

// Feed adds one byte. It returns the completed line, without "\r\n", when b
// terminates a non-empty line. A line that outgrows the buffer is discarded
// and accumulation restarts with the next byte.
func (a *LineAssembler) Feed(b byte) (string, bool) {
	if b == '\n' {
		n := a.n
		a.n = 0
		if n > 0 && a.buf[n-1] == '\r' {
			n--
		}
		if n == 0 {
			return "", false
		}
		return string(a.buf[:n]), true
	}

	if a.n == len(a.buf) {
		a.n = 0
		a.overflow++
		return "", false
	}
	a.buf[a.n] = b
	a.n++
	return "", false
}

// Write feeds p and returns every line it completed.
func (a *LineAssembler) Write(p []byte) []string {
	var lines []string
	for _, b := range p {
		if line, ok := a.Feed(b); ok {
			lines = append(lines, line)
		}
	}
	return lines
}

// Pending returns the number of buffered bytes of the current line
func (a *LineAssembler) Pending() int {
	return a.n
}

// Overflows returns the number of times the buffer was discarded on overflow
func (a *LineAssembler) Overflows() int {
	return a.overflow
}

// Reset discards any partial line
func (a *LineAssembler) Reset() {
	a.n = 0
}
