// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scbs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Decode errors
var (
	ErrNoStartToken   = errors.New("scbs: missing start token")
	ErrNoEndToken     = errors.New("scbs: missing end token")
	ErrNoChecksum     = errors.New("scbs: missing checksum digits")
	ErrUnknownHeader  = errors.New("scbs: unrecognized header")
	ErrHeaderMismatch = errors.New("scbs: header does not match packet type")
	ErrFieldCount     = errors.New("scbs: wrong number of fields")
	ErrFieldValue     = errors.New("scbs: malformed field")
	ErrTooManyValues  = errors.New("scbs: too many values")
)

// ChecksumError indicates that a frame's transmitted checksum does not match its contents.
type ChecksumError struct {
	Expected uint8
	Received uint8
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("scbs: checksum mismatch: expected %02X, got %02X", e.Expected, e.Received)
}

// ErrorCode is an error reported to the chain inside an SRS packet.
type ErrorCode uint8

// Error code values
const (
	ErrCodeNone                  ErrorCode = 0x00
	ErrCodeAddrNotRecognized     ErrorCode = 0x01
	ErrCodePacketLengthExceeded  ErrorCode = 0x02
	ErrCodeWriteNotSupported     ErrorCode = 0x03
	ErrCodeReceivedInvalidPacket ErrorCode = 0x0F
)

const errValuePrefix = "ERR:"

// Error implements the error interface
func (c ErrorCode) Error() string {
	switch c {
	case ErrCodeNone:
		return "none"
	case ErrCodeAddrNotRecognized:
		return "address not recognized"
	case ErrCodePacketLengthExceeded:
		return "packet length exceeded"
	case ErrCodeWriteNotSupported:
		return "write not supported"
	case ErrCodeReceivedInvalidPacket:
		return "received invalid packet"
	default:
		return fmt.Sprintf("error 0x%02X", uint8(c))
	}
}

// Value returns the SRS value string for c, e.g. "ERR:0F".
func (c ErrorCode) Value() string {
	return fmt.Sprintf("%s%02X", errValuePrefix, uint8(c))
}

// CodeOf maps err to the code reported on the bus. Errors that are not an
// ErrorCode mean the packet carried something this cell cannot use.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeNone
	}
	var code ErrorCode
	if errors.As(err, &code) {
		return code
	}
	return ErrCodeReceivedInvalidPacket
}

// ParseErrorValue extracts the code from an "ERR:<HEX>" response value.
func ParseErrorValue(value string) (ErrorCode, bool) {
	hex, ok := strings.CutPrefix(value, errValuePrefix)
	if !ok || hex == "" {
		return ErrCodeNone, false
	}
	v, err := strconv.ParseUint(hex, addressBase, 8)
	if err != nil {
		return ErrCodeNone, false
	}
	return ErrorCode(v), true
}
