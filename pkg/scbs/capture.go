// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scbs

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction tells which side of a link a captured line travelled on.
type Direction uint8

// Capture directions
const (
	DirectionRX Direction = iota
	DirectionTX
)

func (d Direction) String() string {
	if d == DirectionTX {
		return "TX"
	}
	return "RX"
}

// CaptureRecord is one line captured from a link, stored as a CBOR map with
// integer keys.
type CaptureRecord struct {
	Time      time.Time `cbor:"1,keyasint"`
	Direction Direction `cbor:"2,keyasint"`
	Line      string    `cbor:"3,keyasint"`
}

// CaptureWriter appends CaptureRecords to a stream as a CBOR sequence.
type CaptureWriter struct {
	enc *cbor.Encoder
}

// NewCaptureWriter creates a CaptureWriter writing to w
func NewCaptureWriter(w io.Writer) (*CaptureWriter, error) {
	mode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}
	return &CaptureWriter{enc: mode.NewEncoder(w)}, nil
}

// Write appends one record
func (c *CaptureWriter) Write(rec CaptureRecord) error {
	if err := c.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode capture record: %w", err)
	}
	return nil
}

// CaptureReader reads CaptureRecords written by CaptureWriter.
type CaptureReader struct {
	dec *cbor.Decoder
}

// NewCaptureReader creates a CaptureReader reading from r
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the capture.
func (c *CaptureReader) Next() (CaptureRecord, error) {
	var rec CaptureRecord
	if err := c.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, io.EOF
		}
		return rec, fmt.Errorf("failed to decode capture record: %w", err)
	}
	return rec, nil
}
