// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/CoolNamesAllTaken/scbs/pkg/cell"
	"github.com/CoolNamesAllTaken/scbs/pkg/scbs"
)

// transmit writes one frame to the bus
func transmit(w io.Writer, line string) error {
	if _, err := io.WriteString(w, line+"\r\n"); err != nil {
		return fmt.Errorf("failed to send %s: %w", line, err)
	}
	return nil
}

// recorder writes bus traffic to a capture file. A nil recorder records nothing.
type recorder struct {
	mu sync.Mutex
	f  *os.File
	w  *scbs.CaptureWriter
}

// openRecorder creates the capture file at path. An empty path disables recording.
func openRecorder(path string) (*recorder, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file: %w", err)
	}
	w, err := scbs.NewCaptureWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &recorder{f: f, w: w}, nil
}

func (r *recorder) record(dir scbs.Direction, line string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := scbs.CaptureRecord{Time: time.Now(), Direction: dir, Line: line}
	if err := r.w.Write(rec); err != nil {
		logger.Error().Err(err).Msg("capture write failed")
	}
}

// sink wraps next so that every transmitted frame is recorded
func (r *recorder) sink(next cell.TransmitSink) cell.TransmitSink {
	if r == nil {
		return next
	}
	return cell.SinkFunc(func(line string) {
		r.record(scbs.DirectionTX, line)
		next.Send(line)
	})
}

func (r *recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.f.Close()
}

// recordingSource records every line taken from src
type recordingSource struct {
	src cell.LineSource
	rec *recorder
}

func (s recordingSource) TryReceiveLine() (string, bool) {
	line, ok := s.src.TryReceiveLine()
	if ok {
		s.rec.record(scbs.DirectionRX, line)
	}
	return line, ok
}

// collectLines gathers lines from src until timeout elapses or src closes.
// onLine returning true stops collection early.
func collectLines(src *cell.ReaderSource, timeout time.Duration, onLine func(line string) bool) error {
	deadline := time.After(timeout)
	for {
		select {
		case line, ok := <-src.Lines():
			if !ok {
				return src.Err()
			}
			if onLine(line) {
				return nil
			}
		case <-deadline:
			return nil
		}
	}
}
