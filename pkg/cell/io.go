// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cell

import (
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// TransmitSink accepts complete frames (without line terminator) for
// transmission to the next cell downstream.
type TransmitSink interface {
	Send(line string)
}

// LineSource yields complete received lines. TryReceiveLine never blocks;
// it returns false when no line is ready.
type LineSource interface {
	TryReceiveLine() (string, bool)
}

// SinkFunc adapts a function to a TransmitSink
type SinkFunc func(line string)

// Send implements TransmitSink
func (f SinkFunc) Send(line string) { f(line) }

// lineTerminator is appended to every transmitted frame
const lineTerminator = "\r\n"

// WriterSink writes frames to an io.Writer, one per line.
type WriterSink struct {
	mu  sync.Mutex
	w   io.Writer
	log zerolog.Logger
}

// NewWriterSink creates a sink writing to w. Write failures are logged to log.
func NewWriterSink(w io.Writer, log zerolog.Logger) *WriterSink {
	return &WriterSink{w: w, log: log}
}

// Send implements TransmitSink
func (s *WriterSink) Send(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, line+lineTerminator); err != nil {
		s.log.Error().Err(err).Str("line", line).Msg("transmit failed")
	}
}

// CollectSink records every frame it is sent.
type CollectSink struct {
	mu    sync.Mutex
	lines []string
}

// Send implements TransmitSink
func (s *CollectSink) Send(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

// Lines returns a copy of the frames received so far
func (s *CollectSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// Reset discards all recorded frames
func (s *CollectSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
}

// Queue is an in-memory FIFO of lines. It is both a TransmitSink and a
// LineSource, so it can link two nodes directly. Not safe for concurrent use.
type Queue struct {
	lines []string
}

// Send implements TransmitSink
func (q *Queue) Send(line string) {
	q.lines = append(q.lines, line)
}

// TryReceiveLine implements LineSource
func (q *Queue) TryReceiveLine() (string, bool) {
	if len(q.lines) == 0 {
		return "", false
	}
	line := q.lines[0]
	q.lines = q.lines[1:]
	return line, true
}

// Len returns the number of queued lines
func (q *Queue) Len() int {
	return len(q.lines)
}

// readerBacklog is the number of assembled lines buffered ahead of the consumer
const readerBacklog = 16

// ReaderSource assembles lines from an io.Reader on a background goroutine
// and hands them out without blocking.
type ReaderSource struct {
	lines chan string
	done  chan struct{}
	err   error
}

// NewReaderSource starts reading r. The goroutine exits when r returns an
// error; Lines is closed at that point and Err reports the error.
func NewReaderSource(r io.Reader) *ReaderSource {
	s := &ReaderSource{
		lines: make(chan string, readerBacklog),
		done:  make(chan struct{}),
	}
	go s.run(r)
	return s
}

func (s *ReaderSource) run(r io.Reader) {
	defer close(s.done)
	defer close(s.lines)

	var asm LineAssembler
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		for _, line := range asm.Write(buf[:n]) {
			s.lines <- line
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = err
			}
			return
		}
	}
}

// TryReceiveLine implements LineSource
func (s *ReaderSource) TryReceiveLine() (string, bool) {
	select {
	case line, ok := <-s.lines:
		return line, ok
	default:
		return "", false
	}
}

// Lines returns the channel of assembled lines for blocking consumers
func (s *ReaderSource) Lines() <-chan string {
	return s.lines
}

// Done is closed once the reader has stopped and every line has been queued
func (s *ReaderSource) Done() <-chan struct{} {
	return s.done
}

// Err returns the read error that stopped the source. Only valid once
// Lines has been closed; io.EOF is reported as nil.
func (s *ReaderSource) Err() error {
	return s.err
}
