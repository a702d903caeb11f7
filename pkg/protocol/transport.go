// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"
)

// LineSource is the byte-line source collaborator of §1's non-goals: "the
// core consumes a byte-line source ... and emits byte-lines back. The core
// does not own port configuration, baud rates, USB enumeration, or reconnect
// policy." Concrete transports (serial, websocket bridge) live in cmd/ and
// are adapted to this interface by ScannerLineSource.
type LineSource interface {
	// NextLine blocks until a line is available or the source is closed. dtm
	// is the capture time, per §3.
	NextLine() (line string, dtm time.Time, err error)
}

// LineSink emits a rendered command line to the transport.
type LineSink interface {
	WriteLine(line []byte) error
}

// ScannerLineSource adapts an io.Reader (cmd.Connection satisfies this) into
// a LineSource using a buffered line scanner.
type ScannerLineSource struct {
	scanner *bufio.Scanner
	mu      sync.Mutex
}

// NewScannerLineSource wraps r. Each call to NextLine stamps the line with the wall-clock time it was read, matching
// raw_log.go's capture-on-read style.
func NewScannerLineSource(r io.Reader) *ScannerLineSource {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), 64*1024)
	return &ScannerLineSource{scanner: s}
}

// NextLine reads the next newline-delimited line.
func (s *ScannerLineSource) NextLine() (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", time.Time{}, fmt.Errorf("ramses: transport read failed: %w", err)
		}
		return "", time.Time{}, io.EOF
	}
	return s.scanner.Text(), time.Now(), nil
}

// WriterLineSink adapts an io.Writer into a LineSink.
type WriterLineSink struct {
	w  io.Writer
	mu sync.Mutex
}

// NewWriterLineSink wraps w.
func NewWriterLineSink(w io.Writer) *WriterLineSink {
	return &WriterLineSink{w: w}
}

// WriteLine writes line verbatim; callers pass Command.ToWireBytes(), which
// already carries the CRLF terminator.
func (s *WriterLineSink) WriteLine(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(line)
	if err != nil {
		return fmt.Errorf("ramses: transport write failed: %w", err)
	}
	return nil
}
