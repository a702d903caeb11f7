// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ramses

import (
	"fmt"
	"strings"
	"time"
)

// logLineTimeFormat matches the microsecond-precision timestamp used by the
// capture format: "2006-01-02T15:04:05.000000".
const logLineTimeFormat = "2006-01-02T15:04:05.000000"

// CapturedLine pairs a capture timestamp with the raw wire text, exactly as
// written to a session log file (§6 log format).
type CapturedLine struct {
	Dtm  time.Time
	Text string
}

// ParseLogLine splits a persisted log line ("ISO8601-microseconds SP
// frame-text") into its timestamp and frame text. It does not itself parse
// the frame — callers pass Text to ParseFrame.
func ParseLogLine(line string) (CapturedLine, error) {
	line = strings.TrimRight(line, "\r\n")
	sp := strings.IndexByte(line, ' ')
	if sp < 0 {
		return CapturedLine{}, fmt.Errorf("ramses: malformed log line, no timestamp separator: %q", line)
	}
	tsField, text := line[:sp], line[sp+1:]
	dtm, err := time.Parse(logLineTimeFormat, tsField)
	if err != nil {
		return CapturedLine{}, fmt.Errorf("ramses: malformed log line timestamp %q: %w", tsField, err)
	}
	return CapturedLine{Dtm: dtm, Text: text}, nil
}

// FormatLogLine is the inverse of ParseLogLine.
func FormatLogLine(c CapturedLine) string {
	return c.Dtm.UTC().Format(logLineTimeFormat) + " " + c.Text
}
