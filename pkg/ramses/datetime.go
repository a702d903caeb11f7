// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ramses

import (
	"fmt"
	"time"
)

// ParseWireDatetime decodes the 6- or 7-byte packed datetime field used by
// opcodes such as 313F/2309 schedule payloads (§9 Design Notes). The layout
// is little-endian by byte, MSB-first within each byte:
//
//	byte0: seconds (0-59, 6 bits, top 2 bits reserved)
//	byte1: minutes (0-59, 6 bits)
//	byte2: hours   (0-23, 5 bits)
//	byte3: day-of-month (1-31, 5 bits) | day-of-week (3 bits, discarded)
//	byte4: month (1-12, 4 bits, top 4 bits reserved)
//	byte5: year-low (0-99)
//	byte6: century (full year = byte6*100 + byte5), optional
//
// The day-of-week bits are masked off and not checked; RAMSES carries no
// authoritative weekday and callers must derive it from the date itself.
func ParseWireDatetime(b []byte) (time.Time, error) {
	if len(b) != 6 && len(b) != 7 {
		return time.Time{}, fmt.Errorf("ramses: wire datetime must be 6 or 7 bytes, got %d", len(b))
	}

	second := int(b[0] & 0x3F)
	minute := int(b[1] & 0x3F)
	hour := int(b[2] & 0x1F)
	day := int(b[3] & 0x1F)
	month := int(b[4] & 0x0F)
	year := int(b[5])

	if len(b) == 7 {
		year += int(b[6]) * 100
	} else {
		year += 2000
	}

	if second > 59 || minute > 59 || hour > 23 || day < 1 || day > 31 || month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("ramses: wire datetime field out of range: %+v", b)
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), nil
}

// EncodeWireDatetime packs t into the 7-byte wire form (§9 Design Notes).
// The day-of-week bits are always zeroed: RAMSES devices recompute the
// weekday from the date and ignore whatever a sender encodes there.
func EncodeWireDatetime(t time.Time) []byte {
	t = t.UTC()
	year := t.Year()
	return []byte{
		byte(t.Second() & 0x3F),
		byte(t.Minute() & 0x3F),
		byte(t.Hour() & 0x1F),
		byte(t.Day() & 0x1F),
		byte(t.Month() & 0x0F),
		byte(year % 100),
		byte(year / 100),
	}
}
