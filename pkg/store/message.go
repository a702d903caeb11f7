// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package store

import (
	"time"

	"github.com/ctr/ramses-rf/pkg/ramses"
)

// Message wraps one Frame together with its parsed payload (§4.7). The
// store does not itself decode opcode payloads (§1 Non-goals: "device-class-
// specific decoding of every opcode payload" is a separate concern); Payload
// is whatever the caller of Store.Put passes in, and pkg/gateway passes nil.
type Message struct {
	Frame   *ramses.Frame
	Payload map[string]interface{}
}

// Dtm is a convenience accessor for the frame's capture time.
func (m *Message) Dtm() time.Time { return m.Frame.Dtm }

// expiryRatio returns (now-dtm)/expiry. A NeverExpires entry always reports
// 0 (never expired/tombstoned).
func (m *Message) expiryRatio(now time.Time) float64 {
	expiry := ramses.Expiry(m.Frame.Opcode, m.Frame.Verb)
	if expiry == ramses.NeverExpires {
		return 0
	}
	if expiry <= 0 {
		return 0
	}
	return float64(now.Sub(m.Dtm())) / float64(expiry)
}

// Expired reports whether (now-dtm)/expiry > 1.0 (§4.7).
func (m *Message) Expired(now time.Time) bool {
	return m.expiryRatio(now) > 1.0
}

// Tombstoned reports whether (now-dtm)/expiry > 2.0 (§4.7); tombstoned
// entries must be evicted on next access.
func (m *Message) Tombstoned(now time.Time) bool {
	return m.expiryRatio(now) > 2.0
}
