// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package store

import (
	"sync"
	"time"

	"github.com/ctr/ramses-rf/pkg/ramses"
)

// noCtxKey is the map key used when a frame's ctx is semantically absent
// (Key.IsString == false).
const noCtxKey = "\x00none"

func ctxMapKey(k ramses.Key) string {
	if k.IsString {
		return k.Str
	}
	if k.Bool {
		return "\x00true"
	}
	return noCtxKey
}

// Store is the per-entity message cache of §4.7:
// store[opcode][verb][ctx] -> Message. One Store instance exists per
// entity (Device, Zone, DhwZone, System) in the entity graph.
type Store struct {
	mu   sync.Mutex
	data map[string]map[string]map[string]*Message
}

// New returns an empty store.
func New() *Store {
	return &Store{data: make(map[string]map[string]map[string]*Message)}
}

// Put writes frame/payload into the store. Writes are idempotent on
// timestamp (§4.7): if an existing message at the same (opcode, verb, ctx)
// has a dtm greater than or equal to frame.Dtm, the write is rejected and
// ok is false.
func (s *Store) Put(frame *ramses.Frame, payload map[string]interface{}) (msg *Message, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctxKey := ctxMapKey(frame.Ctx())
	byVerb, exists := s.data[frame.Opcode]
	if !exists {
		byVerb = make(map[string]map[string]*Message)
		s.data[frame.Opcode] = byVerb
	}
	byCtx, exists := byVerb[frame.Verb]
	if !exists {
		byCtx = make(map[string]*Message)
		byVerb[frame.Verb] = byCtx
	}

	if existing, present := byCtx[ctxKey]; present && !frame.Dtm.After(existing.Dtm()) {
		return existing, false
	}

	m := &Message{Frame: frame, Payload: payload}
	byCtx[ctxKey] = m
	return m, true
}

// Get looks up an exact (opcode, verb, ctx) slot. A tombstoned entry is
// evicted and reported as absent.
func (s *Store) Get(now time.Time, opcode, verb string, ctx ramses.Key) (*Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(now, opcode, verb, ctxMapKey(ctx))
}

func (s *Store) getLocked(now time.Time, opcode, verb, ctxKey string) (*Message, bool) {
	byVerb, ok := s.data[opcode]
	if !ok {
		return nil, false
	}
	byCtx, ok := byVerb[verb]
	if !ok {
		return nil, false
	}
	m, ok := byCtx[ctxKey]
	if !ok {
		return nil, false
	}
	if m.Tombstoned(now) {
		delete(byCtx, ctxKey)
		return nil, false
	}
	return m, true
}

// Latest returns the most recently captured, non-tombstoned message for an
// opcode across every verb/ctx, evicting any tombstoned entries it passes
// over. Used by the discovery scheduler (§4.9) to evaluate the per-opcode
// throttle window.
func (s *Store) Latest(now time.Time, opcode string) (*Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byVerb, ok := s.data[opcode]
	if !ok {
		return nil, false
	}

	var latest *Message
	for verb, byCtx := range byVerb {
		for ctxKey, m := range byCtx {
			if m.Tombstoned(now) {
				delete(byCtx, ctxKey)
				continue
			}
			if latest == nil || m.Dtm().After(latest.Dtm()) {
				latest = m
			}
		}
		if len(byCtx) == 0 {
			delete(byVerb, verb)
		}
	}
	if latest == nil {
		return nil, false
	}
	return latest, true
}
