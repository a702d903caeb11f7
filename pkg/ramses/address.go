// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ramses

import (
	"container/list"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// NullAddressID is the sentinel for "field present but unused".
const NullAddressID = "--:------"

// BroadcastAddressID is the sentinel for "broadcast / unknown device".
const BroadcastAddressID = "63:262142"

// addressCacheSize bounds the parse-result LRU; it exists purely to avoid
// re-parsing the same handful of device ids on every frame of a session.
const addressCacheSize = 128

// Address is a RAMSES-II device identifier: a two-digit device-type code and
// a 0..262143 decimal tag, rendered "TT:NNNNNN".
type Address struct {
	id      string
	devType string
	tag     uint32
}

// ID returns the canonical "TT:NNNNNN" string form.
func (a Address) ID() string { return a.id }

// Type returns the two-digit device-type code.
func (a Address) Type() string { return a.devType }

// Tag returns the decimal device tag.
func (a Address) Tag() uint32 { return a.tag }

// IsNull reports whether this is the null ("--:------") sentinel.
func (a Address) IsNull() bool { return a.id == NullAddressID }

// IsBroadcast reports whether this is the broadcast/unknown sentinel.
func (a Address) IsBroadcast() bool { return a.id == BroadcastAddressID }

// Slug returns the device-type registry slug, or "" if unregistered.
func (a Address) Slug() string { return DeviceTypeSlug(a.devType) }

// String implements fmt.Stringer.
func (a Address) String() string { return a.id }

// wireValue packs (type << 18) | tag into 24 bits, as rendered on the wire
// by the frame codec's six-hex-character address fields.
func (a Address) wireValue() (uint32, error) {
	t, err := strconv.ParseUint(a.devType, 10, 32)
	if err != nil {
		return 0, err
	}
	return (uint32(t) << 18) | a.tag, nil
}

var addrCacheMu sync.Mutex
var addrCache = map[string]*list.Element{}
var addrCacheLRU = list.New()

type addrCacheEntry struct {
	key string
	val Address
	err error
}

// ParseAddress parses a single 9-character "TT:NNNNNN" device id.
func ParseAddress(s string) (Address, error) {
	if cached, ok := cacheLookup(s); ok {
		return cached.val, cached.err
	}

	addr, err := parseAddressUncached(s)
	cacheStore(s, addrCacheEntry{key: s, val: addr, err: err})
	return addr, err
}

func parseAddressUncached(s string) (Address, error) {
	if len(s) != 9 || s[2] != ':' {
		return Address{}, newFrameError(ErrCorruptAddrSet, fmt.Sprintf("malformed address %q", s), map[string]interface{}{"addr": s})
	}
	if s == NullAddressID {
		return Address{id: NullAddressID, devType: "--", tag: 0}, nil
	}
	devType := s[0:2]
	tagStr := s[3:]
	tag, err := strconv.ParseUint(tagStr, 10, 32)
	if err != nil || tag > 262143 {
		return Address{}, newFrameError(ErrCorruptAddrSet, fmt.Sprintf("malformed address tag %q", s), map[string]interface{}{"addr": s})
	}
	if _, err := strconv.ParseUint(devType, 10, 32); err != nil {
		return Address{}, newFrameError(ErrCorruptAddrSet, fmt.Sprintf("malformed address type %q", s), map[string]interface{}{"addr": s})
	}
	return Address{id: s, devType: devType, tag: uint32(tag)}, nil
}

func cacheLookup(key string) (addrCacheEntry, bool) {
	addrCacheMu.Lock()
	defer addrCacheMu.Unlock()
	el, ok := addrCache[key]
	if !ok {
		return addrCacheEntry{}, false
	}
	addrCacheLRU.MoveToFront(el)
	return el.Value.(addrCacheEntry), true
}

func cacheStore(key string, entry addrCacheEntry) {
	addrCacheMu.Lock()
	defer addrCacheMu.Unlock()
	if el, ok := addrCache[key]; ok {
		el.Value = entry
		addrCacheLRU.MoveToFront(el)
		return
	}
	el := addrCacheLRU.PushFront(entry)
	addrCache[key] = el
	for addrCacheLRU.Len() > addressCacheSize {
		back := addrCacheLRU.Back()
		if back == nil {
			break
		}
		addrCacheLRU.Remove(back)
		delete(addrCache, back.Value.(addrCacheEntry).key)
	}
}

// NullAddress returns the null sentinel address.
func NullAddress() Address { a, _ := ParseAddress(NullAddressID); return a }

// BroadcastAddress returns the broadcast/unknown sentinel address.
func BroadcastAddress() Address { a, _ := ParseAddress(BroadcastAddressID); return a }

// AddressSet is the parsed three-address field of a frame, together with the
// derived src/dst pair per the table in §4.1.
type AddressSet struct {
	Addrs [3]Address
	Src   Address
	Dst   Address
	// HasDst is false when no destination could be determined (the `null`
	// outcomes of the §4.1 table); Dst is then the null address sentinel.
	HasDst bool
}

// ParseAddressSet parses the 29-character three-address field
// ("AAA:NNNNNN BBB:NNNNNN CCC:NNNNNN") and derives (src, dst) per the table
// in §4.1. Any arrangement not covered by that table fails with
// ErrCorruptAddrSet.
func ParseAddressSet(s string) (AddressSet, error) {
	parts := strings.Split(s, " ")
	if len(parts) != 3 {
		return AddressSet{}, newFrameError(ErrCorruptAddrSet, fmt.Sprintf("expected 3 addresses, got %d", len(parts)), nil)
	}

	var addrs [3]Address
	for i, p := range parts {
		a, err := ParseAddress(p)
		if err != nil {
			return AddressSet{}, err
		}
		addrs[i] = a
	}

	a0, a1, a2 := addrs[0], addrs[1], addrs[2]
	d0, d1, d2 := !a0.IsNull(), !a1.IsNull(), !a2.IsNull()
	nullCount := 0
	for _, d := range []bool{d0, d1, d2} {
		if !d {
			nullCount++
		}
	}
	if nullCount > 2 {
		return AddressSet{}, newFrameError(ErrCorruptAddrSet, "address set must have at most 2 null addresses", map[string]interface{}{"addrs": s})
	}

	switch {
	case d0 && !d1 && d2:
		return AddressSet{Addrs: addrs, Src: a0, Dst: a2, HasDst: true}, nil
	case d0 && d1 && !d2:
		return AddressSet{Addrs: addrs, Src: a0, Dst: a1, HasDst: true}, nil
	case !d0 && d1 && d2:
		return AddressSet{Addrs: addrs, Src: a1, Dst: a2, HasDst: true}, nil
	case d0 && !d1 && !d2:
		return AddressSet{Addrs: addrs, Src: a0, Dst: NullAddress(), HasDst: false}, nil
	case !d0 && !d1 && d2:
		return AddressSet{Addrs: addrs, Src: a2, Dst: NullAddress(), HasDst: false}, nil
	case d0 && d1 && d2:
		// a2 is a repeater; a0/a1 are src/dst.
		return AddressSet{Addrs: addrs, Src: a0, Dst: a1, HasDst: true}, nil
	default:
		return AddressSet{}, newFrameError(ErrCorruptAddrSet, "no matching address arrangement", map[string]interface{}{"addrs": s})
	}
}

// EncodeAddressSet is the inverse of ParseAddressSet: it renders the
// 29-character three-address field by replaying the set's own Addrs slots
// rather than re-deriving an arrangement from (Src, Dst, HasDst) alone.
// Re-deriving would only ever reconstruct the three arrangements a freshly
// authored Command can produce (self-announce, two-party, src-only) and
// would silently corrupt the other three the §4.1 table allows on frames
// received off the wire (3rd-party, src-only-via-a2, repeater), since those
// collapse Src/Dst/HasDst down to the same (src, dst, true) triple several
// different Addrs layouts could have produced. Both ParseAddressSet and
// NewCommand always populate Addrs with the exact slots this should emit,
// so replaying them is both simpler and the only way to make
// encode(parse(F)) == F hold for every arrangement, not just three of six.
func EncodeAddressSet(set AddressSet) string {
	return strings.Join([]string{set.Addrs[0].ID(), set.Addrs[1].ID(), set.Addrs[2].ID()}, " ")
}
