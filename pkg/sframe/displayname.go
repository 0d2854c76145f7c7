package sframe

import (
	"strconv"
	"strings"
)

// ParseSFUDisplayName parses the "identity#leaf_index_decimal" boundary
// format named in spec Section 6: the SFU-visible display name that
// encodes an MLS leaf index alongside the human-readable identity. This is
// the one place the raw string form is allowed to exist; callers must parse
// it here and pass only the resulting leafIndex into the core (spec Section
// 9's redesign flag against threading display-name strings through
// sender/receiver contexts).
//
// The name is split at its last '#', so the identity may itself contain '#'.
// ok is false if name contains no '#', ends in '#', or the suffix is not a
// valid uint32 decimal.
func ParseSFUDisplayName(name string) (identity string, leafIndex uint32, ok bool) {
	idx := strings.LastIndexByte(name, '#')
	if idx < 0 || idx == len(name)-1 {
		return "", 0, false
	}

	identity = name[:idx]
	suffix := name[idx+1:]

	n, err := strconv.ParseUint(suffix, 10, 32)
	if err != nil {
		return "", 0, false
	}

	return identity, uint32(n), true
}
