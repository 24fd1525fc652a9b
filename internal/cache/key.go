package cache

import (
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Separator joins key segments.
const Separator = ":"

// Hash returns a short stable digest of the given parts. Parts are length
// prefixed so ("ab","c") and ("a","bc") differ.
func Hash(parts ...string) string {
	h, _ := blake2b.New256(nil)
	var lenBuf [8]byte
	for _, part := range parts {
		n := len(part)
		for i := range lenBuf {
			lenBuf[i] = byte(n >> (8 * i))
		}
		h.Write(lenBuf[:])
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// ScopeFingerprint identifies a set of workspace ids regardless of order or
// repetition. An empty scope has its own fingerprint.
func ScopeFingerprint(workspaceIDs []string) string {
	if len(workspaceIDs) == 0 {
		return "any"
	}
	ids := make([]string, 0, len(workspaceIDs))
	seen := make(map[string]struct{}, len(workspaceIDs))
	for _, id := range workspaceIDs {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return "any"
	}
	sort.Strings(ids)
	return Hash(ids...)
}

// Key joins segments with Separator.
func Key(segments ...string) string {
	return strings.Join(segments, Separator)
}
