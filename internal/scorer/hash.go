package scorer

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// BatchKey identifies a set of proposals independent of order: the hex
// SHA-256 of the sorted ids joined by newlines.
func BatchKey(proposalIDs []string) string {
	ids := append([]string(nil), proposalIDs...)
	sort.Strings(ids)
	h := sha256.Sum256([]byte(strings.Join(ids, "\n")))
	return hex.EncodeToString(h[:])
}
