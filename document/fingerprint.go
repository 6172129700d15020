package document

import (
	"fmt"
	"hash/fnv"
)

// Fingerprint digests a snapshot down to its element ids and modification
// markers. Two snapshots with the same ids in the same order and the same
// modification times fingerprint identically, which is enough to
// detect "nothing materially changed" without comparing full payloads.
func Fingerprint(s Snapshot) string {
	h := fnv.New64a()
	for _, el := range s {
		h.Write([]byte(el.ID))
		h.Write([]byte{0})
		fmt.Fprintf(h, "%d", el.LastModified)
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%d:%x", len(s), h.Sum64())
}
