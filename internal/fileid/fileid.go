// Package fileid computes the per-file identifier used to namespace the
// message keys declared by a component's translation blocks.
package fileid

import (
	"hash"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unsafe"

	"github.com/cespare/xxhash"
)

var regexpLeadingParents = regexp.MustCompile(`^(\.\.[/\\])+`)

var hasherPool = sync.Pool{
	New: func() any { return xxhash.New() },
}

// For returns the identifier of file relative to root.
// Files with the same relative path produce the same identifier
// regardless of the absolute root they live in.
func For(root, file string) string {
	return hashString(Normalize(root, file))
}

// Normalize returns the canonical relative path For hashes.
func Normalize(root, file string) string {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		// One of the two is relative and the other isn't.
		rel = file
	}
	rel = regexpLeadingParents.ReplaceAllString(rel, "")
	return strings.ReplaceAll(rel, `\`, "/")
}

func hashString(s string) string {
	h := hasherPool.Get().(hash.Hash64)
	defer hasherPool.Put(h)

	h.Reset()
	_, _ = h.Write(unsafeS2B(s))
	return strconv.FormatUint(h.Sum64(), 16)
}

// unsafeS2B unsafely converts s to []byte.
// The returned slice must never be written to.
func unsafeS2B(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
