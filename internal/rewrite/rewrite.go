// Package rewrite applies offset-delimited text replacements to a source.
package rewrite

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// Edit replaces the half-open byte range [Start, End) of the original
// source with Text.
type Edit struct {
	Start int
	End   int
	Text  string
}

func (e Edit) String() string { return fmt.Sprintf("[%d,%d)->%q", e.Start, e.End, e.Text) }

var (
	ErrOverlap    = errors.New("overlapping edits")
	ErrOutOfRange = errors.New("edit out of range")
)

// Apply applies all edits to src. Offsets always refer to the original src,
// edits may be passed in any order but must not overlap.
// src is returned as is when there are no edits.
func Apply(src []byte, edits []Edit) ([]byte, error) {
	if len(edits) == 0 {
		return src, nil
	}

	sorted := slices.Clone(edits)
	slices.SortStableFunc(sorted, func(a, b Edit) int { return cmp.Compare(a.Start, b.Start) })

	size := len(src)
	for i, e := range sorted {
		if e.Start < 0 || e.End < e.Start || e.End > len(src) {
			return nil, fmt.Errorf("%w: %s (source length %d)", ErrOutOfRange, e, len(src))
		}
		if i > 0 && e.Start < sorted[i-1].End {
			return nil, fmt.Errorf("%w: %s and %s", ErrOverlap, sorted[i-1], e)
		}
		size += len(e.Text) - (e.End - e.Start)
	}

	var b bytes.Buffer
	b.Grow(size)
	last := 0
	for _, e := range sorted {
		b.Write(src[last:e.Start])
		b.WriteString(e.Text)
		last = e.End
	}
	b.Write(src[last:])
	return b.Bytes(), nil
}
