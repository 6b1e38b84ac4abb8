// Package align reconciles two images of different height so that
// corresponding content rows line up positionally before a pixel diff is
// rendered. It is a pure data transform: no I/O, no shared state; the
// caller decides whether to run it inline or on its own goroutine.
package align

import (
	"fmt"
	"hash/fnv"
)

// MaxRows caps the per-side row count fed to the O(N*M) dynamic program.
// Viewport heights are hundreds of rows; anything near the cap is garbage
// input, and refusing it bounds the table size.
const MaxRows = 20000

// Fingerprint is a content hash of one pixel row. Equal fingerprints are
// treated as equal rows; the collision risk is accepted.
type Fingerprint uint64

// FingerprintRow hashes one RGBA row with FNV-1a.
func FingerprintRow(row []byte) Fingerprint {
	h := fnv.New64a()
	h.Write(row)
	return Fingerprint(h.Sum64())
}

// Row is one position in an aligned sequence: either a real row, identified
// by its index in the original image, or a synthetic transparent gap.
type Row struct {
	Gap   bool
	Index int
}

// Align computes an LCS-based alignment of two fingerprint sequences and
// returns two equal-length Row sequences. Position i in both outputs refers
// either to a mutually matching row or to one real row opposite a gap.
//
// Tie-break: when multiple optimal alignments exist, rows present only in
// previous are emitted before rows present only in current, and matches
// bind to the earliest possible positions. Callers must not depend on the
// choice among equally valid alignments, only on the length invariants.
func Align(previous, current []Fingerprint) (prev, cur []Row, err error) {
	n, m := len(previous), len(current)
	if n > MaxRows || m > MaxRows {
		return nil, nil, fmt.Errorf("align: row count %d/%d exceeds cap %d", n, m, MaxRows)
	}

	// lcs[i][j] is the LCS length of previous[i:] and current[j:].
	lcs := make([][]int32, n+1)
	flat := make([]int32, (n+1)*(m+1))
	for i := range lcs {
		lcs[i] = flat[i*(m+1) : (i+1)*(m+1)]
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if previous[i] == current[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	prev = make([]Row, 0, n+m)
	cur = make([]Row, 0, n+m)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case previous[i] == current[j]:
			prev = append(prev, Row{Index: i})
			cur = append(cur, Row{Index: j})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			// Row only in previous: gap opposite it in current.
			prev = append(prev, Row{Index: i})
			cur = append(cur, Row{Gap: true})
			i++
		default:
			prev = append(prev, Row{Gap: true})
			cur = append(cur, Row{Index: j})
			j++
		}
	}
	for ; i < n; i++ {
		prev = append(prev, Row{Index: i})
		cur = append(cur, Row{Gap: true})
	}
	for ; j < m; j++ {
		prev = append(prev, Row{Gap: true})
		cur = append(cur, Row{Index: j})
	}
	return prev, cur, nil
}
