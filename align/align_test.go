package align

import (
	"testing"
)

func fps(vals ...uint64) []Fingerprint {
	out := make([]Fingerprint, len(vals))
	for i, v := range vals {
		out[i] = Fingerprint(v)
	}
	return out
}

func countGaps(rows []Row) int {
	n := 0
	for _, r := range rows {
		if r.Gap {
			n++
		}
	}
	return n
}

func TestAlign_IdenticalSequences(t *testing.T) {
	a := fps(1, 2, 3, 4, 5)
	prev, cur, err := Align(a, a)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if len(prev) != 5 || len(cur) != 5 {
		t.Fatalf("lengths: got %d/%d, want 5/5", len(prev), len(cur))
	}
	if countGaps(prev) != 0 || countGaps(cur) != 0 {
		t.Fatalf("gaps: got %d/%d, want 0/0", countGaps(prev), countGaps(cur))
	}
	for i := range prev {
		if prev[i].Index != i || cur[i].Index != i {
			t.Errorf("position %d: got indices %d/%d, want %d/%d", i, prev[i].Index, cur[i].Index, i, i)
		}
	}
}

func TestAlign_InsertedRow(t *testing.T) {
	// Row 5 in current is new; rows below shifted down by one.
	a := fps(10, 11, 12, 13, 14, 15, 16, 17, 18, 19)
	b := fps(10, 11, 12, 13, 14, 99, 15, 16, 17, 18, 19)

	prev, cur, err := Align(a, b)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if len(prev) != len(cur) {
		t.Fatalf("lengths differ: %d vs %d", len(prev), len(cur))
	}
	if len(prev) != 11 {
		t.Fatalf("aligned length: got %d, want 11", len(prev))
	}
	if countGaps(prev) != 1 {
		t.Fatalf("gaps in previous: got %d, want 1", countGaps(prev))
	}
	if countGaps(cur) != 0 {
		t.Fatalf("gaps in current: got %d, want 0", countGaps(cur))
	}
	if !prev[5].Gap {
		t.Errorf("previous[5]: got %+v, want gap", prev[5])
	}
	if cur[5].Gap || cur[5].Index != 5 {
		t.Errorf("current[5]: got %+v, want index 5", cur[5])
	}
}

func TestAlign_LengthBounds(t *testing.T) {
	cases := []struct {
		name string
		a, b []Fingerprint
	}{
		{"disjoint", fps(1, 2, 3), fps(4, 5)},
		{"prefix_match", fps(1, 2, 3, 4), fps(1, 2)},
		{"suffix_match", fps(3, 4), fps(1, 2, 3, 4)},
		{"interleaved", fps(1, 9, 2, 9, 3), fps(1, 2, 3)},
		{"empty_a", nil, fps(1, 2)},
		{"empty_b", fps(1, 2), nil},
		{"both_empty", nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prev, cur, err := Align(tc.a, tc.b)
			if err != nil {
				t.Fatalf("Align: %v", err)
			}
			if len(prev) != len(cur) {
				t.Fatalf("lengths differ: %d vs %d", len(prev), len(cur))
			}
			lo := max(len(tc.a), len(tc.b))
			hi := len(tc.a) + len(tc.b)
			if len(prev) < lo || len(prev) > hi {
				t.Errorf("aligned length %d outside [%d, %d]", len(prev), lo, hi)
			}
			// Every real index appears exactly once, in order.
			next := 0
			for _, r := range prev {
				if r.Gap {
					continue
				}
				if r.Index != next {
					t.Fatalf("previous indices out of order: got %d, want %d", r.Index, next)
				}
				next++
			}
			if next != len(tc.a) {
				t.Errorf("previous real rows: got %d, want %d", next, len(tc.a))
			}
		})
	}
}

func TestAlign_NetGapCount(t *testing.T) {
	// len(B)-len(A) extra real rows in B require exactly that many gaps in
	// A beyond any mutual gaps.
	a := fps(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	b := fps(1, 2, 3, 4, 5, 50, 6, 7, 8, 9, 10, 60)
	prev, cur, err := Align(a, b)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	net := countGaps(prev) - countGaps(cur)
	if net != len(b)-len(a) {
		t.Errorf("net gaps: got %d, want %d", net, len(b)-len(a))
	}
}

func TestAlign_Idempotent(t *testing.T) {
	a := fps(1, 2, 3, 7, 8)
	b := fps(1, 5, 2, 3, 8)
	prev, cur, err := Align(a, b)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}

	// Re-hash the aligned sequences, treating each (real, gap) pair as
	// matching by giving the gap the opposite side's fingerprint. Aligning
	// the padded sequences again must introduce no further gaps.
	rehash := func(src, other []Fingerprint, rows, otherRows []Row) []Fingerprint {
		out := make([]Fingerprint, len(rows))
		for i, r := range rows {
			if r.Gap {
				out[i] = other[otherRows[i].Index]
			} else {
				out[i] = src[r.Index]
			}
		}
		return out
	}
	a2 := rehash(a, b, prev, cur)
	b2 := rehash(b, a, cur, prev)

	prev2, cur2, err := Align(a2, b2)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if len(prev2) != len(a2) || len(cur2) != len(b2) {
		t.Fatalf("re-alignment grew: got %d/%d, want %d/%d", len(prev2), len(cur2), len(a2), len(b2))
	}
	if countGaps(prev2) != 0 || countGaps(cur2) != 0 {
		t.Errorf("re-alignment gaps: got %d/%d, want 0/0", countGaps(prev2), countGaps(cur2))
	}
}

func TestAlign_TieBreakPreviousFirst(t *testing.T) {
	// Fully disjoint sequences: all of previous's rows come out before
	// current's (documented tie-break).
	prev, cur, err := Align(fps(1, 2), fps(3, 4))
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	want := []bool{false, false, true, true} // prev: real, real, gap, gap
	for i, g := range want {
		if prev[i].Gap != g {
			t.Fatalf("previous[%d].Gap: got %v, want %v", i, prev[i].Gap, g)
		}
		if cur[i].Gap != !g {
			t.Fatalf("current[%d].Gap: got %v, want %v", i, cur[i].Gap, !g)
		}
	}
}

func TestAlign_RowCapExceeded(t *testing.T) {
	big := make([]Fingerprint, MaxRows+1)
	if _, _, err := Align(big, nil); err == nil {
		t.Fatal("Align: expected error for input above MaxRows")
	}
}

func TestFingerprintRow_Distinguishes(t *testing.T) {
	a := FingerprintRow([]byte{1, 2, 3, 4})
	b := FingerprintRow([]byte{1, 2, 3, 5})
	if a == b {
		t.Error("distinct rows hashed equal")
	}
	if a != FingerprintRow([]byte{1, 2, 3, 4}) {
		t.Error("equal rows hashed differently")
	}
}
