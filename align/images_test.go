package align

import (
	"bytes"
	"testing"

	"github.com/hazyhaar/visreg/raster"
)

// fillImage builds a w x h image whose rows are seeded from vals so that
// equal seeds produce byte-identical rows.
func fillImage(t *testing.T, w int, vals ...byte) *raster.Image {
	t.Helper()
	m := raster.New(w, len(vals))
	for i, v := range vals {
		row := m.Row(i)
		for x := range row {
			row[x] = v
		}
	}
	return m
}

func TestAlignImages_InsertedLine(t *testing.T) {
	// Rows 0-4 match, row 5 of current is new, rows 6-11 of current match
	// rows 5-9 of previous.
	prev := fillImage(t, 5, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	cur := fillImage(t, 5, 1, 2, 3, 4, 5, 99, 6, 7, 8, 9, 10)

	var milestones []int
	prevOut, curOut, err := AlignImages(prev, cur, func(pct int) {
		milestones = append(milestones, pct)
	})
	if err != nil {
		t.Fatalf("AlignImages: %v", err)
	}

	if prevOut.Height != curOut.Height {
		t.Fatalf("heights differ: %d vs %d", prevOut.Height, curOut.Height)
	}
	if prevOut.Height != 11 {
		t.Errorf("aligned height: got %d, want 11", prevOut.Height)
	}
	if prevOut.Width != 5 || curOut.Width != 5 {
		t.Errorf("widths: got %d/%d, want 5/5", prevOut.Width, curOut.Width)
	}

	// Row 5 of previous is the injected gap: fully transparent.
	gap := make([]byte, 5*raster.BytesPerPixel)
	if !bytes.Equal(prevOut.Row(5), gap) {
		t.Errorf("previous row 5 not transparent: %v", prevOut.Row(5))
	}
	// Row 5 of current is the inserted content.
	if curOut.Row(5)[0] != 99 {
		t.Errorf("current row 5: got seed %d, want 99", curOut.Row(5)[0])
	}
	// Rows below line up again.
	if !bytes.Equal(prevOut.Row(6), curOut.Row(6)) {
		t.Error("row 6 misaligned after gap injection")
	}

	want := []int{ProgressPreviousHashed, ProgressCurrentHashed, ProgressAligned, ProgressDone}
	if len(milestones) != len(want) {
		t.Fatalf("milestones: got %v, want %v", milestones, want)
	}
	for i := range want {
		if milestones[i] != want[i] {
			t.Fatalf("milestones: got %v, want %v", milestones, want)
		}
	}
}

func TestAlignImages_IdenticalImages(t *testing.T) {
	a := fillImage(t, 4, 1, 2, 3)
	b := fillImage(t, 4, 1, 2, 3)

	prevOut, curOut, err := AlignImages(a, b, nil)
	if err != nil {
		t.Fatalf("AlignImages: %v", err)
	}
	if !prevOut.Equal(a) {
		t.Error("previous output differs from input")
	}
	if !curOut.Equal(b) {
		t.Error("current output differs from input")
	}
}

func TestAlignImages_WidthPadding(t *testing.T) {
	narrow := fillImage(t, 3, 1, 2)
	wide := fillImage(t, 5, 3, 4)

	prevOut, curOut, err := AlignImages(narrow, wide, nil)
	if err != nil {
		t.Fatalf("AlignImages: %v", err)
	}
	if prevOut.Width != 5 || curOut.Width != 5 {
		t.Fatalf("widths: got %d/%d, want 5/5", prevOut.Width, curOut.Width)
	}
	// Narrow image's real rows keep content left-aligned, padding transparent.
	for i := 0; i < prevOut.Height; i++ {
		row := prevOut.Row(i)
		tail := row[3*raster.BytesPerPixel:]
		for _, b := range tail {
			if b != 0 {
				t.Fatalf("row %d padding not transparent", i)
			}
		}
	}
	// Inputs untouched.
	if narrow.Width != 3 || len(narrow.Pix) != 3*raster.BytesPerPixel*2 {
		t.Error("input image mutated")
	}
}
