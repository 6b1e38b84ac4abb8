package align

import (
	"github.com/hazyhaar/visreg/raster"
)

// Progress milestones emitted by AlignImages, in order.
const (
	ProgressPreviousHashed = 25
	ProgressCurrentHashed  = 50
	ProgressAligned        = 75
	ProgressDone           = 100
)

// AlignImages aligns two images row-by-row and returns two new images of
// identical dimensions: width max(previous.Width, current.Width), height
// the aligned length. Rows of the narrower input are right-padded with
// transparent pixels; gap rows are fully transparent. The inputs are not
// mutated.
//
// progress, if non-nil, receives the milestone percentages in order. It is
// called on the calling goroutine; callers wanting a channel or an
// off-thread run wrap this function themselves.
func AlignImages(previous, current *raster.Image, progress func(pct int)) (*raster.Image, *raster.Image, error) {
	report := func(pct int) {
		if progress != nil {
			progress(pct)
		}
	}

	width := max(previous.Width, current.Width)

	prevFp := fingerprintPadded(previous, width)
	report(ProgressPreviousHashed)
	curFp := fingerprintPadded(current, width)
	report(ProgressCurrentHashed)

	prevRows, curRows, err := Align(prevFp, curFp)
	if err != nil {
		return nil, nil, err
	}
	report(ProgressAligned)

	prevOut := buildAligned(previous, prevRows, width)
	curOut := buildAligned(current, curRows, width)
	report(ProgressDone)
	return prevOut, curOut, nil
}

// fingerprintPadded hashes each row as if right-padded to width with
// transparent pixels, so equal content hashes equally regardless of which
// input was narrower.
func fingerprintPadded(m *raster.Image, width int) []Fingerprint {
	fps := make([]Fingerprint, m.Height)
	var pad []byte
	if width > m.Width {
		pad = make([]byte, raster.BytesPerPixel*(width-m.Width))
	}
	row := make([]byte, raster.BytesPerPixel*width)
	for i := 0; i < m.Height; i++ {
		copy(row, m.Row(i))
		copy(row[raster.BytesPerPixel*m.Width:], pad)
		fps[i] = FingerprintRow(row)
	}
	return fps
}

// buildAligned assembles a fresh image from the alignment trace. Gap
// positions stay all-zero (fully transparent); real rows are copied from
// the source, left-aligned, with the remainder transparent.
func buildAligned(src *raster.Image, rows []Row, width int) *raster.Image {
	out := raster.New(width, len(rows))
	for i, r := range rows {
		if r.Gap {
			continue
		}
		copy(out.Row(i), src.Row(r.Index))
	}
	return out
}
