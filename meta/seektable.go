package meta

import (
	"io"

	"github.com/icza/bitio"
)

// PlaceholderSampleNumber marks an unused seek-table slot (spec §3).
const PlaceholderSampleNumber = ^uint64(0)

// SeekPoint is one entry of a SEEKTABLE block.
type SeekPoint struct {
	SampleNumber   uint64
	ByteOffset     uint64
	FrameBlockSize uint16
}

// IsPlaceholder reports whether p is a reserved, not-yet-filled slot.
func (p SeekPoint) IsPlaceholder() bool { return p.SampleNumber == PlaceholderSampleNumber }

// SeekTable is the ordered list of seek points (spec §4.9): real
// points sorted ascending by SampleNumber, with placeholders sorting
// last.
type SeekTable struct {
	Points []SeekPoint
}

const seekPointSize = 18 // 64+64+16 bits

// WriteSeekTable writes the table's points (18 bytes each) to w.
func WriteSeekTable(w io.Writer, st SeekTable) error {
	bw := bitio.NewWriter(w)
	for _, p := range st.Points {
		if err := bw.WriteBits(p.SampleNumber, 64); err != nil {
			return err
		}
		if err := bw.WriteBits(p.ByteOffset, 64); err != nil {
			return err
		}
		if err := bw.WriteBits(uint64(p.FrameBlockSize), 16); err != nil {
			return err
		}
	}
	return bw.Close()
}

// ReadSeekTable reads length/seekPointSize points from r.
func ReadSeekTable(r io.Reader, length uint32) (*SeekTable, error) {
	n := int(length) / seekPointSize
	st := &SeekTable{Points: make([]SeekPoint, n)}
	br := bitio.NewReader(r)
	for i := 0; i < n; i++ {
		sampleNum, err := br.ReadBits(64)
		if err != nil {
			return nil, err
		}
		byteOff, err := br.ReadBits(64)
		if err != nil {
			return nil, err
		}
		blockSize, err := br.ReadBits(16)
		if err != nil {
			return nil, err
		}
		st.Points[i] = SeekPoint{SampleNumber: sampleNum, ByteOffset: byteOff, FrameBlockSize: uint16(blockSize)}
	}
	return st, nil
}

// Sort orders points ascending by SampleNumber, with placeholders
// (PlaceholderSampleNumber) sorting after every real point, per spec's
// seek-table invariant.
func (st *SeekTable) Sort() {
	points := st.Points
	for i := 1; i < len(points); i++ {
		for j := i; j > 0 && less(points[j], points[j-1]); j-- {
			points[j], points[j-1] = points[j-1], points[j]
		}
	}
}

func less(a, b SeekPoint) bool {
	if a.IsPlaceholder() != b.IsPlaceholder() {
		return b.IsPlaceholder()
	}
	return a.SampleNumber < b.SampleNumber
}

// FindLowerBound returns the index of the last real (non-placeholder)
// point whose SampleNumber <= target, or -1 if none qualifies. Used by
// the seekable decoder's bisection (spec §4.9).
func (st *SeekTable) FindLowerBound(target uint64) int {
	best := -1
	for i, p := range st.Points {
		if p.IsPlaceholder() {
			continue
		}
		if p.SampleNumber <= target {
			best = i
		} else {
			break
		}
	}
	return best
}

// FindUpperBound returns the index of the first real point whose
// SampleNumber > target, or -1 if none qualifies.
func (st *SeekTable) FindUpperBound(target uint64) int {
	for i, p := range st.Points {
		if p.IsPlaceholder() {
			continue
		}
		if p.SampleNumber > target {
			return i
		}
	}
	return -1
}
