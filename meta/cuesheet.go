package meta

import (
	"io"

	"github.com/icza/bitio"
)

// CueSheetTrackIndex is one index point within a CUESHEET track.
type CueSheetTrackIndex struct {
	Offset uint64 // samples, relative to the track's offset
	Number uint8
}

// CueSheetTrack describes one track of a CUESHEET block.
type CueSheetTrack struct {
	Offset        uint64 // samples, relative to the cue sheet's lead-in
	Number        uint8
	ISRC          [12]byte
	IsAudio       bool
	PreEmphasis   bool
	TrackIndexes  []CueSheetTrackIndex
}

// CueSheet is a CUESHEET metadata block.
type CueSheet struct {
	CatalogNumber [128]byte
	LeadInSamples uint64
	IsCD          bool
	Tracks        []CueSheetTrack
}

// WriteCueSheet writes cs to w.
func WriteCueSheet(w io.Writer, cs CueSheet) error {
	bw := bitio.NewWriter(w)
	if _, err := w.Write(cs.CatalogNumber[:]); err != nil {
		return err
	}
	if err := bw.WriteBits(cs.LeadInSamples, 64); err != nil {
		return err
	}
	if err := bw.WriteBool(cs.IsCD); err != nil {
		return err
	}
	if err := bw.WriteBits(0, 7); err != nil { // reserved
		return err
	}
	for i := 0; i < 258; i++ { // 258 reserved bytes
		if err := bw.WriteBits(0, 8); err != nil {
			return err
		}
	}
	if err := bw.WriteBits(uint64(len(cs.Tracks)), 8); err != nil {
		return err
	}
	if err := bw.Close(); err != nil {
		return err
	}

	for _, tr := range cs.Tracks {
		if err := writeCueSheetTrack(w, tr); err != nil {
			return err
		}
	}
	return nil
}

func writeCueSheetTrack(w io.Writer, tr CueSheetTrack) error {
	bw := bitio.NewWriter(w)
	if err := bw.WriteBits(tr.Offset, 64); err != nil {
		return err
	}
	if err := bw.WriteBits(uint64(tr.Number), 8); err != nil {
		return err
	}
	if err := bw.Close(); err != nil {
		return err
	}
	if _, err := w.Write(tr.ISRC[:]); err != nil {
		return err
	}

	bw = bitio.NewWriter(w)
	if err := bw.WriteBool(tr.IsAudio == false); err != nil { // 0 = audio per format
		return err
	}
	if err := bw.WriteBool(tr.PreEmphasis); err != nil {
		return err
	}
	if err := bw.WriteBits(0, 6); err != nil { // reserved
		return err
	}
	for i := 0; i < 13; i++ { // 13 reserved bytes
		if err := bw.WriteBits(0, 8); err != nil {
			return err
		}
	}
	if err := bw.WriteBits(uint64(len(tr.TrackIndexes)), 8); err != nil {
		return err
	}
	if err := bw.Close(); err != nil {
		return err
	}

	for _, idx := range tr.TrackIndexes {
		bw := bitio.NewWriter(w)
		if err := bw.WriteBits(idx.Offset, 64); err != nil {
			return err
		}
		if err := bw.WriteBits(uint64(idx.Number), 8); err != nil {
			return err
		}
		if err := bw.WriteBits(0, 24); err != nil { // reserved
			return err
		}
		if err := bw.Close(); err != nil {
			return err
		}
	}
	return nil
}

// ReadCueSheet reads a CUESHEET block from r.
func ReadCueSheet(r io.Reader) (*CueSheet, error) {
	cs := new(CueSheet)
	if _, err := io.ReadFull(r, cs.CatalogNumber[:]); err != nil {
		return nil, err
	}
	br := bitio.NewReader(r)
	leadIn, err := br.ReadBits(64)
	if err != nil {
		return nil, err
	}
	cs.LeadInSamples = leadIn
	isCD, err := br.ReadBool()
	if err != nil {
		return nil, err
	}
	cs.IsCD = isCD
	if _, err := br.ReadBits(7); err != nil {
		return nil, err
	}
	for i := 0; i < 258; i++ {
		if _, err := br.ReadBits(8); err != nil {
			return nil, err
		}
	}
	numTracks, err := br.ReadBits(8)
	if err != nil {
		return nil, err
	}

	cs.Tracks = make([]CueSheetTrack, numTracks)
	for i := range cs.Tracks {
		tr, err := readCueSheetTrack(r)
		if err != nil {
			return nil, err
		}
		cs.Tracks[i] = tr
	}
	return cs, nil
}

func readCueSheetTrack(r io.Reader) (CueSheetTrack, error) {
	var tr CueSheetTrack
	br := bitio.NewReader(r)
	offset, err := br.ReadBits(64)
	if err != nil {
		return tr, err
	}
	tr.Offset = offset
	numU, err := br.ReadBits(8)
	if err != nil {
		return tr, err
	}
	tr.Number = uint8(numU)

	if _, err := io.ReadFull(r, tr.ISRC[:]); err != nil {
		return tr, err
	}

	br = bitio.NewReader(r)
	notAudio, err := br.ReadBool()
	if err != nil {
		return tr, err
	}
	tr.IsAudio = !notAudio
	preEmph, err := br.ReadBool()
	if err != nil {
		return tr, err
	}
	tr.PreEmphasis = preEmph
	if _, err := br.ReadBits(6); err != nil {
		return tr, err
	}
	for i := 0; i < 13; i++ {
		if _, err := br.ReadBits(8); err != nil {
			return tr, err
		}
	}
	numIdxU, err := br.ReadBits(8)
	if err != nil {
		return tr, err
	}

	tr.TrackIndexes = make([]CueSheetTrackIndex, numIdxU)
	for i := range tr.TrackIndexes {
		br := bitio.NewReader(r)
		off, err := br.ReadBits(64)
		if err != nil {
			return tr, err
		}
		numU, err := br.ReadBits(8)
		if err != nil {
			return tr, err
		}
		if _, err := br.ReadBits(24); err != nil {
			return tr, err
		}
		tr.TrackIndexes[i] = CueSheetTrackIndex{Offset: off, Number: uint8(numU)}
	}
	return tr, nil
}
