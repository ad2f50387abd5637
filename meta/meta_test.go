package meta

import (
	"bytes"
	"testing"
)

func TestBlockHeaderRoundTrip(t *testing.T) {
	want := BlockHeader{IsLast: true, BlockType: TypeSeekTable, Length: 123456}
	var buf bytes.Buffer
	if err := WriteBlockHeader(&buf, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadBlockHeader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestStreamInfoRoundTrip(t *testing.T) {
	want := StreamInfo{
		MinBlockSize: 4096, MaxBlockSize: 4096,
		MinFrameSize: 1000, MaxFrameSize: 9000,
		SampleRate: 44100, NumChannels: 2, BitsPerSample: 16,
		TotalSamples: 8192,
	}
	copy(want.MD5Sum[:], []byte("0123456789abcdef"))

	var buf bytes.Buffer
	if err := WriteStreamInfo(&buf, want); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 34 {
		t.Errorf("STREAMINFO length = %d, want 34", buf.Len())
	}
	got, err := ReadStreamInfo(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if *got != want {
		t.Errorf("got %+v, want %+v", *got, want)
	}
}

func TestSeekTableRoundTripWithPlaceholders(t *testing.T) {
	want := SeekTable{Points: []SeekPoint{
		{SampleNumber: 0, ByteOffset: 0, FrameBlockSize: 4096},
		{SampleNumber: 44100, ByteOffset: 50000, FrameBlockSize: 4096},
		{SampleNumber: PlaceholderSampleNumber},
	}}
	var buf bytes.Buffer
	if err := WriteSeekTable(&buf, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadSeekTable(&buf, uint32(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Points) != len(want.Points) {
		t.Fatalf("got %d points, want %d", len(got.Points), len(want.Points))
	}
	for i := range want.Points {
		if got.Points[i] != want.Points[i] {
			t.Errorf("point %d: got %+v, want %+v", i, got.Points[i], want.Points[i])
		}
	}
	if !got.Points[2].IsPlaceholder() {
		t.Error("expected the third point to be a placeholder")
	}
}

func TestSeekTableBisectionBounds(t *testing.T) {
	st := SeekTable{Points: []SeekPoint{
		{SampleNumber: 0, ByteOffset: 0, FrameBlockSize: 4096},
		{SampleNumber: 44100, ByteOffset: 50000, FrameBlockSize: 4096},
		{SampleNumber: 88200, ByteOffset: 100000, FrameBlockSize: 4096},
	}}
	if lo := st.FindLowerBound(50000); lo != 1 {
		t.Errorf("FindLowerBound(50000) = %d, want 1", lo)
	}
	if hi := st.FindUpperBound(50000); hi != 2 {
		t.Errorf("FindUpperBound(50000) = %d, want 2", hi)
	}
}

func TestVorbisCommentRoundTrip(t *testing.T) {
	want := VorbisComment{Vendor: "flaccore", Comments: []string{"ARTIST=test", "TITLE=round trip"}}
	var buf bytes.Buffer
	if err := WriteVorbisComment(&buf, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadVorbisComment(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Vendor != want.Vendor || len(got.Comments) != len(want.Comments) {
		t.Fatalf("got %+v, want %+v", *got, want)
	}
	for i := range want.Comments {
		if got.Comments[i] != want.Comments[i] {
			t.Errorf("comment %d: got %q, want %q", i, got.Comments[i], want.Comments[i])
		}
	}
}

func TestCueSheetRoundTrip(t *testing.T) {
	want := CueSheet{LeadInSamples: 88200, IsCD: true}
	copy(want.CatalogNumber[:], []byte("1234567890123"))
	tr := CueSheetTrack{Offset: 0, Number: 1, IsAudio: true}
	copy(tr.ISRC[:], []byte("USRC17607839"))
	tr.TrackIndexes = []CueSheetTrackIndex{{Offset: 0, Number: 1}}
	want.Tracks = []CueSheetTrack{tr}

	var buf bytes.Buffer
	if err := WriteCueSheet(&buf, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadCueSheet(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.LeadInSamples != want.LeadInSamples || got.IsCD != want.IsCD {
		t.Fatalf("header mismatch: got %+v, want %+v", *got, want)
	}
	if len(got.Tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(got.Tracks))
	}
	gt := got.Tracks[0]
	if gt.Offset != tr.Offset || gt.Number != tr.Number || gt.IsAudio != tr.IsAudio || gt.ISRC != tr.ISRC {
		t.Errorf("track mismatch: got %+v, want %+v", gt, tr)
	}
	if len(gt.TrackIndexes) != 1 || gt.TrackIndexes[0] != tr.TrackIndexes[0] {
		t.Errorf("track index mismatch: got %+v, want %+v", gt.TrackIndexes, tr.TrackIndexes)
	}
}
