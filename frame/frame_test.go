package frame

import (
	"math"
	"testing"

	"github.com/soundkit/flaccore/bitio"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Header{
		{BlockSize: 4096, SampleRate: 44100, ChannelAssignment: ChannelMono, BitsPerSample: 16, FrameNumber: 0},
		{BlockSize: 192, SampleRate: 48000, ChannelAssignment: ChannelLR, BitsPerSample: 24, FrameNumber: 7},
		{BlockSize: 4097, SampleRate: 96000, ChannelAssignment: ChannelMidSide, BitsPerSample: 16, FrameNumber: 3},
		{VariableBlockSize: true, BlockSize: 1024, SampleRate: 22050, ChannelAssignment: ChannelLeftSide, BitsPerSample: 20, SampleNumber: 123456},
	}
	for i, want := range cases {
		b := bitio.New(nil)
		b.ResetCRC8()
		if err := EncodeHeader(b, want); err != nil {
			t.Fatalf("case %d: encode: %v", i, err)
		}
		got, err := DecodeHeader(b)
		if err != nil {
			t.Fatalf("case %d: decode: %v", i, err)
		}
		if got != want {
			t.Errorf("case %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestSubframeConstantRoundTrip(t *testing.T) {
	b := bitio.New(nil)
	sf := Subframe{Type: PredConstant, Samples: []int32{42}}
	if err := EncodeSubframe(b, sf, 16, 100); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeSubframe(b, 16, 100)
	if err != nil {
		t.Fatal(err)
	}
	if got.Samples[0] != 42 {
		t.Errorf("got %d, want 42", got.Samples[0])
	}
	rec := Reconstruct(got, 100)
	for i, s := range rec {
		if s != 42 {
			t.Fatalf("sample %d: got %d, want 42", i, s)
		}
	}
}

func TestSubframeVerbatimRoundTrip(t *testing.T) {
	b := bitio.New(nil)
	samples := []int32{1, -1, 1000, -1000, 0, 32767, -32768}
	sf := Subframe{Type: PredVerbatim, Samples: samples}
	if err := EncodeSubframe(b, sf, 16, len(samples)); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeSubframe(b, 16, len(samples))
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range samples {
		if got.Samples[i] != s {
			t.Errorf("sample %d: got %d, want %d", i, got.Samples[i], s)
		}
	}
}

func sineSamples16(n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(8000 * math.Sin(float64(i)*0.1))
	}
	return out
}

func TestChooseSubframeRoundTripsThroughFrame(t *testing.T) {
	samples := sineSamples16(256)
	sf := ChooseSubframe(samples, 16, 8, 0, 0, 4, 2)

	b := bitio.New(nil)
	if err := EncodeSubframe(b, sf, 16, len(samples)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := b.ZeroPadToByteBoundary(); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeSubframe(b, 16, len(samples))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	rec := Reconstruct(got, len(samples))
	for i, s := range samples {
		if rec[i] != s {
			t.Fatalf("sample %d: got %d, want %d (subframe type %d, order %d)", i, rec[i], s, sf.Type, sf.Order)
		}
	}
}

func TestChooseSubframeConstant(t *testing.T) {
	samples := make([]int32, 64)
	for i := range samples {
		samples[i] = -7
	}
	sf := ChooseSubframe(samples, 16, 8, 0, 0, 4, 2)
	if sf.Type != PredConstant {
		t.Errorf("expected PredConstant, got %d", sf.Type)
	}
}

func TestFrameEncodeDecodeRoundTripMidSide(t *testing.T) {
	const n = 2048
	left := make([]int32, n)
	right := make([]int32, n)
	for i := 0; i < n; i++ {
		left[i] = int32(i)
		right[i] = int32(-i)
	}

	mid, side := Decorrelate(ChannelMidSide, left, right)
	hdr := Header{
		BlockSize:         n,
		SampleRate:        44100,
		ChannelAssignment: ChannelMidSide,
		BitsPerSample:     16,
		FrameNumber:       0,
	}
	sf0 := ChooseSubframe(mid, hdr.BitsPerSample, 0, 0, 0, 4, 2)
	sf1 := ChooseSubframe(side, SideChannelBps(ChannelMidSide, 1, hdr.BitsPerSample), 0, 0, 0, 4, 2)

	b := bitio.New(nil)
	if err := Encode(b, hdr, [][]int32{mid, side}, []Subframe{sf0, sf1}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	fr, channels, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if fr.Header != hdr {
		t.Errorf("header mismatch: got %+v, want %+v", fr.Header, hdr)
	}
	for i := 0; i < n; i++ {
		if channels[0][i] != left[i] {
			t.Errorf("left[%d]: got %d, want %d", i, channels[0][i], left[i])
		}
		if channels[1][i] != right[i] {
			t.Errorf("right[%d]: got %d, want %d", i, channels[1][i], right[i])
		}
	}
}

func TestFrameDecodeDetectsCRCMismatch(t *testing.T) {
	const n = 64
	samples := sineSamples16(n)
	hdr := Header{BlockSize: n, SampleRate: 44100, ChannelAssignment: ChannelMono, BitsPerSample: 16}
	sf := ChooseSubframe(samples, 16, 0, 0, 0, 2, 1)

	b := bitio.New(nil)
	if err := Encode(b, hdr, [][]int32{samples}, []Subframe{sf}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	raw := b.Bytes()
	raw[len(raw)-1] ^= 0xFF // corrupt the CRC-16's low byte

	corrupted := bitio.New(nil)
	for _, by := range raw {
		if err := corrupted.WriteRawUint(uint64(by), 8); err != nil {
			t.Fatal(err)
		}
	}
	if _, _, err := Decode(corrupted); err == nil {
		t.Error("expected a CRC-16 mismatch error")
	}
}
