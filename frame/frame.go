package frame

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/soundkit/flaccore/bitio"
)

// Frame is one decoded or about-to-be-encoded frame: a header plus one
// subframe per encoded channel (2 subframes for any stereo
// decorrelation mode, NumChannels() otherwise).
type Frame struct {
	Header    Header
	Subframes []Subframe
}

// Decorrelate returns the channel pair required by ca (spec §4.6):
// independent returns left and right as given; left_side/right_side/
// mid_side return newly allocated derived channels in place of one or
// both, leaving the input slices unmodified. The bits-per-sample of each
// returned channel comes from SideChannelBps (one extra bit for a side
// channel).
func Decorrelate(ca ChannelAssignment, left, right []int32) (ch0, ch1 []int32) {
	switch ca {
	case ChannelLeftSide:
		side := make([]int32, len(left))
		for i := range left {
			side[i] = left[i] - right[i]
		}
		return left, side
	case ChannelRightSide:
		side := make([]int32, len(left))
		for i := range left {
			side[i] = left[i] - right[i]
		}
		return side, right
	case ChannelMidSide:
		mid := make([]int32, len(left))
		side := make([]int32, len(left))
		for i := range left {
			mid[i] = (left[i] + right[i]) >> 1
			side[i] = left[i] - right[i]
		}
		return mid, side
	default:
		return left, right
	}
}

// Undecorrelate is the dual of Decorrelate (spec §4.7).
func Undecorrelate(ca ChannelAssignment, ch0, ch1 []int32) (left, right []int32) {
	switch ca {
	case ChannelLeftSide:
		left = ch0
		right = make([]int32, len(ch0))
		for i := range ch0 {
			right[i] = ch0[i] - ch1[i]
		}
		return left, right
	case ChannelRightSide:
		right = ch1
		left = make([]int32, len(ch1))
		for i := range ch1 {
			left[i] = ch1[i] + ch0[i]
		}
		return left, right
	case ChannelMidSide:
		left = make([]int32, len(ch0))
		right = make([]int32, len(ch0))
		for i := range ch0 {
			mPrime := (ch0[i] << 1) | (ch1[i] & 1)
			left[i] = (mPrime + ch1[i]) >> 1
			right[i] = (mPrime - ch1[i]) >> 1
		}
		return left, right
	default:
		return ch0, ch1
	}
}

// SideChannelBps returns the bits-per-sample a decorrelated side
// channel needs (one more than the stream's nominal bps), or bps
// itself for channels unaffected by decorrelation.
func SideChannelBps(ca ChannelAssignment, channelIndex int, bps uint8) uint8 {
	switch ca {
	case ChannelLeftSide:
		if channelIndex == 1 {
			return bps + 1
		}
	case ChannelRightSide:
		if channelIndex == 0 {
			return bps + 1
		}
	case ChannelMidSide:
		if channelIndex == 1 {
			return bps + 1
		}
	}
	return bps
}

// Encode writes a complete frame (header, every subframe, zero pad,
// CRC-16) to b. channels holds one sample slice per encoded channel,
// already decorrelated by the caller if ca calls for it.
func Encode(b *bitio.BitBuffer, hdr Header, channels [][]int32, subframes []Subframe) error {
	if len(channels) != hdr.ChannelAssignment.NumChannels() {
		return fmt.Errorf("frame.Encode: channel count mismatch: header wants %d, got %d",
			hdr.ChannelAssignment.NumChannels(), len(channels))
	}
	if len(subframes) != len(channels) {
		return fmt.Errorf("frame.Encode: subframe count mismatch: got %d, want %d", len(subframes), len(channels))
	}

	b.ResetCRC16()
	b.ResetCRC8()
	if err := EncodeHeader(b, hdr); err != nil {
		return errors.WithMessage(err, "frame.Encode")
	}

	for i, sf := range subframes {
		chBps := SideChannelBps(hdr.ChannelAssignment, i, hdr.BitsPerSample)
		if err := EncodeSubframe(b, sf, chBps, int(hdr.BlockSize)); err != nil {
			return errors.WithMessagef(err, "frame.Encode: subframe %d", i)
		}
	}

	if err := b.ZeroPadToByteBoundary(); err != nil {
		return err
	}
	return b.WriteCRC16()
}

// Decode reads a complete frame from b (having already verified the
// leading sync via search, or optimistically assuming the cursor sits
// at one), verifying the frame's CRC-16, and returns the un-
// decorrelated per-output-channel samples alongside the parsed Frame.
func Decode(b *bitio.BitBuffer) (Frame, [][]int32, error) {
	var fr Frame

	b.ResetCRC16()
	b.ResetCRC8()
	hdr, err := DecodeHeader(b)
	if err != nil {
		return fr, nil, errors.WithMessage(err, "frame.Decode")
	}
	fr.Header = hdr

	n := hdr.ChannelAssignment.NumChannels()
	fr.Subframes = make([]Subframe, n)
	for i := range fr.Subframes {
		chBps := SideChannelBps(hdr.ChannelAssignment, i, hdr.BitsPerSample)
		sf, err := DecodeSubframe(b, chBps, int(hdr.BlockSize))
		if err != nil {
			return fr, nil, errors.WithMessagef(err, "frame.Decode: subframe %d", i)
		}
		fr.Subframes[i] = sf
	}

	if err := b.ReadZeroPadToByteBoundary(); err != nil {
		return fr, nil, errors.WithMessage(err, "frame.Decode")
	}
	want, got, err := b.ReadCRC16()
	if err != nil {
		return fr, nil, errors.WithMessage(err, "frame.Decode")
	}
	if want != got {
		return fr, nil, errors.Wrapf(ErrBadCRC16, "frame.Decode: want 0x%04X got 0x%04X", want, got)
	}

	reconstructed := make([][]int32, n)
	for i, sf := range fr.Subframes {
		reconstructed[i] = Reconstruct(sf, int(hdr.BlockSize))
	}

	if hdr.ChannelAssignment.IsStereoDecorrelated() {
		left, right := Undecorrelate(hdr.ChannelAssignment, reconstructed[0], reconstructed[1])
		reconstructed[0], reconstructed[1] = left, right
	}

	return fr, reconstructed, nil
}

// ErrBadCRC16 is returned (wrapped) by Decode on a frame CRC-16
// mismatch.
var ErrBadCRC16 = errors.New("frame: frame CRC-16 mismatch")
