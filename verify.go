package flaccore

import (
	"github.com/soundkit/flaccore/bitio"
	"github.com/soundkit/flaccore/frame"
)

// verifyTailer re-decodes each frame immediately after the encoder
// writes it and compares the result against the original samples
// (spec §4.10). It is a nested decoder reading from the same
// BitBuffer the encoder just wrote into: its read cursor trails the
// write cursor by exactly one frame, so no separate I/O path or
// buffering of encoder output is needed.
type verifyTailer struct {
	numChannels int
	blockSize   int

	firstFrameByteOffset int64
	positioned           bool
}

func newVerifyTailer(numChannels, blockSize int, firstFrameByteOffset int64) *verifyTailer {
	return &verifyTailer{
		numChannels:          numChannels,
		blockSize:            blockSize,
		firstFrameByteOffset: firstFrameByteOffset,
	}
}

// verify decodes the frame just appended to bb and compares it,
// sample for sample and channel for channel, against original (the
// pre-decorrelation samples the encoder was given for this block). On
// its first call it seeks bb's read cursor past the metadata blocks
// Init wrote, to the first frame's start; every later call picks up
// right where the previous frame.Decode left off.
func (v *verifyTailer) verify(bb *bitio.BitBuffer, original [][]int32, frameNumber uint32, firstSample uint64) error {
	if !v.positioned {
		if err := bb.SeekReadToByte(v.firstFrameByteOffset); err != nil {
			return err
		}
		v.positioned = true
	}
	_, decoded, err := frame.Decode(bb)
	if err != nil {
		return VerifyMismatch{
			FrameNumber:    frameNumber,
			AbsoluteSample: firstSample,
		}
	}
	if len(decoded) != len(original) {
		return VerifyMismatch{FrameNumber: frameNumber, AbsoluteSample: firstSample}
	}
	for ch := range original {
		for i, want := range original[ch] {
			if i >= len(decoded[ch]) {
				break
			}
			got := decoded[ch][i]
			if got != want {
				return VerifyMismatch{
					AbsoluteSample: firstSample + uint64(i),
					FrameNumber:    frameNumber,
					Channel:        ch,
					SampleIndex:    i,
					Expected:       want,
					Got:            got,
				}
			}
		}
	}
	return nil
}
