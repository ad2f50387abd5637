package flaccore

import (
	"github.com/pkg/errors"

	"github.com/soundkit/flaccore/bitio"
	"github.com/soundkit/flaccore/frame"
)

// SeekableDecoder wraps a Decoder over a seekable Source, adding
// Seek(sample) via the bounded-bisection algorithm of spec §4.9.
type SeekableDecoder struct {
	*Decoder
	approxBytesPerFrame int64
	md5Disabled         bool

	// Set by Seek on success: the frame it landed on, already header-
	// parsed, and how many of its leading samples to drop so the next
	// NextFrame call starts exactly at the requested sample.
	pendingHeader *frame.Header
	trimStart     int
}

// NewSeekableDecoder wraps d, which must already have had Init called
// so StreamInfo (and, if present, SeekTable) are populated.
func NewSeekableDecoder(d *Decoder) *SeekableDecoder {
	sd := &SeekableDecoder{Decoder: d}
	if d.StreamInfo != nil && d.StreamInfo.MaxFrameSize > 0 {
		sd.approxBytesPerFrame = int64(d.StreamInfo.MaxFrameSize)
	} else {
		sd.approxBytesPerFrame = 4096
	}
	return sd
}

// closeEnoughBlocks caps how many blocksizes of slack around a lower
// seek point triggers a direct jump instead of interpolation (spec
// §4.9 step 2's "within a few blocksizes").
const closeEnoughBlocks = 4

// Seek repositions the decoder so the next frame delivered via NextFrame
// covers sample target, trimming its leading edge so the first
// emitted sample is exactly target (spec §4.9 step 5).
func (sd *SeekableDecoder) Seek(target uint64) error {
	if sd.StreamInfo == nil {
		return errors.Wrap(ErrSeekError, "SeekableDecoder.Seek: stream info not yet parsed")
	}

	lowerByte, upperByte, lowerSample, upperSample := sd.bounds(target)

	if _, err := sd.src.Tell(); err != nil {
		return errors.Wrap(ErrTellError, "SeekableDecoder.Seek")
	}

	pos := sd.interpolate(target, lowerByte, upperByte, lowerSample, upperSample)
	backoff := sd.approxBytesPerFrame
	var lastFrameSample uint64 = ^uint64(0)

	for attempt := 0; attempt < 64; attempt++ {
		if pos < lowerByte {
			pos = lowerByte
		}
		if upperByte > 0 && pos >= upperByte {
			pos = upperByte - 1
		}
		if err := sd.src.Seek(sd.firstFrameByteOffset + pos); err != nil {
			return errors.Wrap(ErrSeekError, "SeekableDecoder.Seek")
		}
		sd.bb = bitio.New(sourceReadFunc(sd.src))
		sd.state = stateSearchFrameSync

		reserved, blocking, err := sd.searchFrameSync()
		if err != nil {
			return errors.Wrap(ErrSeekError, "SeekableDecoder.Seek: no frame found")
		}
		hdr, err := frame.DecodeHeaderAfterSync(sd.bb, reserved, blocking)
		if err != nil {
			return errors.Wrap(ErrSeekError, "SeekableDecoder.Seek: unparseable frame at candidate position")
		}

		frameFirst := frameFirstSample(hdr)
		frameLast := frameFirst + uint64(hdr.BlockSize)

		if frameFirst <= target && target < frameLast {
			sd.md5Disabled = true
			sd.md5sum = nil
			sd.trimStart = int(target - frameFirst)
			sd.pendingHeader = &hdr
			return nil
		}

		if frameFirst == lastFrameSample {
			backoff *= 2
		}
		lastFrameSample = frameFirst

		if frameFirst < target {
			pos += sd.approxBytesPerFrame
		} else {
			pos -= backoff
			if pos < 0 {
				pos = 0
			}
		}
	}
	return errors.Wrap(ErrSeekError, "SeekableDecoder.Seek: bisection did not converge")
}

// bounds computes the byte-offset search window from the seek table
// (if present) or the whole-stream span otherwise (spec §4.9 steps
// 1 and 3).
func (sd *SeekableDecoder) bounds(target uint64) (lowerByte, upperByte int64, lowerSample, upperSample uint64) {
	if sd.SeekTable != nil && len(sd.SeekTable.Points) > 0 {
		loI := sd.SeekTable.FindLowerBound(target)
		hiI := sd.SeekTable.FindUpperBound(target)
		if loI >= 0 {
			lowerByte = int64(sd.SeekTable.Points[loI].ByteOffset)
			lowerSample = sd.SeekTable.Points[loI].SampleNumber
		}
		if hiI >= 0 {
			upperByte = int64(sd.SeekTable.Points[hiI].ByteOffset)
			upperSample = sd.SeekTable.Points[hiI].SampleNumber
		} else if sd.StreamInfo.TotalSamples > 0 {
			upperSample = sd.StreamInfo.TotalSamples
			upperByte = 0 // unknown; interpolate treats 0 as "end of known data"
		}
		return lowerByte, upperByte, lowerSample, upperSample
	}
	lowerByte, lowerSample = 0, 0
	upperSample = sd.StreamInfo.TotalSamples
	return lowerByte, 0, lowerSample, upperSample
}

func (sd *SeekableDecoder) interpolate(target uint64, lowerByte, upperByte int64, lowerSample, upperSample uint64) int64 {
	if upperSample > lowerSample && target-lowerSample <= closeEnoughBlocks*uint64(sd.StreamInfo.MaxBlockSize) {
		return lowerByte
	}
	if upperByte > lowerByte && upperSample > lowerSample {
		ratio := float64(target-lowerSample) / float64(upperSample-lowerSample)
		pos := lowerByte + int64(ratio*float64(upperByte-lowerByte))
		return pos - sd.approxBytesPerFrame
	}
	if sd.StreamInfo.TotalSamples > 0 {
		ratio := float64(target) / float64(sd.StreamInfo.TotalSamples)
		return int64(ratio*float64(sd.approxStreamByteLength())) - sd.approxBytesPerFrame
	}
	return lowerByte
}

func (sd *SeekableDecoder) approxStreamByteLength() int64 {
	if sd.StreamInfo.TotalSamples == 0 || sd.StreamInfo.MaxBlockSize == 0 {
		return 0
	}
	frames := int64(sd.StreamInfo.TotalSamples) / int64(sd.StreamInfo.MaxBlockSize)
	return frames * sd.approxBytesPerFrame
}

func frameFirstSample(hdr frame.Header) uint64 {
	if hdr.VariableBlockSize {
		return hdr.SampleNumber
	}
	return uint64(hdr.FrameNumber) * uint64(hdr.BlockSize)
}

// NextFrame delivers the frame Seek landed on (trimmed to start at
// the requested sample, per spec §4.9 step 5), or, once that one has
// been delivered, runs the embedded Decoder's normal
// search_frame_sync/read_frame cycle by calling Run, which decodes every
// remaining frame up to end of stream.
func (sd *SeekableDecoder) NextFrame() error {
	if sd.pendingHeader == nil {
		return sd.Run()
	}
	hdr := *sd.pendingHeader
	sd.pendingHeader = nil

	channels, err := sd.decodeFrameBody(hdr)
	if err != nil {
		return err
	}
	if sd.trimStart > 0 {
		for i := range channels {
			if sd.trimStart < len(channels[i]) {
				channels[i] = channels[i][sd.trimStart:]
			} else {
				channels[i] = nil
			}
		}
		hdr.BlockSize -= uint16(sd.trimStart)
		sd.trimStart = 0
	}
	sd.state = stateSearchFrameSync

	if sd.OnFrame != nil {
		return sd.OnFrame(hdr, channels)
	}
	return nil
}
