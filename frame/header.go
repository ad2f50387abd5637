// Package frame implements frame header, subframe, and whole-frame
// encode/decode (components C5-C7): per spec, blocksize-oriented
// encoding with stereo channel decorrelation, per-channel predictor
// selection, and the matching decoder side with CRC verification and
// channel un-decorrelation.
package frame

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/soundkit/flaccore/bitio"
)

// SyncCode is the 14-bit frame sync pattern, 0b11111111111110.
const SyncCode = 0x3FFE

// ChannelAssignment identifies how a frame's subframes map to output
// channels: either an independent channel count (1-8) or one of the
// three two-channel decorrelation modes.
type ChannelAssignment uint8

const (
	ChannelMono ChannelAssignment = iota
	ChannelLR
	ChannelLRC
	ChannelLRLsRs
	ChannelLRCLsRs
	ChannelLRCLfeLsRs
	Channel7
	Channel8
	ChannelLeftSide
	ChannelRightSide
	ChannelMidSide
)

var channelCounts = [...]int{1, 2, 3, 4, 5, 6, 7, 8, 2, 2, 2}

// NumChannels returns the number of encoded channels for this
// assignment (always 2 for the decorrelation modes).
func (ca ChannelAssignment) NumChannels() int {
	if int(ca) < len(channelCounts) {
		return channelCounts[ca]
	}
	return 0
}

// IsStereoDecorrelated reports whether ca is one of left_side,
// right_side, or mid_side.
func (ca ChannelAssignment) IsStereoDecorrelated() bool {
	return ca >= ChannelLeftSide && ca <= ChannelMidSide
}

// Header is a parsed/to-be-emitted frame header (spec §3, §4.6, §4.7).
type Header struct {
	VariableBlockSize bool
	BlockSize         uint16
	SampleRate        uint32
	ChannelAssignment ChannelAssignment
	BitsPerSample     uint8
	// FrameNumber is valid when !VariableBlockSize.
	FrameNumber uint32
	// SampleNumber is valid when VariableBlockSize.
	SampleNumber uint64
}

// blockSizeCode returns the 4-bit block size code and, for codes 0110/
// 0111, the literal trailing value to emit (blockSize-1).
func blockSizeCode(blockSize uint16) (code uint, trailingBits uint, trailingVal uint64) {
	switch blockSize {
	case 192:
		return 1, 0, 0
	case 576, 1152, 2304, 4608:
		for n := uint(2); n <= 5; n++ {
			if blockSize == 576<<(n-2) {
				return n, 0, 0
			}
		}
	}
	for n := uint(8); n <= 15; n++ {
		if blockSize == 256<<(n-8) {
			return n, 0, 0
		}
	}
	if blockSize-1 <= 0xFF {
		return 6, 8, uint64(blockSize) - 1
	}
	return 7, 16, uint64(blockSize) - 1
}

func blockSizeFromCode(code uint, trailing uint64) (uint16, error) {
	switch {
	case code == 0:
		return 0, errors.New("frame: reserved block size code 0000")
	case code == 1:
		return 192, nil
	case code >= 2 && code <= 5:
		return uint16(576 << (code - 2)), nil
	case code == 6:
		return uint16(trailing) + 1, nil
	case code == 7:
		return uint16(trailing) + 1, nil
	case code >= 8 && code <= 15:
		return uint16(256 << (code - 8)), nil
	}
	return 0, fmt.Errorf("frame: unhandled block size code %04b", code)
}

// sampleRateTable maps sample-rate codes 0001-1011 to their fixed Hz
// value; codes 0000/1100/1101/1110/1111 are handled separately.
var sampleRateTable = [...]uint32{
	0, 88200, 176400, 192000, 8000, 16000, 22050, 24000,
	32000, 44100, 48000, 96000,
}

// sampleRateCode returns the 4-bit sample-rate code and, for the
// 1100/1101/1110 hint codes, the trailing bit width and value.
func sampleRateCode(rate uint32) (code uint, trailingBits uint, trailingVal uint64) {
	for n, v := range sampleRateTable {
		if n == 0 {
			continue
		}
		if v == rate {
			return uint(n), 0, 0
		}
	}
	if rate%1000 == 0 && rate/1000 <= 0xFF {
		return 12, 8, uint64(rate / 1000)
	}
	if rate <= 0xFFFF {
		return 13, 16, uint64(rate)
	}
	if rate%10 == 0 && rate/10 <= 0xFFFF {
		return 14, 16, uint64(rate / 10)
	}
	// 0000 defers to STREAMINFO; used when no other code fits.
	return 0, 0, 0
}

func sampleRateFromCode(code uint, trailing uint64) (uint32, error) {
	switch {
	case code == 0:
		return 0, nil // caller resolves from STREAMINFO
	case code >= 1 && code <= 11:
		return sampleRateTable[code], nil
	case code == 12:
		return uint32(trailing) * 1000, nil
	case code == 13:
		return uint32(trailing), nil
	case code == 14:
		return uint32(trailing) * 10, nil
	case code == 15:
		return 0, errors.New("frame: invalid sample rate code 1111")
	}
	return 0, fmt.Errorf("frame: unhandled sample rate code %04b", code)
}

// bpsTable maps the 3-bit bits-per-sample code to a literal bps; 0
// defers to STREAMINFO, 3 and 7 are reserved.
var bpsTable = [...]uint8{0, 8, 12, 0, 16, 20, 24, 0}

func bpsCode(bps uint8) (uint, error) {
	for n, v := range bpsTable {
		if n == 0 || n == 3 || n == 7 {
			continue
		}
		if v == bps {
			return uint(n), nil
		}
	}
	return 0, fmt.Errorf("frame: bits-per-sample %d has no direct code; use 0 with STREAMINFO", bps)
}

func bpsFromCode(code uint) (uint8, error) {
	if code == 3 || code == 7 {
		return 0, fmt.Errorf("frame: reserved bits-per-sample code %03b", code)
	}
	return bpsTable[code], nil
}

// EncodeHeader writes hdr to b, including its trailing CRC-8. The
// caller must have reset b's CRC-8 register immediately before this
// call (ResetCRC8), per the frame CRC-8 covering exactly the header
// bytes.
func EncodeHeader(b *bitio.BitBuffer, hdr Header) error {
	if err := b.WriteRawUint(SyncCode, 14); err != nil {
		return err
	}
	if err := b.WriteRawUint(0, 1); err != nil { // reserved
		return err
	}
	blocking := uint64(0)
	if hdr.VariableBlockSize {
		blocking = 1
	}
	if err := b.WriteRawUint(blocking, 1); err != nil {
		return err
	}

	bsCode, bsTrailBits, bsTrailVal := blockSizeCode(hdr.BlockSize)
	if err := b.WriteRawUint(uint64(bsCode), 4); err != nil {
		return err
	}
	srCode, srTrailBits, srTrailVal := sampleRateCode(hdr.SampleRate)
	if err := b.WriteRawUint(uint64(srCode), 4); err != nil {
		return err
	}
	if err := b.WriteRawUint(uint64(hdr.ChannelAssignment), 4); err != nil {
		return err
	}
	bCode, err := bpsCode(hdr.BitsPerSample)
	if err != nil {
		return errors.WithMessage(err, "frame.EncodeHeader")
	}
	if err := b.WriteRawUint(uint64(bCode), 3); err != nil {
		return err
	}
	if err := b.WriteRawUint(0, 1); err != nil { // reserved
		return err
	}

	if hdr.VariableBlockSize {
		if err := b.WriteUTF8Uint64(hdr.SampleNumber); err != nil {
			return errors.WithMessage(err, "frame.EncodeHeader: sample number")
		}
	} else {
		if err := b.WriteUTF8Uint32(hdr.FrameNumber); err != nil {
			return errors.WithMessage(err, "frame.EncodeHeader: frame number")
		}
	}

	if bsTrailBits > 0 {
		if err := b.WriteRawUint(bsTrailVal, bsTrailBits); err != nil {
			return err
		}
	}
	if srTrailBits > 0 {
		if err := b.WriteRawUint(srTrailVal, srTrailBits); err != nil {
			return err
		}
	}

	return b.WriteCRC8()
}

// DecodeHeader reads a frame header from b, verifying its CRC-8. It
// takes no STREAMINFO: a sample-rate or bps code of 0 ("get from
// STREAMINFO") is returned as 0 for the caller to resolve, and a
// block-size code of 0 is rejected as an error.
func DecodeHeader(b *bitio.BitBuffer) (Header, error) {
	var hdr Header

	sync, err := b.ReadRawUint(14)
	if err != nil {
		return hdr, err
	}
	if sync != SyncCode {
		return hdr, fmt.Errorf("frame.DecodeHeader: invalid sync code 0x%04X", sync)
	}
	reserved, err := b.ReadRawUint(1)
	if err != nil {
		return hdr, err
	}
	blocking, err := b.ReadRawUint(1)
	if err != nil {
		return hdr, err
	}
	return DecodeHeaderAfterSync(b, reserved, blocking)
}

// DecodeHeaderAfterSync parses everything past the 16-bit
// sync+reserved+blocking prefix, given that prefix's already-consumed
// reserved and blocking bit values. A frame decoder that scans for the
// sync pattern byte-wise (spec §4.7's search_frame_sync) consumes that
// prefix itself to detect the sync and calls this instead of
// DecodeHeader, so the bytes it already folded into the read CRC-8
// aren't parsed twice.
func DecodeHeaderAfterSync(b *bitio.BitBuffer, reserved, blocking uint64) (Header, error) {
	var hdr Header
	if reserved != 0 {
		return hdr, errors.New("frame.DecodeHeaderAfterSync: reserved bit must be 0")
	}
	hdr.VariableBlockSize = blocking != 0

	bsCodeU, err := b.ReadRawUint(4)
	if err != nil {
		return hdr, err
	}
	srCodeU, err := b.ReadRawUint(4)
	if err != nil {
		return hdr, err
	}
	caU, err := b.ReadRawUint(4)
	if err != nil {
		return hdr, err
	}
	if caU > 10 {
		return hdr, fmt.Errorf("frame.DecodeHeader: reserved channel assignment %04b", caU)
	}
	hdr.ChannelAssignment = ChannelAssignment(caU)

	bCodeU, err := b.ReadRawUint(3)
	if err != nil {
		return hdr, err
	}
	bps, err := bpsFromCode(uint(bCodeU))
	if err != nil {
		return hdr, errors.WithMessage(err, "frame.DecodeHeader")
	}
	hdr.BitsPerSample = bps

	reserved2, err := b.ReadRawUint(1)
	if err != nil {
		return hdr, err
	}
	if reserved2 != 0 {
		return hdr, errors.New("frame.DecodeHeader: reserved bit must be 0")
	}

	if hdr.VariableBlockSize {
		hdr.SampleNumber, err = b.ReadUTF8Uint64()
	} else {
		hdr.FrameNumber, err = b.ReadUTF8Uint32()
	}
	if err != nil {
		return hdr, errors.WithMessage(err, "frame.DecodeHeader: frame/sample number")
	}

	var bsTrailing, srTrailing uint64
	needBsTrail := bsCodeU == 6 || bsCodeU == 7
	if needBsTrail {
		width := uint(8)
		if bsCodeU == 7 {
			width = 16
		}
		bsTrailing, err = b.ReadRawUint(width)
		if err != nil {
			return hdr, err
		}
	}
	needSrTrail := srCodeU == 12 || srCodeU == 13 || srCodeU == 14
	if needSrTrail {
		width := uint(8)
		if srCodeU != 12 {
			width = 16
		}
		srTrailing, err = b.ReadRawUint(width)
		if err != nil {
			return hdr, err
		}
	}

	hdr.BlockSize, err = blockSizeFromCode(uint(bsCodeU), bsTrailing)
	if err != nil {
		return hdr, errors.WithMessage(err, "frame.DecodeHeader")
	}
	hdr.SampleRate, err = sampleRateFromCode(uint(srCodeU), srTrailing)
	if err != nil {
		return hdr, errors.WithMessage(err, "frame.DecodeHeader")
	}

	want, got, err := b.ReadCRC8()
	if err != nil {
		return hdr, err
	}
	if want != got {
		return hdr, fmt.Errorf("frame.DecodeHeader: %w: want 0x%02X got 0x%02X", ErrBadCRC8, want, got)
	}

	return hdr, nil
}

// ErrBadCRC8 is returned (wrapped) by DecodeHeader on a header CRC-8
// mismatch.
var ErrBadCRC8 = errors.New("frame: header CRC-8 mismatch")
