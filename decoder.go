package flaccore

import (
	"bytes"
	"crypto/md5"
	"hash"
	"io"

	"github.com/pkg/errors"

	"github.com/soundkit/flaccore/bitio"
	"github.com/soundkit/flaccore/frame"
	"github.com/soundkit/flaccore/meta"
)

// decoderState is one node of the state machine in spec §4.7.
type decoderState int

const (
	stateSearchMetadata decoderState = iota
	stateReadMetadata
	stateSearchFrameSync
	stateReadFrame
	stateEndOfStream
	stateAborted
	stateUnparseableStream
)

// MetadataCallback fires once per parsed metadata block, in stream
// order.
type MetadataCallback func(meta.Block)

// FrameCallback fires once per decoded frame with its
// already-un-decorrelated per-channel samples.
type FrameCallback func(hdr frame.Header, channels [][]int32) error

// ErrorCallback fires for non-terminal errors (lost sync, bad header,
// frame CRC mismatch) that the decoder recovers from by resyncing.
type ErrorCallback func(error)

// Decoder drives the search_metadata -> read_metadata ->
// search_frame_sync -> read_frame state machine of spec §4.7.
type Decoder struct {
	cfg DecoderConfig
	src Source
	bb  *bitio.BitBuffer

	state decoderState

	StreamInfo *meta.StreamInfo
	SeekTable  *meta.SeekTable

	firstFrameByteOffset int64

	OnMetadata MetadataCallback
	OnFrame    FrameCallback
	OnError    ErrorCallback

	samplesDelivered uint64
	md5sum           hash.Hash
}

// NewDecoder returns a Decoder bound to src, in state
// search_metadata.
func NewDecoder(cfg DecoderConfig, src Source) *Decoder {
	return &Decoder{cfg: cfg, src: src, state: stateSearchMetadata}
}

// Init runs search_metadata and read_metadata to completion: it skips
// a leading ID3v2 tag if present, verifies the fLaC signature, and
// parses every metadata block up to and including the one marked
// is_last.
func (d *Decoder) Init() error {
	d.bb = bitio.New(sourceReadFunc(d.src))
	if d.cfg.CheckMD5 {
		d.md5sum = md5.New()
	}

	if err := d.searchMetadata(); err != nil {
		d.state = stateUnparseableStream
		return err
	}
	d.state = stateReadMetadata

	r := &bbReader{bb: d.bb}
	for {
		blk, err := meta.ReadBlock(r)
		if err != nil {
			d.state = stateUnparseableStream
			return errors.WithMessage(err, "Decoder.Init")
		}
		if d.cfg.MetadataFilter == nil || d.cfg.MetadataFilter(uint8(blk.Header.BlockType)) {
			switch body := blk.Body.(type) {
			case *meta.StreamInfo:
				d.StreamInfo = body
			case *meta.SeekTable:
				d.SeekTable = body
			}
		}
		if d.OnMetadata != nil {
			d.OnMetadata(blk)
		}
		if blk.Header.IsLast {
			break
		}
	}

	d.firstFrameByteOffset = int64(d.bb.Len())
	d.state = stateSearchFrameSync
	return nil
}

// searchMetadata implements spec §4.7's search_metadata: it reads the
// first 4 bytes, and if they spell "ID3" plus a version byte, skips
// the rest of the ID3v2 header and its synchsafe-encoded tag body
// before requiring the fLaC signature.
func (d *Decoder) searchMetadata() error {
	var first [4]byte
	for i := range first {
		v, err := d.bb.ReadRawUint(8)
		if err != nil {
			return errors.WithMessage(err, "Decoder.searchMetadata")
		}
		first[i] = byte(v)
	}
	if string(first[:]) == Signature {
		return nil
	}
	if first[0] == 'I' && first[1] == 'D' && first[2] == '3' {
		if _, err := d.bb.ReadRawUint(8); err != nil { // version minor
			return err
		}
		if _, err := d.bb.ReadRawUint(8); err != nil { // flags
			return err
		}
		var size int
		for i := 0; i < 4; i++ {
			v, err := d.bb.ReadRawUint(8)
			if err != nil {
				return err
			}
			size = size<<7 | int(v&0x7F)
		}
		for i := 0; i < size; i++ {
			if _, err := d.bb.ReadRawUint(8); err != nil {
				return err
			}
		}
		var sig [4]byte
		for i := range sig {
			v, err := d.bb.ReadRawUint(8)
			if err != nil {
				return err
			}
			sig[i] = byte(v)
		}
		if string(sig[:]) != Signature {
			return errors.Wrap(ErrUnparseable, "Decoder.searchMetadata: missing fLaC signature after ID3v2 tag")
		}
		return nil
	}
	return errors.Wrap(ErrUnparseable, "Decoder.searchMetadata: missing fLaC signature")
}

// Run decodes frames until end of stream, invoking OnFrame for each
// and OnError for recoverable errors, implementing
// search_frame_sync/read_frame (spec §4.7).
func (d *Decoder) Run() error {
	for {
		switch d.state {
		case stateSearchFrameSync:
			if d.totalSamplesExhausted() {
				d.state = stateEndOfStream
				return nil
			}
			reserved, blocking, err := d.searchFrameSync()
			if err != nil {
				if errors.Is(err, bitio.ErrEndOfStream) {
					d.state = stateEndOfStream
					return nil
				}
				if errors.Is(err, bitio.ErrAborted) {
					d.state = stateAborted
					return err
				}
				d.state = stateUnparseableStream
				return err
			}
			if err := d.readFrame(reserved, blocking); err != nil {
				d.state = stateUnparseableStream
				return err
			}
			d.state = stateSearchFrameSync

		case stateEndOfStream, stateAborted, stateUnparseableStream:
			return nil

		default:
			return errors.New("flaccore: Decoder.Run called before Init")
		}
	}
}

// Finish checks the running MD5 of decoded samples (when CheckMD5 was
// set and no Seek has disabled it) against STREAMINFO's signature, per
// spec §8's round-trip property. It is a no-op, returning nil, when MD5
// checking was never enabled or the stream's STREAMINFO carries an
// all-zero signature (meaning the encoder never computed one).
func (d *Decoder) Finish() error {
	if d.md5sum == nil || d.StreamInfo == nil {
		return nil
	}
	if d.StreamInfo.MD5Sum == ([16]byte{}) {
		return nil
	}
	got := d.md5sum.Sum(nil)
	if !bytes.Equal(got, d.StreamInfo.MD5Sum[:]) {
		return errors.Wrapf(ErrMD5Mismatch, "want %x got %x", d.StreamInfo.MD5Sum[:], got)
	}
	return nil
}

func (d *Decoder) totalSamplesExhausted() bool {
	return d.StreamInfo != nil && d.StreamInfo.TotalSamples != 0 &&
		d.samplesDelivered >= d.StreamInfo.TotalSamples
}

// searchFrameSync scans byte-wise, outside CRC tracking, for 0xFF
// followed by a byte whose top 6 bits are 0b111110 (spec §4.7). Once
// matched, it resets both CRC registers and folds in exactly those
// two bytes, so DecodeHeaderAfterSync's own reads continue the same
// CRC-8/CRC-16 computation the rest of the frame needs.
func (d *Decoder) searchFrameSync() (reserved, blocking uint64, err error) {
	var pending byte
	havePending := false
	for {
		var cur byte
		if havePending {
			cur = pending
			havePending = false
		} else {
			cur, err = d.bb.ReadByteNoCRC()
			if err != nil {
				return 0, 0, err
			}
		}
		if cur != 0xFF {
			if d.OnError != nil {
				d.OnError(errors.Wrap(ErrLostSync, "Decoder.searchFrameSync"))
			}
			continue
		}
		nxt, err := d.bb.ReadByteNoCRC()
		if err != nil {
			return 0, 0, err
		}
		if nxt&0xFC == 0xF8 {
			d.bb.ResetCRC8()
			d.bb.ResetCRC16()
			d.bb.FoldReadCRCByte(cur)
			d.bb.FoldReadCRCByte(nxt)
			return uint64(nxt>>1) & 1, uint64(nxt) & 1, nil
		}
		if d.OnError != nil {
			d.OnError(errors.Wrap(ErrLostSync, "Decoder.searchFrameSync"))
		}
		pending, havePending = nxt, true
	}
}

func (d *Decoder) readFrame(reserved, blocking uint64) error {
	hdr, err := frame.DecodeHeaderAfterSync(d.bb, reserved, blocking)
	if err != nil {
		if d.OnError != nil {
			d.OnError(errors.Wrap(ErrBadHeader, err.Error()))
		}
		return nil
	}

	channels, err := d.decodeFrameBody(hdr)
	if err != nil {
		return err
	}

	if d.OnFrame != nil {
		return d.OnFrame(hdr, channels)
	}
	return nil
}

// decodeFrameBody reads every subframe, checks the frame CRC-16, and
// returns the un-decorrelated per-channel samples, given an
// already-parsed header. Shared by normal sequential decoding and the
// seekable decoder's first post-seek frame.
func (d *Decoder) decodeFrameBody(hdr frame.Header) ([][]int32, error) {
	n := hdr.ChannelAssignment.NumChannels()
	subframes := make([]frame.Subframe, n)
	for i := range subframes {
		chBps := frame.SideChannelBps(hdr.ChannelAssignment, i, hdr.BitsPerSample)
		sf, err := frame.DecodeSubframe(d.bb, chBps, int(hdr.BlockSize))
		if err != nil {
			return nil, errors.WithMessage(err, "Decoder.decodeFrameBody")
		}
		subframes[i] = sf
	}

	if err := d.bb.ReadZeroPadToByteBoundary(); err != nil {
		return nil, errors.WithMessage(err, "Decoder.decodeFrameBody")
	}
	want, got, err := d.bb.ReadCRC16()
	if err != nil {
		return nil, errors.WithMessage(err, "Decoder.decodeFrameBody")
	}

	channels := make([][]int32, n)
	if want != got {
		if d.OnError != nil {
			d.OnError(errors.Wrapf(ErrFrameCRCMismatch, "frame %d", hdr.FrameNumber))
		}
		for i := range channels {
			channels[i] = make([]int32, hdr.BlockSize)
		}
	} else {
		for i, sf := range subframes {
			channels[i] = frame.Reconstruct(sf, int(hdr.BlockSize))
		}
		if hdr.ChannelAssignment.IsStereoDecorrelated() {
			left, right := frame.Undecorrelate(hdr.ChannelAssignment, channels[0], channels[1])
			channels[0], channels[1] = left, right
		}
	}

	d.samplesDelivered += uint64(hdr.BlockSize)
	if d.md5sum != nil {
		for _, ch := range channels {
			for _, s := range ch {
				d.md5sum.Write([]byte{byte(s >> 24), byte(s >> 16), byte(s >> 8), byte(s)})
			}
		}
	}
	return channels, nil
}

// bbReader adapts a *bitio.BitBuffer to io.Reader, byte at a time, for
// the meta package's block parsers.
type bbReader struct {
	bb *bitio.BitBuffer
}

func (r *bbReader) Read(p []byte) (int, error) {
	for i := range p {
		v, err := r.bb.ReadRawUint(8)
		if err != nil {
			if errors.Is(err, bitio.ErrEndOfStream) {
				if i > 0 {
					return i, nil
				}
				return 0, io.EOF
			}
			return i, err
		}
		p[i] = byte(v)
	}
	return len(p), nil
}
