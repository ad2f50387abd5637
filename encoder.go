package flaccore

import (
	"crypto/md5"
	"hash"
	"math"

	"github.com/pkg/errors"

	"github.com/soundkit/flaccore/bitio"
	"github.com/soundkit/flaccore/frame"
	"github.com/soundkit/flaccore/meta"
)

// Encoder drives the new→configure→init→process*→finish→destroy
// lifecycle of spec §4.6/§4.8. Construct with NewEncoder, call Init
// once, feed samples with Process or ProcessInterleaved, and call
// Finish to flush the last partial block and rewrite placeholder
// metadata.
type Encoder struct {
	cfg  EncoderConfig
	sink Sink

	bb          *bitio.BitBuffer
	writeOffset int

	streamInfo           meta.StreamInfo
	streamInfoBodyOffset int64
	seekTable            meta.SeekTable
	seekTableBodyOffset  int64
	firstFrameByteOffset int64

	md5sum hash.Hash

	frameNumber    uint32
	samplesWritten uint64
	minFrameSize   uint32
	maxFrameSize   uint32

	pending [][]int32 // per-channel accumulation buffer, len < BlockSize

	looseMidSideCounter int
	looseMidSideStep    int
	lastWasMidSide      bool

	verifier *verifyTailer

	initialized bool
	finished    bool
}

// NewEncoder returns an Encoder bound to sink, not yet initialized.
func NewEncoder(cfg EncoderConfig, sink Sink) *Encoder {
	return &Encoder{cfg: cfg, sink: sink}
}

// Init validates the configuration, writes the stream signature and
// metadata blocks (STREAMINFO with placeholder totals, an optional
// SEEKTABLE, and PADDING), and prepares internal buffers.
func (e *Encoder) Init() error {
	if e.initialized {
		return errors.Wrap(ErrInvalidConfiguration, "encoder already initialized")
	}
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	e.bb = bitio.New(nil)
	e.md5sum = md5.New()
	e.minFrameSize = ^uint32(0)
	e.pending = make([][]int32, e.cfg.Channels)
	for i := range e.pending {
		e.pending[i] = make([]int32, 0, e.cfg.BlockSize)
	}

	e.looseMidSideStep = int(math.Round(float64(e.cfg.SampleRate) * 0.4 / float64(e.cfg.BlockSize)))
	if e.looseMidSideStep < 1 {
		e.looseMidSideStep = 1
	}

	if e.cfg.SeekTableSpec != "" {
		st, err := ParseSeekTableSpec(e.cfg.SeekTableSpec, e.cfg.SampleRate, e.cfg.BlockSize, e.cfg.TotalSamplesEstimate)
		if err != nil {
			return errors.WithMessage(err, "Encoder.Init")
		}
		e.seekTable = st
	}

	if err := e.writeBytes([]byte(Signature)); err != nil {
		return err
	}

	e.streamInfo = meta.StreamInfo{
		MinBlockSize:  e.cfg.BlockSize,
		MaxBlockSize:  e.cfg.BlockSize,
		SampleRate:    e.cfg.SampleRate,
		NumChannels:   uint8(e.cfg.Channels),
		BitsPerSample: e.cfg.BitsPerSample,
		TotalSamples:  e.cfg.TotalSamplesEstimate,
	}
	hasSeekTable := len(e.seekTable.Points) > 0
	hasPadding := e.cfg.Padding > 0
	isLastStreamInfo := !hasSeekTable && !hasPadding

	if err := e.writeMetadataBlock(meta.TypeStreamInfo, isLastStreamInfo, func() ([]byte, error) {
		e.streamInfoBodyOffset = int64(e.bb.Len()) + 4 // +4 for the block header just about to be written
		return marshalStreamInfo(e.streamInfo)
	}); err != nil {
		return err
	}

	if hasSeekTable {
		isLast := !hasPadding
		if err := e.writeMetadataBlock(meta.TypeSeekTable, isLast, func() ([]byte, error) {
			e.seekTableBodyOffset = int64(e.bb.Len()) + 4
			return marshalSeekTable(e.seekTable)
		}); err != nil {
			return err
		}
	}

	if hasPadding {
		if err := e.writeMetadataBlock(meta.TypePadding, true, func() ([]byte, error) {
			return make([]byte, e.cfg.Padding), nil
		}); err != nil {
			return err
		}
	}

	e.firstFrameByteOffset = int64(e.bb.Len())

	if e.cfg.Verify {
		e.verifier = newVerifyTailer(e.cfg.Channels, int(e.cfg.BlockSize), e.firstFrameByteOffset)
	}

	if err := e.flush(); err != nil {
		return err
	}

	e.initialized = true
	return nil
}

// writeBytes appends raw bytes to the session buffer without CRC
// tracking (metadata has none); it does so by borrowing the
// BitBuffer's byte-aligned write path one byte at a time.
func (e *Encoder) writeBytes(p []byte) error {
	for _, by := range p {
		if err := e.bb.WriteRawUint(uint64(by), 8); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeMetadataBlock(t meta.BlockType, isLast bool, body func() ([]byte, error)) error {
	payload, err := body()
	if err != nil {
		return err
	}
	hdr := make([]byte, 4)
	if isLast {
		hdr[0] = 0x80
	}
	hdr[0] |= byte(t) & 0x7F
	hdr[1] = byte(len(payload) >> 16)
	hdr[2] = byte(len(payload) >> 8)
	hdr[3] = byte(len(payload))
	if err := e.writeBytes(hdr); err != nil {
		return err
	}
	return e.writeBytes(payload)
}

// flush pushes every byte written to e.bb since the last flush out to
// the sink.
func (e *Encoder) flush() error {
	buf := e.bb.Bytes()
	if e.writeOffset >= len(buf) {
		return nil
	}
	n, err := e.sink.Write(buf[e.writeOffset:])
	e.writeOffset += n
	return err
}

// ProcessInterleaved accepts interleaved PCM samples (channels
// contiguous per frame) and buffers/encodes full blocks as they
// accumulate.
func (e *Encoder) ProcessInterleaved(interleaved []int32) error {
	if !e.initialized {
		return errors.Wrap(ErrInvalidConfiguration, "encoder not initialized")
	}
	ch := e.cfg.Channels
	if len(interleaved)%ch != 0 {
		return errors.Wrap(ErrInvalidConfiguration, "interleaved sample count not a multiple of channel count")
	}
	deinterleaved := make([][]int32, ch)
	for c := 0; c < ch; c++ {
		deinterleaved[c] = make([]int32, len(interleaved)/ch)
	}
	for i := 0; i < len(interleaved)/ch; i++ {
		for c := 0; c < ch; c++ {
			deinterleaved[c][i] = interleaved[i*ch+c]
		}
	}
	return e.Process(deinterleaved)
}

// Process accepts one slice of samples per channel and encodes every
// full block it can assemble, carrying any remainder forward.
func (e *Encoder) Process(channels [][]int32) error {
	if !e.initialized {
		return errors.Wrap(ErrInvalidConfiguration, "encoder not initialized")
	}
	if len(channels) != e.cfg.Channels {
		return errors.Wrapf(ErrInvalidConfiguration, "expected %d channels, got %d", e.cfg.Channels, len(channels))
	}
	for c := range channels {
		e.pending[c] = append(e.pending[c], channels[c]...)
	}
	for len(e.pending[0]) >= int(e.cfg.BlockSize) {
		block := make([][]int32, e.cfg.Channels)
		for c := range e.pending {
			block[c] = e.pending[c][:e.cfg.BlockSize]
		}
		if err := e.encodeBlock(block); err != nil {
			return err
		}
		for c := range e.pending {
			e.pending[c] = append(e.pending[c][:0], e.pending[c][int(e.cfg.BlockSize):]...)
		}
	}
	return nil
}

// Finish flushes any remaining partial block, then seeks the sink back
// to rewrite the STREAMINFO and SEEKTABLE placeholders. If the sink
// cannot seek, Finish returns an ErrSeekError-wrapped error and the
// placeholder values stay as written.
func (e *Encoder) Finish() error {
	if !e.initialized {
		return errors.Wrap(ErrInvalidConfiguration, "encoder not initialized")
	}
	if e.finished {
		return nil
	}
	if len(e.pending[0]) > 0 {
		if err := e.encodeBlock(e.pending); err != nil {
			return err
		}
		for c := range e.pending {
			e.pending[c] = e.pending[c][:0]
		}
	}
	if err := e.flush(); err != nil {
		return err
	}

	e.streamInfo.TotalSamples = e.samplesWritten
	copy(e.streamInfo.MD5Sum[:], e.md5sum.Sum(nil))
	if e.minFrameSize != ^uint32(0) {
		e.streamInfo.MinFrameSize = e.minFrameSize
	}
	e.streamInfo.MaxFrameSize = e.maxFrameSize

	for i := range e.seekTable.Points {
		if e.seekTable.Points[i].FrameBlockSize == 0 && !e.seekTable.Points[i].IsPlaceholder() {
			e.seekTable.Points[i].SampleNumber = meta.PlaceholderSampleNumber
		}
	}

	if err := e.rewritePlaceholders(); err != nil {
		return errors.WithMessage(err, "Encoder.Finish")
	}
	e.finished = true
	return nil
}

func (e *Encoder) rewritePlaceholders() error {
	body, err := marshalStreamInfo(e.streamInfo)
	if err != nil {
		return err
	}
	if err := e.sink.Seek(e.streamInfoBodyOffset); err != nil {
		return errors.Wrap(ErrSeekError, "rewriting STREAMINFO")
	}
	if _, err := e.sink.Write(body); err != nil {
		return err
	}

	if len(e.seekTable.Points) > 0 {
		stBody, err := marshalSeekTable(e.seekTable)
		if err != nil {
			return err
		}
		if err := e.sink.Seek(e.seekTableBodyOffset); err != nil {
			return errors.Wrap(ErrSeekError, "rewriting SEEKTABLE")
		}
		if _, err := e.sink.Write(stBody); err != nil {
			return err
		}
	}
	return nil
}

// chooseChannelAssignment picks the stereo decorrelation mode for one
// block (spec §4.6). Non-stereo streams, or bps >= 32, always use
// independent coding.
func (e *Encoder) chooseChannelAssignment(left, right []int32) frame.ChannelAssignment {
	if e.cfg.Channels != 2 || !e.cfg.DoMidSide || e.cfg.BitsPerSample >= 32 {
		return frame.ChannelLR
	}

	if e.cfg.LooseMidSide {
		useMidSide := (e.looseMidSideCounter % e.looseMidSideStep) == 0
		e.looseMidSideCounter++
		if useMidSide {
			return e.bestOfTwo(left, right, frame.ChannelMidSide, frame.ChannelLR)
		}
		return frame.ChannelLR
	}

	candidates := []frame.ChannelAssignment{
		frame.ChannelLR, frame.ChannelLeftSide, frame.ChannelRightSide, frame.ChannelMidSide,
	}
	best := candidates[0]
	var bestCost uint64
	for i, ca := range candidates {
		ch0, ch1 := frame.Decorrelate(ca, left, right)
		bps0 := frame.SideChannelBps(ca, 0, e.cfg.BitsPerSample)
		bps1 := frame.SideChannelBps(ca, 1, e.cfg.BitsPerSample)
		cost := e.estimateSubframeCost(ch0, bps0) + e.estimateSubframeCost(ch1, bps1)
		if i == 0 || cost < bestCost {
			best, bestCost = ca, cost
		}
	}
	return best
}

func (e *Encoder) bestOfTwo(left, right []int32, a, b frame.ChannelAssignment) frame.ChannelAssignment {
	ch0a, ch1a := frame.Decorrelate(a, left, right)
	costA := e.estimateSubframeCost(ch0a, frame.SideChannelBps(a, 0, e.cfg.BitsPerSample)) +
		e.estimateSubframeCost(ch1a, frame.SideChannelBps(a, 1, e.cfg.BitsPerSample))
	ch0b, ch1b := frame.Decorrelate(b, left, right)
	costB := e.estimateSubframeCost(ch0b, frame.SideChannelBps(b, 0, e.cfg.BitsPerSample)) +
		e.estimateSubframeCost(ch1b, frame.SideChannelBps(b, 1, e.cfg.BitsPerSample))
	if costA <= costB {
		return a
	}
	return b
}

// estimateSubframeCost runs the real subframe selection and returns
// its chosen candidate's estimated bit cost, reusing the exact
// partitioned-Rice cost ChooseSubframe already computed.
func (e *Encoder) estimateSubframeCost(samples []int32, bps uint8) uint64 {
	sf := frame.ChooseSubframe(samples, bps, e.cfg.MaxLPCOrder, e.effectiveQLPPrecision(),
		e.cfg.MinResidualPartitionOrder, e.cfg.MaxResidualPartitionOrder, e.cfg.RiceParameterSearchDist)
	return approxSubframeBits(sf, bps, len(samples))
}

func (e *Encoder) effectiveQLPPrecision() uint {
	if e.cfg.QLPCoeffPrecision != 0 {
		return e.cfg.QLPCoeffPrecision
	}
	return 14
}

// approxSubframeBits estimates the on-wire bit length of a chosen
// subframe, used only to compare candidates (not for the actual
// encode, which measures exactly via the bitstream it writes).
func approxSubframeBits(sf frame.Subframe, bps uint8, blockSize int) uint64 {
	const subframeHeaderBits = 8
	switch sf.Type {
	case frame.PredConstant:
		return subframeHeaderBits + uint64(bps)
	case frame.PredVerbatim:
		return subframeHeaderBits + uint64(bps)*uint64(blockSize)
	case frame.PredFixed:
		return subframeHeaderBits + uint64(sf.Order)*uint64(bps) + sf.RicePlan.Bits
	case frame.PredLPC:
		return subframeHeaderBits + uint64(sf.Order)*uint64(bps) +
			uint64(sf.Order)*uint64(sf.QLPPrecision) + 5 + 15 + sf.RicePlan.Bits
	}
	return uint64(bps) * uint64(blockSize)
}

func (e *Encoder) encodeBlock(channels [][]int32) error {
	blockSize := len(channels[0])
	ca := channelAssignmentForCount(e.cfg.Channels)
	var encodeChannels [][]int32
	if e.cfg.Channels == 2 {
		ca = e.chooseChannelAssignment(channels[0], channels[1])
		ch0, ch1 := frame.Decorrelate(ca, channels[0], channels[1])
		encodeChannels = [][]int32{ch0, ch1}
	} else {
		encodeChannels = channels
	}

	subframes := make([]frame.Subframe, len(encodeChannels))
	for i, samples := range encodeChannels {
		bps := frame.SideChannelBps(ca, i, e.cfg.BitsPerSample)
		subframes[i] = frame.ChooseSubframe(samples, bps, e.cfg.MaxLPCOrder, e.effectiveQLPPrecision(),
			e.cfg.MinResidualPartitionOrder, e.cfg.MaxResidualPartitionOrder, e.cfg.RiceParameterSearchDist)
	}

	hdr := frame.Header{
		VariableBlockSize: false,
		BlockSize:         uint16(blockSize),
		SampleRate:        e.cfg.SampleRate,
		ChannelAssignment: ca,
		BitsPerSample:     e.cfg.BitsPerSample,
		FrameNumber:       e.frameNumber,
	}

	frameStart := e.bb.Len()
	if err := frame.Encode(e.bb, hdr, encodeChannels, subframes); err != nil {
		return errors.WithMessagef(err, "Encoder: frame %d", e.frameNumber)
	}
	frameSize := uint32(e.bb.Len() - frameStart)
	if frameSize < e.minFrameSize {
		e.minFrameSize = frameSize
	}
	if frameSize > e.maxFrameSize {
		e.maxFrameSize = frameSize
	}

	for _, ch := range channels {
		for _, s := range ch {
			b4 := []byte{byte(s >> 24), byte(s >> 16), byte(s >> 8), byte(s)}
			e.md5sum.Write(b4)
		}
	}

	e.recordSeekPoint(e.samplesWritten, int64(frameStart), uint16(blockSize))

	e.samplesWritten += uint64(blockSize)
	e.frameNumber++

	if e.verifier != nil {
		if err := e.verifier.verify(e.bb, channels, e.frameNumber-1, e.samplesWritten-uint64(blockSize)); err != nil {
			return err
		}
	}

	return e.flush()
}

// recordSeekPoint fills every still-empty (FrameBlockSize==0) seek
// table slot whose target sample is covered by this frame.
func (e *Encoder) recordSeekPoint(frameFirstSample uint64, byteOffset int64, blockSize uint16) {
	for i := range e.seekTable.Points {
		p := &e.seekTable.Points[i]
		if p.FrameBlockSize != 0 || p.IsPlaceholder() {
			continue
		}
		if p.SampleNumber >= frameFirstSample && p.SampleNumber < frameFirstSample+uint64(blockSize) {
			p.SampleNumber = frameFirstSample
			p.ByteOffset = uint64(byteOffset) - uint64(e.firstFrameByteOffset)
			p.FrameBlockSize = blockSize
		}
	}
}

func marshalStreamInfo(si meta.StreamInfo) ([]byte, error) {
	var buf byteBuffer
	if err := meta.WriteStreamInfo(&buf, si); err != nil {
		return nil, err
	}
	return buf.b, nil
}

func marshalSeekTable(st meta.SeekTable) ([]byte, error) {
	var buf byteBuffer
	if err := meta.WriteSeekTable(&buf, st); err != nil {
		return nil, err
	}
	return buf.b, nil
}

// channelAssignmentForCount returns the fixed (non-decorrelated)
// channel assignment for an n-channel stream.
func channelAssignmentForCount(n int) frame.ChannelAssignment {
	switch n {
	case 1:
		return frame.ChannelMono
	case 2:
		return frame.ChannelLR
	case 3:
		return frame.ChannelLRC
	case 4:
		return frame.ChannelLRLsRs
	case 5:
		return frame.ChannelLRCLsRs
	case 6:
		return frame.ChannelLRCLfeLsRs
	case 7:
		return frame.Channel7
	default:
		return frame.Channel8
	}
}

// byteBuffer is a minimal io.Writer sink avoiding a bytes.Buffer
// import purely for these two call sites.
type byteBuffer struct{ b []byte }

func (w *byteBuffer) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}
