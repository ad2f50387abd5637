package flaccore

import "github.com/pkg/errors"

// streamableBlockSizes and streamableSampleRates enumerate the values
// permitted when StreamableSubset is set (spec §6.2's streamable
// subset, referenced by EncoderConfig.Validate).
var streamableBlockSizes = map[uint16]bool{
	192: true, 576: true, 1152: true, 2304: true, 4608: true,
	256: true, 512: true, 1024: true, 2048: true, 4096: true, 8192: true, 16384: true,
}

var streamableSampleRates = map[uint32]bool{
	8000: true, 16000: true, 22050: true, 24000: true, 32000: true,
	44100: true, 48000: true, 96000: true,
}

// EncoderConfig collects every encoder enumerated option (spec §6.3).
// Build one with NewEncoderConfig and EncoderOption funcs; it is
// validated once by Encoder.Init and immutable afterward.
type EncoderConfig struct {
	Channels   int
	BitsPerSample uint8
	SampleRate uint32
	BlockSize  uint16

	StreamableSubset bool
	DoMidSide        bool
	LooseMidSide     bool

	MaxLPCOrder           int
	QLPCoeffPrecision     uint
	DoQLPCoeffPrecSearch  bool
	DoExhaustiveModelSearch bool

	MinResidualPartitionOrder uint
	MaxResidualPartitionOrder uint
	RiceParameterSearchDist   uint

	TotalSamplesEstimate uint64
	Padding              uint32
	Verify               bool
	SeekTableSpec        string
}

// EncoderOption mutates an EncoderConfig under construction.
type EncoderOption func(*EncoderConfig)

// NewEncoderConfig returns an EncoderConfig seeded with the same
// defaults as the reference encoder at its default compression level:
// mid-side search on, LPC up to order 8, auto coefficient precision,
// adaptive Rice partitioning, no verify, no padding.
func NewEncoderConfig(channels int, bps uint8, sampleRate uint32, blockSize uint16, opts ...EncoderOption) EncoderConfig {
	cfg := EncoderConfig{
		Channels:      channels,
		BitsPerSample: bps,
		SampleRate:    sampleRate,
		BlockSize:     blockSize,

		DoMidSide:                 channels == 2,
		MaxLPCOrder:               8,
		QLPCoeffPrecision:         0,
		DoQLPCoeffPrecSearch:      false,
		DoExhaustiveModelSearch:   false,
		MinResidualPartitionOrder: 0,
		MaxResidualPartitionOrder: 6,
		RiceParameterSearchDist:   0,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func WithStreamableSubset(v bool) EncoderOption { return func(c *EncoderConfig) { c.StreamableSubset = v } }
func WithMidSide(v bool) EncoderOption          { return func(c *EncoderConfig) { c.DoMidSide = v } }
func WithLooseMidSide(v bool) EncoderOption     { return func(c *EncoderConfig) { c.LooseMidSide = v } }
func WithMaxLPCOrder(order int) EncoderOption   { return func(c *EncoderConfig) { c.MaxLPCOrder = order } }
func WithQLPCoeffPrecision(p uint) EncoderOption {
	return func(c *EncoderConfig) { c.QLPCoeffPrecision = p }
}
func WithQLPCoeffPrecSearch(v bool) EncoderOption {
	return func(c *EncoderConfig) { c.DoQLPCoeffPrecSearch = v }
}
func WithExhaustiveModelSearch(v bool) EncoderOption {
	return func(c *EncoderConfig) { c.DoExhaustiveModelSearch = v }
}
func WithResidualPartitionOrders(min, max uint) EncoderOption {
	return func(c *EncoderConfig) { c.MinResidualPartitionOrder = min; c.MaxResidualPartitionOrder = max }
}
func WithRiceParameterSearchDist(d uint) EncoderOption {
	return func(c *EncoderConfig) { c.RiceParameterSearchDist = d }
}
func WithTotalSamplesEstimate(n uint64) EncoderOption {
	return func(c *EncoderConfig) { c.TotalSamplesEstimate = n }
}
func WithPadding(n uint32) EncoderOption   { return func(c *EncoderConfig) { c.Padding = n } }
func WithVerify(v bool) EncoderOption      { return func(c *EncoderConfig) { c.Verify = v } }
func WithSeekTableSpec(s string) EncoderOption { return func(c *EncoderConfig) { c.SeekTableSpec = s } }

// Validate checks self-consistency and, if StreamableSubset is set,
// subset compliance. It is called once by Encoder.Init.
func (c EncoderConfig) Validate() error {
	if c.Channels < 1 || c.Channels > 8 {
		return errors.Wrapf(ErrInvalidConfiguration, "channels %d out of range", c.Channels)
	}
	if c.BitsPerSample < 4 || c.BitsPerSample > 32 {
		return errors.Wrapf(ErrInvalidConfiguration, "bits per sample %d out of range", c.BitsPerSample)
	}
	if c.SampleRate == 0 {
		return errors.Wrap(ErrInvalidConfiguration, "sample rate must be nonzero")
	}
	if c.BlockSize < 16 || c.BlockSize > 65535 {
		return errors.Wrapf(ErrInvalidConfiguration, "blocksize %d out of range", c.BlockSize)
	}
	if c.MaxLPCOrder < 0 || c.MaxLPCOrder > 32 {
		return errors.Wrapf(ErrInvalidConfiguration, "max LPC order %d out of range", c.MaxLPCOrder)
	}
	if c.QLPCoeffPrecision != 0 && (c.QLPCoeffPrecision < 5 || c.QLPCoeffPrecision > 15) {
		return errors.Wrapf(ErrInvalidConfiguration, "QLP coefficient precision %d out of range", c.QLPCoeffPrecision)
	}
	if c.MinResidualPartitionOrder > c.MaxResidualPartitionOrder {
		return errors.Wrap(ErrInvalidConfiguration, "min residual partition order exceeds max")
	}
	if c.DoMidSide && c.Channels != 2 {
		return errors.Wrap(ErrInvalidConfiguration, "mid-side decorrelation requires exactly two channels")
	}

	if c.StreamableSubset {
		if !streamableBlockSizes[c.BlockSize] {
			return errors.Wrapf(ErrNotStreamable, "blocksize %d not in streamable subset", c.BlockSize)
		}
		if !streamableSampleRates[c.SampleRate] {
			return errors.Wrapf(ErrNotStreamable, "sample rate %d not in streamable subset", c.SampleRate)
		}
		if c.BitsPerSample != 8 && c.BitsPerSample != 12 && c.BitsPerSample != 16 &&
			c.BitsPerSample != 20 && c.BitsPerSample != 24 {
			return errors.Wrapf(ErrNotStreamable, "bits per sample %d not in streamable subset", c.BitsPerSample)
		}
	}
	return nil
}

// DecoderConfig collects decoder-side options. Unlike the encoder,
// the decoder has little to configure: the stream itself carries its
// own parameters.
type DecoderConfig struct {
	// CheckMD5 accumulates a running MD5 of delivered samples so
	// Decoder.Finish can compare it against STREAMINFO's signature.
	CheckMD5 bool
	// MetadataFilter, if non-nil, is called with each block type as
	// it's encountered; returning false skips storing that block's
	// body (the header is still consumed).
	MetadataFilter func(blockType uint8) bool
}

// DecoderOption mutates a DecoderConfig under construction.
type DecoderOption func(*DecoderConfig)

// NewDecoderConfig returns a DecoderConfig with MD5 checking enabled
// and no metadata filtering.
func NewDecoderConfig(opts ...DecoderOption) DecoderConfig {
	cfg := DecoderConfig{CheckMD5: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func WithCheckMD5(v bool) DecoderOption { return func(c *DecoderConfig) { c.CheckMD5 = v } }
func WithMetadataFilter(f func(blockType uint8) bool) DecoderOption {
	return func(c *DecoderConfig) { c.MetadataFilter = f }
}
