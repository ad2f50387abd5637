package flaccore

import "github.com/pkg/errors"

// Error kinds (spec §7): sentinel values so callers can branch with
// errors.Is, wrapped with operation context via github.com/pkg/errors
// as they cross package boundaries.
var (
	// ErrLostSync is raised by the decoder's frame-sync scanner when a
	// byte stream position that should hold a sync code doesn't.
	// Recovery: resync and continue.
	ErrLostSync = errors.New("flaccore: lost frame sync")

	// ErrBadHeader is raised when a frame header fails to parse.
	// Recovery: resync.
	ErrBadHeader = errors.New("flaccore: invalid frame header")

	// ErrFrameCRCMismatch is raised when a decoded frame's CRC-16
	// doesn't match. Recovery: the frame's block is delivered
	// zero-filled and decoding continues.
	ErrFrameCRCMismatch = errors.New("flaccore: frame CRC-16 mismatch")

	// ErrUnparseable is raised when the stream contains a value
	// reserved by the format. Terminal.
	ErrUnparseable = errors.New("flaccore: unparseable stream")

	// ErrOutOfMemory signals an allocation failure. Terminal.
	ErrOutOfMemory = errors.New("flaccore: out of memory")

	// ErrInvalidConfiguration is returned by Encoder/Decoder Init when
	// configuration is self-inconsistent.
	ErrInvalidConfiguration = errors.New("flaccore: invalid configuration")

	// ErrNotStreamable is returned by Encoder Init when
	// StreamableSubset is required but the configuration violates it.
	ErrNotStreamable = errors.New("flaccore: configuration is not streamable-subset compliant")

	// ErrVerifyMismatch is raised by the verify tailer when decoded
	// samples don't match the originals.
	ErrVerifyMismatch = errors.New("flaccore: verify mismatch")

	// ErrSeekError is returned when the underlying source cannot seek.
	ErrSeekError = errors.New("flaccore: seek error")

	// ErrTellError is returned when the underlying source cannot report
	// its position.
	ErrTellError = errors.New("flaccore: tell error")

	// ErrMD5Mismatch is returned by Decoder.Finish when the running
	// MD5 of decoded samples doesn't match STREAMINFO's signature.
	ErrMD5Mismatch = errors.New("flaccore: decoded MD5 does not match STREAMINFO")
)

// VerifyMismatch records the context of one verify-tailer sample
// mismatch (spec §4.10).
type VerifyMismatch struct {
	AbsoluteSample uint64
	FrameNumber    uint32
	Channel        int
	SampleIndex    int
	Expected       int32
	Got            int32
}

func (m VerifyMismatch) Error() string {
	return errors.Wrapf(ErrVerifyMismatch,
		"frame %d channel %d sample %d (absolute %d): expected %d, got %d",
		m.FrameNumber, m.Channel, m.SampleIndex, m.AbsoluteSample, m.Expected, m.Got).Error()
}

// Unwrap lets errors.Is(err, ErrVerifyMismatch) succeed for a
// VerifyMismatch value.
func (m VerifyMismatch) Unwrap() error { return ErrVerifyMismatch }
