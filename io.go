package flaccore

import "github.com/soundkit/flaccore/bitio"

// Source is the pull-based input trait the decoder and seekable
// decoder read from (spec §9's re-architecture of the original's
// callback-based pull I/O as a small trait). Implementations for
// file, memory, and pipe sources are host-provided; flaccore only
// requires this interface.
type Source interface {
	// Read pulls up to len(p) bytes, FLAC-bitio style: returns the
	// count read and a bitio.Status describing why fewer than len(p)
	// bytes (possibly zero) came back.
	Read(p []byte) (n int, status bitio.Status)
	// Seek repositions the source to an absolute byte offset. Returns
	// ErrSeekError-wrapped on failure; sources that cannot seek should
	// always fail here rather than silently no-op.
	Seek(offset int64) error
	// Tell returns the current absolute byte offset.
	Tell() (int64, error)
	// Length returns the total byte length if known, or false.
	Length() (int64, bool)
}

// Sink is the push-based output trait the encoder writes frames and
// metadata to.
type Sink interface {
	Write(p []byte) (n int, err error)
	// Seek repositions the sink for the metadata-rewrite step at
	// Encoder.Finish (spec §4.8). Sinks that aren't seekable should
	// return an error; Finish then returns an ErrSeekError-wrapped error
	// and the placeholder values stay as written.
	Seek(offset int64) error
}

// ReaderFunc adapts a plain func(p []byte) (int, bitio.Status) to a
// bitio.ReadFunc, the shape the BitBuffer itself expects; used to
// bridge a Source into a *bitio.BitBuffer.
func sourceReadFunc(src Source) bitio.ReadFunc {
	return func(p []byte) (int, bitio.Status) {
		return src.Read(p)
	}
}
