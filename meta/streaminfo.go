package meta

import (
	"io"

	"github.com/icza/bitio"
)

// StreamInfo is the mandatory, always-first metadata block (spec §3,
// §6.1): 34 bytes of stream-level parameters plus an MD5 signature of
// the unencoded samples.
type StreamInfo struct {
	MinBlockSize  uint16
	MaxBlockSize  uint16
	MinFrameSize  uint32 // 24-bit on the wire; 0 = unknown
	MaxFrameSize  uint32 // 24-bit on the wire; 0 = unknown
	SampleRate    uint32 // 20-bit on the wire
	NumChannels   uint8  // 1-8; stored as channels-1 (3 bits)
	BitsPerSample uint8  // 4-32; stored as bps-1 (5 bits)
	TotalSamples  uint64 // 36-bit on the wire; 0 = unknown
	MD5Sum        [16]byte
}

// WriteStreamInfo writes si's 34-byte payload to w.
func WriteStreamInfo(w io.Writer, si StreamInfo) error {
	bw := bitio.NewWriter(w)
	fields := []struct {
		v uint64
		n uint8
	}{
		{uint64(si.MinBlockSize), 16},
		{uint64(si.MaxBlockSize), 16},
		{uint64(si.MinFrameSize), 24},
		{uint64(si.MaxFrameSize), 24},
		{uint64(si.SampleRate), 20},
		{uint64(si.NumChannels - 1), 3},
		{uint64(si.BitsPerSample - 1), 5},
		{si.TotalSamples, 36},
	}
	for _, f := range fields {
		if err := bw.WriteBits(f.v, f.n); err != nil {
			return err
		}
	}
	if err := bw.Close(); err != nil {
		return err
	}
	_, err := w.Write(si.MD5Sum[:])
	return err
}

// ReadStreamInfo reads a STREAMINFO payload from r.
func ReadStreamInfo(r io.Reader) (*StreamInfo, error) {
	br := bitio.NewReader(r)
	si := new(StreamInfo)

	readField := func(n uint8) (uint64, error) { return br.ReadBits(n) }

	v, err := readField(16)
	if err != nil {
		return nil, err
	}
	si.MinBlockSize = uint16(v)

	v, err = readField(16)
	if err != nil {
		return nil, err
	}
	si.MaxBlockSize = uint16(v)

	v, err = readField(24)
	if err != nil {
		return nil, err
	}
	si.MinFrameSize = uint32(v)

	v, err = readField(24)
	if err != nil {
		return nil, err
	}
	si.MaxFrameSize = uint32(v)

	v, err = readField(20)
	if err != nil {
		return nil, err
	}
	si.SampleRate = uint32(v)

	v, err = readField(3)
	if err != nil {
		return nil, err
	}
	si.NumChannels = uint8(v) + 1

	v, err = readField(5)
	if err != nil {
		return nil, err
	}
	si.BitsPerSample = uint8(v) + 1

	v, err = readField(36)
	if err != nil {
		return nil, err
	}
	si.TotalSamples = v

	if _, err := io.ReadFull(r, si.MD5Sum[:]); err != nil {
		return nil, err
	}
	return si, nil
}

// Padding is a PADDING block: its length in bytes, with no payload
// semantics beyond reserving space.
type Padding uint32

// WritePadding writes n zero bytes.
func WritePadding(w io.Writer, n uint32) error {
	zeros := make([]byte, n)
	_, err := w.Write(zeros)
	return err
}
