// Package meta implements metadata block framing (component C8):
// block headers and the STREAMINFO, PADDING, APPLICATION, SEEKTABLE,
// VORBIS_COMMENT, and CUESHEET block bodies. Per spec.md §6.1's
// block-type table (which enumerates exactly these six types),
// PICTURE is not implemented.
//
// Blocks that don't need CRC tracking (every metadata block — CRCs in
// this format only cover frame data) are read and written with
// github.com/icza/bitio, rather than the bespoke bitio.BitBuffer the
// frame layer needs for its CRC bookkeeping.
package meta

import (
	"bytes"
	"fmt"
	"io"

	"github.com/icza/bitio"
	"github.com/pkg/errors"
)

// BlockType identifies a metadata block's body kind.
type BlockType uint8

const (
	TypeStreamInfo BlockType = iota
	TypePadding
	TypeApplication
	TypeSeekTable
	TypeVorbisComment
	TypeCueSheet
)

func (t BlockType) String() string {
	switch t {
	case TypeStreamInfo:
		return "STREAMINFO"
	case TypePadding:
		return "PADDING"
	case TypeApplication:
		return "APPLICATION"
	case TypeSeekTable:
		return "SEEKTABLE"
	case TypeVorbisComment:
		return "VORBIS_COMMENT"
	case TypeCueSheet:
		return "CUESHEET"
	default:
		return fmt.Sprintf("BlockType(%d)", uint8(t))
	}
}

// BlockHeader precedes every metadata block body.
type BlockHeader struct {
	IsLast    bool
	BlockType BlockType
	Length    uint32 // bytes of body to follow; 24-bit on the wire
}

// WriteBlockHeader writes h to w.
func WriteBlockHeader(w io.Writer, h BlockHeader) error {
	bw := bitio.NewWriter(w)
	if err := bw.WriteBool(h.IsLast); err != nil {
		return err
	}
	if err := bw.WriteBits(uint64(h.BlockType), 7); err != nil {
		return err
	}
	if err := bw.WriteBits(uint64(h.Length), 24); err != nil {
		return err
	}
	return bw.Close()
}

// ReadBlockHeader reads a BlockHeader from r.
func ReadBlockHeader(r io.Reader) (BlockHeader, error) {
	var h BlockHeader
	br := bitio.NewReader(r)
	isLast, err := br.ReadBool()
	if err != nil {
		return h, err
	}
	h.IsLast = isLast
	bt, err := br.ReadBits(7)
	if err != nil {
		return h, err
	}
	if bt >= 6 {
		return h, fmt.Errorf("meta: reserved or unsupported block type %d", bt)
	}
	h.BlockType = BlockType(bt)
	length, err := br.ReadBits(24)
	if err != nil {
		return h, err
	}
	h.Length = uint32(length)
	return h, nil
}

// Block pairs a header with its decoded body (one of *StreamInfo,
// Padding, *Application, *SeekTable, *VorbisComment, *CueSheet).
type Block struct {
	Header BlockHeader
	Body   interface{}
}

// ReadBlock reads one full metadata block (header + body) from r.
func ReadBlock(r io.Reader) (Block, error) {
	var blk Block
	hdr, err := ReadBlockHeader(r)
	if err != nil {
		return blk, errors.WithMessage(err, "meta.ReadBlock")
	}
	blk.Header = hdr

	lr := io.LimitReader(r, int64(hdr.Length))
	switch hdr.BlockType {
	case TypeStreamInfo:
		blk.Body, err = ReadStreamInfo(lr)
	case TypePadding:
		blk.Body = Padding(hdr.Length)
		_, err = io.Copy(io.Discard, lr)
	case TypeApplication:
		blk.Body, err = ReadApplication(lr, hdr.Length)
	case TypeSeekTable:
		blk.Body, err = ReadSeekTable(lr, hdr.Length)
	case TypeVorbisComment:
		blk.Body, err = ReadVorbisComment(lr)
	case TypeCueSheet:
		blk.Body, err = ReadCueSheet(lr)
	default:
		err = fmt.Errorf("meta.ReadBlock: unsupported block type %s", hdr.BlockType)
	}
	if err != nil {
		return blk, errors.WithMessagef(err, "meta.ReadBlock: %s", hdr.BlockType)
	}
	return blk, nil
}

// WriteBlock writes a block's body via bodyWriter into a byte buffer
// to learn its length, then emits the header and body to w.
func WriteBlock(w io.Writer, blockType BlockType, isLast bool, bodyWriter func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := bodyWriter(&buf); err != nil {
		return errors.WithMessagef(err, "meta.WriteBlock: %s body", blockType)
	}
	hdr := BlockHeader{IsLast: isLast, BlockType: blockType, Length: uint32(buf.Len())}
	if err := WriteBlockHeader(w, hdr); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
