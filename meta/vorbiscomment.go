package meta

import (
	"encoding/binary"
	"fmt"
	"io"
)

// VorbisComment carries a vendor string and a list of "FIELD=value"
// comments. Unlike every other FLAC field, Vorbis comment lengths are
// little-endian 32-bit, inherited unchanged from the Vorbis comment
// spec it embeds (spec §9: payload semantics are transparent to the
// core, but the length-prefixing on the wire still has to match).
type VorbisComment struct {
	Vendor   string
	Comments []string
}

func writeLPString(w io.Writer, s string) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readLPString(r io.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteVorbisComment writes vc to w.
func WriteVorbisComment(w io.Writer, vc VorbisComment) error {
	if err := writeLPString(w, vc.Vendor); err != nil {
		return err
	}
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(vc.Comments)))
	if _, err := w.Write(countBuf[:]); err != nil {
		return err
	}
	for _, c := range vc.Comments {
		if err := writeLPString(w, c); err != nil {
			return err
		}
	}
	return nil
}

// ReadVorbisComment reads a VORBIS_COMMENT block from r.
func ReadVorbisComment(r io.Reader) (*VorbisComment, error) {
	vc := new(VorbisComment)
	vendor, err := readLPString(r)
	if err != nil {
		return nil, err
	}
	vc.Vendor = vendor

	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(countBuf[:])
	const maxComments = 1 << 20
	if n > maxComments {
		return nil, fmt.Errorf("meta.ReadVorbisComment: implausible comment count %d", n)
	}
	vc.Comments = make([]string, n)
	for i := range vc.Comments {
		c, err := readLPString(r)
		if err != nil {
			return nil, err
		}
		vc.Comments[i] = c
	}
	return vc, nil
}
