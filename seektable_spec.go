package flaccore

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/soundkit/flaccore/meta"
)

// ParseSeekTableSpec parses a semicolon-separated seek-point
// specification (spec §6.4) into a SeekTable ready for
// Encoder.Init to populate lazily as frames are written.
//
// Token grammar:
//   - "N"  integer sample number -> one point at that sample.
//   - "Ns" one point every N seconds.
//   - "Nx" N evenly distributed points across the stream (requires
//     totalSamples > 0).
//   - "X"  one placeholder slot.
//
// Points are bucketed down to the nearest blockSize boundary, then
// sorted and deduplicated.
func ParseSeekTableSpec(spec string, sampleRate uint32, blockSize uint16, totalSamples uint64) (meta.SeekTable, error) {
	var st meta.SeekTable
	if strings.TrimSpace(spec) == "" {
		return st, nil
	}
	if blockSize == 0 {
		return st, errors.Wrap(ErrInvalidConfiguration, "seek table spec requires a nonzero blocksize")
	}

	seen := make(map[uint64]bool)
	addSample := func(sample uint64) {
		bucketed := (sample / uint64(blockSize)) * uint64(blockSize)
		if !seen[bucketed] {
			seen[bucketed] = true
			st.Points = append(st.Points, meta.SeekPoint{SampleNumber: bucketed})
		}
	}

	for _, tok := range strings.Split(spec, ";") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		switch {
		case tok == "X":
			st.Points = append(st.Points, meta.SeekPoint{SampleNumber: meta.PlaceholderSampleNumber})

		case strings.HasSuffix(tok, "s"):
			seconds, err := strconv.ParseFloat(strings.TrimSuffix(tok, "s"), 64)
			if err != nil {
				return st, errors.Wrapf(ErrInvalidConfiguration, "seek spec token %q: %v", tok, err)
			}
			if seconds <= 0 {
				return st, errors.Wrapf(ErrInvalidConfiguration, "seek spec token %q: interval must be positive", tok)
			}
			step := uint64(seconds * float64(sampleRate))
			if step == 0 {
				step = 1
			}
			if totalSamples == 0 {
				return st, errors.Wrapf(ErrInvalidConfiguration, "seek spec token %q requires a known total sample count", tok)
			}
			for s := uint64(0); s < totalSamples; s += step {
				addSample(s)
			}

		case strings.HasSuffix(tok, "x"):
			count, err := strconv.Atoi(strings.TrimSuffix(tok, "x"))
			if err != nil || count <= 0 {
				return st, errors.Wrapf(ErrInvalidConfiguration, "seek spec token %q: invalid count", tok)
			}
			if totalSamples == 0 {
				return st, errors.Wrapf(ErrInvalidConfiguration, "seek spec token %q requires a known total sample count", tok)
			}
			for i := 0; i < count; i++ {
				s := uint64(i) * totalSamples / uint64(count)
				addSample(s)
			}

		default:
			n, err := strconv.ParseUint(tok, 10, 64)
			if err != nil {
				return st, errors.Wrapf(ErrInvalidConfiguration, "seek spec token %q: invalid sample number", tok)
			}
			addSample(n)
		}
	}

	st.Sort()
	return st, nil
}
