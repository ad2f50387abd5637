package main

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/cobra"

	"github.com/soundkit/flaccore"
)

var (
	encForce          bool
	encBlockSize      uint16
	encMaxLPCOrder    int
	encMidSide        bool
	encLooseMidSide   bool
	encStreamable     bool
	encVerify         bool
	encPadding        uint32
	encSeekTableSpec  string
	encQLPPrecision   uint
)

var encodeCmd = &cobra.Command{
	Use:   "encode [input.wav] [output.flac]",
	Short: "Encode a WAV file to FLAC",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEncode(args[0], args[1])
	},
}

func init() {
	encodeCmd.Flags().BoolVarP(&encForce, "force", "f", false, "overwrite output if it already exists")
	encodeCmd.Flags().Uint16Var(&encBlockSize, "block-size", 4096, "samples per block")
	encodeCmd.Flags().IntVar(&encMaxLPCOrder, "max-lpc-order", 8, "maximum LPC predictor order (0 disables LPC)")
	encodeCmd.Flags().BoolVar(&encMidSide, "mid-side", true, "search stereo decorrelation modes (stereo only)")
	encodeCmd.Flags().BoolVar(&encLooseMidSide, "loose-mid-side", false, "only periodically search mid-side instead of every block")
	encodeCmd.Flags().BoolVar(&encStreamable, "streamable-subset", false, "restrict to the streamable subset")
	encodeCmd.Flags().BoolVar(&encVerify, "verify", false, "re-decode every frame and compare against the input")
	encodeCmd.Flags().Uint32Var(&encPadding, "padding", 0, "bytes of PADDING metadata to reserve")
	encodeCmd.Flags().StringVar(&encSeekTableSpec, "seektable", "", "seek point spec, e.g. \"10s;20s;100x\"")
	encodeCmd.Flags().UintVar(&encQLPPrecision, "qlp-precision", 0, "quantized LPC coefficient precision (0 = auto)")
}

func runEncode(inPath, outPath string) error {
	if !encForce {
		if _, err := os.Stat(outPath); err == nil {
			return fmt.Errorf("%s already exists; use -f to overwrite", outPath)
		}
	}

	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	dec := wav.NewDecoder(in)
	if !dec.IsValidFile() {
		return fmt.Errorf("%s is not a valid WAV file", inPath)
	}
	sampleRate := uint32(dec.SampleRate)
	channels := int(dec.NumChans)
	bps := uint8(dec.BitDepth)
	if err := dec.FwdToPCM(); err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	opts := []flaccore.EncoderOption{
		flaccore.WithMaxLPCOrder(encMaxLPCOrder),
		flaccore.WithMidSide(encMidSide && channels == 2),
		flaccore.WithLooseMidSide(encLooseMidSide),
		flaccore.WithStreamableSubset(encStreamable),
		flaccore.WithVerify(encVerify),
		flaccore.WithPadding(encPadding),
		flaccore.WithQLPCoeffPrecision(encQLPPrecision),
	}
	if encSeekTableSpec != "" {
		opts = append(opts, flaccore.WithSeekTableSpec(encSeekTableSpec))
	}
	cfg := flaccore.NewEncoderConfig(channels, bps, sampleRate, encBlockSize, opts...)

	enc := flaccore.NewEncoder(cfg, &fileSink{f: out})
	if err := enc.Init(); err != nil {
		return err
	}

	chunkSamples := int(encBlockSize)
	pcmBuf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: int(sampleRate)},
		Data:           make([]int, chunkSamples*channels),
		SourceBitDepth: int(bps),
	}
	for {
		n, err := dec.PCMBuffer(pcmBuf)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		interleaved := make([]int32, n)
		for i, s := range pcmBuf.Data[:n] {
			interleaved[i] = int32(s)
		}
		if err := enc.ProcessInterleaved(interleaved); err != nil {
			return err
		}
	}

	return enc.Finish()
}
