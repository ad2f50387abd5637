package main

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/cobra"

	"github.com/soundkit/flaccore"
	"github.com/soundkit/flaccore/frame"
)

const wavFormatPCM = 1

var (
	decForce    bool
	decSkipMD5  bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode [input.flac] [output.wav]",
	Short: "Decode a FLAC file to WAV",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDecode(args[0], args[1])
	},
}

func init() {
	decodeCmd.Flags().BoolVarP(&decForce, "force", "f", false, "overwrite output if it already exists")
	decodeCmd.Flags().BoolVar(&decSkipMD5, "skip-md5", false, "do not verify the stream's MD5 signature")
}

func runDecode(inPath, outPath string) error {
	if !decForce {
		if _, err := os.Stat(outPath); err == nil {
			return fmt.Errorf("%s already exists; use -f to overwrite", outPath)
		}
	}

	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	cfg := flaccore.NewDecoderConfig(flaccore.WithCheckMD5(!decSkipMD5))
	dec := flaccore.NewDecoder(cfg, &fileSource{f: in})
	if err := dec.Init(); err != nil {
		return err
	}
	if dec.StreamInfo == nil {
		return fmt.Errorf("%s: missing STREAMINFO block", inPath)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	channels := int(dec.StreamInfo.NumChannels)
	enc := wav.NewEncoder(out, int(dec.StreamInfo.SampleRate), int(dec.StreamInfo.BitsPerSample), channels, wavFormatPCM)
	defer enc.Close()

	format := &audio.Format{NumChannels: channels, SampleRate: int(dec.StreamInfo.SampleRate)}

	dec.OnError = func(err error) {
		fmt.Fprintf(os.Stderr, "flaccore: %v\n", err)
	}
	dec.OnFrame = func(hdr frame.Header, decoded [][]int32) error {
		data := make([]int, int(hdr.BlockSize)*channels)
		for i := 0; i < int(hdr.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				data[i*channels+ch] = int(decoded[ch][i])
			}
		}
		return enc.Write(&audio.IntBuffer{Format: format, Data: data, SourceBitDepth: int(dec.StreamInfo.BitsPerSample)})
	}

	if err := dec.Run(); err != nil {
		return err
	}
	return dec.Finish()
}
