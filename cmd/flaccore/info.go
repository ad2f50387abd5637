package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soundkit/flaccore"
)

var infoCmd = &cobra.Command{
	Use:   "info [file.flac]",
	Short: "Print stream info and seek table for a FLAC file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInfo(args[0])
	},
}

func runInfo(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cfg := flaccore.NewDecoderConfig()
	dec := flaccore.NewDecoder(cfg, &fileSource{f: f})
	if err := dec.Init(); err != nil {
		return err
	}
	si := dec.StreamInfo
	if si == nil {
		return fmt.Errorf("%s: missing STREAMINFO block", path)
	}

	fmt.Printf("sample rate:    %d Hz\n", si.SampleRate)
	fmt.Printf("channels:       %d\n", si.NumChannels)
	fmt.Printf("bits/sample:    %d\n", si.BitsPerSample)
	fmt.Printf("total samples:  %d\n", si.TotalSamples)
	fmt.Printf("block size:     %d-%d\n", si.MinBlockSize, si.MaxBlockSize)
	fmt.Printf("frame size:     %d-%d bytes\n", si.MinFrameSize, si.MaxFrameSize)
	fmt.Printf("MD5 signature:  %x\n", si.MD5Sum)

	if st := dec.SeekTable; st != nil {
		fmt.Printf("seek points:    %d\n", len(st.Points))
		for _, p := range st.Points {
			if p.IsPlaceholder() {
				continue
			}
			fmt.Printf("  sample %-12d byte offset %-12d block size %d\n", p.SampleNumber, p.ByteOffset, p.FrameBlockSize)
		}
	}
	return nil
}
