// flaccore is a command-line tool for encoding and decoding the FLAC
// format implemented by this module: convert WAV files to FLAC and
// back, and inspect a FLAC file's stream info.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "flaccore",
	Short:   "Encode and decode FLAC streams",
	Version: version,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(infoCmd)
}
