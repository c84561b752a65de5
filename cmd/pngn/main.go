// Command pngn inspects and decodes PNG files.
package main

import (
	"bufio"
	"os"

	"github.com/gen2brain/pngn"
	"github.com/gen2brain/pngn/internal/logging"
	"github.com/spf13/cobra"
)

var (
	logLevel string
	skipCRC  bool
)

var rootCommand = &cobra.Command{
	Use:           "pngn",
	Short:         "Inspect and decode PNG files",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.SetLevel(logLevel)
	},
}

func init() {
	rootCommand.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCommand.PersistentFlags().BoolVar(&skipCRC, "skip-crc", false, "do not verify chunk CRCs")
}

// options builds the decoder options from the global flags.
func options() *pngn.Options {
	return &pngn.Options{
		SkipCRC: skipCRC,
		Logger:  logging.GlobalLogger(),
	}
}

// decodeFile decodes the PNG body of the named file.
func decodeFile(name string) (*pngn.PixelData, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if err := pngn.ReadSignature(r); err != nil {
		return nil, err
	}

	return pngn.DecodePixelData(r, options())
}

func main() {
	defer logging.LogPanics(nil)

	if err := rootCommand.Execute(); err != nil {
		logging.Error().Err(err).Msg("pngn failed")
		os.Exit(1)
	}
}
