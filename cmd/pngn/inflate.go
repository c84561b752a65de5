package main

import (
	"io"
	"os"

	"github.com/gen2brain/pngn/internal/logging"
	"github.com/spf13/cobra"
)

// openOutput returns stdout for an empty name, otherwise a new file.
func openOutput(cmd *cobra.Command, name string) (io.WriteCloser, error) {
	if name == "" {
		return nopCloser{cmd.OutOrStdout()}, nil
	}

	return os.Create(name)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func init() {
	var output string

	inflateCommand := &cobra.Command{
		Use:   "inflate <file>",
		Short: "Write the decompressed scanlines of a PNG file, filter bytes included",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pd, err := decodeFile(args[0])
			if err != nil {
				return err
			}

			w, err := openOutput(cmd, output)
			if err != nil {
				return err
			}

			if _, err := w.Write(pd.Data); err != nil {
				w.Close()
				return err
			}

			logging.Debug().Int("bytes", len(pd.Data)).Str("file", args[0]).Msg("inflated")

			return w.Close()
		},
	}
	inflateCommand.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	rootCommand.AddCommand(inflateCommand)
}
