package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	infoCommand := &cobra.Command{
		Use:   "info <file>...",
		Short: "Print the header and chunk list of PNG files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			for _, name := range args {
				pd, err := decodeFile(name)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}

				interlace := "none"
				if pd.Interlace != 0 {
					interlace = "adam7"
				}

				fmt.Fprintf(out, "%s: %dx%d, %d-bit %s, interlace %s\n",
					name, pd.Width, pd.Height, pd.BitDepth, pd.ColorType, interlace)
				if len(pd.Palette) > 0 {
					fmt.Fprintf(out, "  palette: %d entries, %d transparent\n", len(pd.Palette), len(pd.Transparent))
				}
				fmt.Fprintf(out, "  data: %d bytes, adler32 %#08x\n", len(pd.Data), pd.Adler32)
				if x := pd.Exif; x != nil {
					fmt.Fprintf(out, "  exif: orientation %d, make %q, model %q, date %q\n",
						x.Orientation, x.Make, x.Model, x.DateTimeOriginal)
				}

				for _, c := range pd.Chunks {
					fmt.Fprintf(out, "  %s %8d  crc %#08x\n", c.Type, c.Length, c.CRC)
				}
			}

			return nil
		},
	}
	rootCommand.AddCommand(infoCommand)
}
