package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var checksumCmd = &cobra.Command{
	Use:   "checksum <file...>",
	Short: "Prints the sha256 digest of the given files",
	Long: `Prints one line per file in "<digest>  <path>" form. Useful for filling in
the sha256 entries of DEPS.yml by hand.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return eris.New("Expected at least 1 argument!")
		}

		buf := make([]byte, 4096)
		for _, fpath := range args {
			f, err := os.Open(fpath)
			if err != nil {
				return eris.Wrapf(err, "Failed to open %s", fpath)
			}

			hash := sha256.New()
			_, err = io.CopyBuffer(hash, f, buf)
			f.Close()
			if err != nil {
				return eris.Wrapf(err, "Failed to read %s", fpath)
			}

			fmt.Printf("%s  %s\n", hex.EncodeToString(hash.Sum(nil)), fpath)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(checksumCmd)
}
