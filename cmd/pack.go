package cmd

import (
	"os"
	"path"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/daedalus-build/daedalus/pkg"
)

var packCmd = &cobra.Command{
	Use:   "pack <archive> <directory>",
	Short: "Packs the given directory into a release archive",
	Long: `Walks the given directory recursively and writes its content into a tar
archive. The compression is picked based on the archive name: .tar, .tar.gz,
.tar.xz and .tar.br are supported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return eris.New("Expected 2 arguments!")
		}

		parent := filepath.Dir(args[0])
		err := os.MkdirAll(parent, os.FileMode(0770))
		if err != nil {
			return eris.Wrapf(err, "Failed to create directory %s", parent)
		}

		writer, err := pkg.NewDistWriter(args[0])
		if err != nil {
			return err
		}

		err = packDirectory(writer, args[1], filepath.Base(args[1]))
		if err != nil {
			writer.Close()
			return err
		}

		return writer.Close()
	},
}

func init() {
	rootCmd.AddCommand(packCmd)
}

func packDirectory(writer *pkg.DistWriter, dir, prefix string) error {
	f, err := os.Open(dir)
	if err != nil {
		return eris.Wrapf(err, "Failed to open dir %s", dir)
	}

	infos, err := f.Readdir(0)
	if err != nil {
		f.Close()
		return eris.Wrapf(err, "Failed to read dir %s", dir)
	}
	f.Close()

	for _, info := range infos {
		itemPath := filepath.Join(dir, info.Name())
		entryName := path.Join(prefix, info.Name())

		if info.IsDir() {
			err = packDirectory(writer, itemPath, entryName)
			if err != nil {
				return err
			}
			continue
		}

		f, err = os.Open(itemPath)
		if err != nil {
			return eris.Wrapf(err, "Failed to open file %s", itemPath)
		}

		err = writer.WriteFile(entryName, info, f)
		if err != nil {
			f.Close()
			return eris.Wrapf(err, "Failed to pack file %s", itemPath)
		}
		f.Close()
	}

	return nil
}
