package cmd

import (
	"github.com/spf13/cobra"

	"github.com/daedalus-build/daedalus/pkg"
)

var installToolsCmd = &cobra.Command{
	Use:   "install-tools",
	Short: "Installs the Go helper tools",
	Long: `Installs the tools listed in tools.go into the workspace tools directory
(.tools by default). If you have direnv enabled, they will be available in
your PATH.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := pkg.LoadSettings()
		if err != nil {
			return err
		}

		root, err := pkg.GetProjectRoot()
		if err != nil {
			return err
		}

		return pkg.InstallTools(root, settings.ToolsDir)
	},
}

func init() {
	rootCmd.AddCommand(installToolsCmd)
}
