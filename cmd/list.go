package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daedalus-build/daedalus/pkg/tasksys"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the documented tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Available tasks:")
		fmt.Print(tasksys.Catalog(buildRegistry()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
