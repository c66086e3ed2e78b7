package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jcortez/winsmith/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively configure winsmith",
	Long:  `Runs a short wizard that selects a generation provider, quality tier, and statement length ceiling, then writes .winsmith.yml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
