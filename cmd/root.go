package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "winsmith",
	Short: "AI-assisted refinement of achievement notes into polished statements",
	Long: `winsmith turns short structured achievement notes into polished
narrative statements through a guided, multi-stage refinement
workflow: draft, answer follow-up questions, compare the rewritten
draft, review the critique, then save or refine again.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".winsmith.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
