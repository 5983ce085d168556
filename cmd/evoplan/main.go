package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "evoplan",
	Short: "EvoPlan - product evolution planning pipeline",
	Long: `EvoPlan turns raw user feedback into a product plan through a five-stage
LLM pipeline: feedback analysis, feature proposals, feasibility evaluation,
sprint planning, and a stakeholder update.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log prompts and responses")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the evoplan version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("evoplan", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
