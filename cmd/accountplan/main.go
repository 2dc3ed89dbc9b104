package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "accountplan",
	Short: "Conversational account-plan research assistant",
	Long: `accountplan clarifies a research brief with the user, drafts a workplan,
runs channel research agents and synthesizes a ten-section account plan
that can be reviewed and regenerated section by section.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default $CONFIG_PATH or config/accountplan.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
