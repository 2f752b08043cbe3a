package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/synaptica-ai/clinical-insights/pkg/common/logger"
)

func main() {
	logger.Init("insightctl")
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "insightctl",
		Short:        "Train, run and inspect the complication model offline",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(trainCmd())
	rootCmd.AddCommand(predictCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(insightCmd())
	return rootCmd
}
