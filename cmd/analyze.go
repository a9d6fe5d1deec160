package cmd

import (
	"crosswatcher/logger"
	"crosswatcher/mev"

	"github.com/spf13/cobra"
)

var (
	analyzeStart uint64
	analyzeEnd   uint64
)

var analyzeCmd = cobra.Command{
	Use:   "analyze",
	Short: "Find and match cross-chain MEV extractions in a block range",
	Run: func(cmd *cobra.Command, args []string) {
		logger.InitLogs("analyze")

		if analyzeEnd < analyzeStart {
			logger.GlobalLogger.Error("End block is below start block", "start", analyzeStart, "end", analyzeEnd)
			return
		}

		logger.GlobalLogger.Info("Running cmd analyze...", "start", analyzeStart, "end", analyzeEnd)

		if err := mev.RunAnalyzeCmd(analyzeStart, analyzeEnd); err != nil {
			logger.GlobalLogger.Error("Error running analyze command", "error", err)
		}
	},
}

func init() {
	analyzeCmd.Flags().Uint64VarP(&analyzeStart, "start", "s", 0, "starting block number")
	analyzeCmd.Flags().Uint64VarP(&analyzeEnd, "end", "e", 0, "ending block number (inclusive)")
	analyzeCmd.MarkFlagRequired("start")
	analyzeCmd.MarkFlagRequired("end")
	RootCmd.AddCommand(&analyzeCmd)
}
