package cmd

import (
	"crosswatcher/fetcher"
	"crosswatcher/logger"

	"github.com/spf13/cobra"
)

var (
	fetchStart uint64
	fetchEnd   uint64
)

var fetchCmd = cobra.Command{
	Use:   "fetch",
	Short: "Fetch and store classified transactions for a block range",
	Run: func(cmd *cobra.Command, args []string) {
		logger.InitLogs("fetch")

		if fetchEnd < fetchStart {
			logger.GlobalLogger.Error("End block is below start block", "start", fetchStart, "end", fetchEnd)
			return
		}

		logger.GlobalLogger.Info("Running cmd fetch...", "start", fetchStart, "end", fetchEnd)

		if err := fetcher.RunFetchCmd(fetchStart, fetchEnd); err != nil {
			logger.GlobalLogger.Error("Error running fetch command", "error", err)
		}
	},
}

func init() {
	fetchCmd.Flags().Uint64VarP(&fetchStart, "start", "s", 0, "starting block number")
	fetchCmd.Flags().Uint64VarP(&fetchEnd, "end", "e", 0, "ending block number (inclusive)")
	fetchCmd.MarkFlagRequired("start")
	fetchCmd.MarkFlagRequired("end")
	RootCmd.AddCommand(&fetchCmd)
}
