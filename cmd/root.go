package cmd

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "crosswatcher",
	Short: "A tool for uncovering cross-chain MEV between Ethereum and Polygon",
}
