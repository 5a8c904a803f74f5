package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/flasharb/utils"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "flasharb",
	Short: "A flash-loan arbitrage scanner and executor",
	Long: `A flash-loan arbitrage engine that enumerates two and three token
round trips across DEX routers, prices them through batched on-chain
quotes, and executes the profitable ones atomically via a deployed
flash-loan contract.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.flasharb.json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initConfig() {
	utils.InitLogger(debug)
}
