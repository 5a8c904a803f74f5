package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/michaelpento.lv/flasharb/config"
)

var initCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write a default config file to edit",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := ".flasharb.json"
		if len(args) == 1 {
			out = args[0]
		}
		if err := config.SaveConfig(config.DefaultConfig(), out); err != nil {
			return err
		}
		fmt.Printf("Wrote default config to %s\n", out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
