package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	assumeYes  bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:           "ovpnadmin",
	Short:         "OpenVPN Admin console",
	Long:          "ovpnadmin is the admin console for an OpenVPN management backend: a server-rendered web console (serve) and the same operations from the terminal.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: configs/ovpnadmin.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation prompts")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) && !errors.Is(err, errAborted) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
