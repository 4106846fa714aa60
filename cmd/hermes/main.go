// Command hermes is the Hermes host runtime: it packages, signs, and runs
// wasm module and application packages.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{Use: "hermes"}
	rootCmd.AddCommand(moduleCmd())
	rootCmd.AddCommand(appCmd())
	rootCmd.AddCommand(runCmd())
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
