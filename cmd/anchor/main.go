// Command anchor is the SEP-1/SEP-10/SEP-24/SEP-6 anchor service's
// entrypoint: a cobra root command wiring config, logging, metrics,
// and the HTTP surface, plus a validate-config subcommand for CI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:   "anchor",
		Short: "Stellar SEP-1/SEP-10/SEP-24/SEP-6 anchor service",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to the YAML config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newValidateConfigCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
