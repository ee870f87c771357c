package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quasaranchor/anchor/internal/config"
)

func newValidateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate the config file without binding a listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			fmt.Printf("config OK: domain=%s network=%s signing_key=%s assets=%d\n",
				cfg.Domain, cfg.Network, cfg.SigningPublicKey(), len(cfg.Assets))
			return nil
		},
	}
}
