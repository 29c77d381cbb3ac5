package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/securesure/chatd/internal/ipfs"
	"github.com/securesure/chatd/pkg/config"
)

func newFetchCmd() *cobra.Command {
	var configFile string
	var gatewayURL string

	cmd := &cobra.Command{
		Use:   "fetch <cid>",
		Short: "Fetch a document from an IPFS gateway by CID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// An explicit --gateway wins over the config file value.
			if !cmd.Flags().Changed("gateway") && configFile != "" {
				cfg, err := config.Load(configFile)
				if err != nil {
					return err
				}
				if cfg.IPFS.Gateway != "" {
					gatewayURL = cfg.IPFS.Gateway
				}
			}

			client := ipfs.NewClient(gatewayURL)
			content, err := client.Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), content)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&gatewayURL, "gateway", ipfs.DefaultGateway, "IPFS HTTP gateway base URL")
	return cmd
}
