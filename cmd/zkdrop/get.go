package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zkdrop/zkdrop-node/pkg/client"
	"github.com/zkdrop/zkdrop-node/pkg/types"
)

func newGetCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "get <airdrop-id>",
		Short: "Fetch an airdrop record from a running node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := types.ParseAirdropID(args[0])
			if err != nil {
				return err
			}

			c := client.New(v.GetString("server"))
			record, err := c.GetAirdrop(cmd.Context(), uint64(id))
			if err != nil {
				return err
			}
			return printJSON(record)
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
