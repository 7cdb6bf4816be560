package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zkdrop/zkdrop-node/pkg/client"
	"github.com/zkdrop/zkdrop-node/pkg/types"
)

func newClaimCmd(v *viper.Viper) *cobra.Command {
	var params client.ClaimParams

	cmd := &cobra.Command{
		Use:   "claim <airdrop-id>",
		Short: "Submit a claim against an airdrop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := types.ParseAirdropID(args[0])
			if err != nil {
				return err
			}

			c := client.New(v.GetString("server"))
			receipt, err := c.Claim(cmd.Context(), uint64(id), params)
			if err != nil {
				return err
			}
			return printJSON(receipt)
		},
	}

	cmd.Flags().StringVar(&params.Root, "root", "", "membership root the proof was generated against")
	cmd.Flags().StringVar(&params.NullifierHash, "nullifier", "", "nullifier hash")
	cmd.Flags().StringVar(&params.Receiver, "receiver", "", "receiver address")
	cmd.Flags().StringSliceVar(&params.Proof, "proof", nil, "proof as 8 comma-separated field elements")
	_ = cmd.MarkFlagRequired("root")
	_ = cmd.MarkFlagRequired("nullifier")
	_ = cmd.MarkFlagRequired("receiver")
	_ = cmd.MarkFlagRequired("proof")

	return cmd
}
