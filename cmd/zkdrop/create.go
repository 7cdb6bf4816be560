package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zkdrop/zkdrop-node/pkg/client"
)

func newCreateCmd(v *viper.Viper) *cobra.Command {
	var params client.CreateAirdropParams

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an airdrop on a running node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(v.GetString("server"))
			record, err := c.CreateAirdrop(cmd.Context(), params)
			if err != nil {
				return err
			}
			return printJSON(record)
		},
	}

	cmd.Flags().Uint64Var(&params.GroupID, "group", 0, "membership group id")
	cmd.Flags().StringVar(&params.Token, "token", "", "token address")
	cmd.Flags().StringVar(&params.Manager, "manager", "", "manager address")
	cmd.Flags().StringVar(&params.Holder, "holder", "", "holder address")
	cmd.Flags().StringVar(&params.Amount, "amount", "", "payout per claim")
	_ = cmd.MarkFlagRequired("group")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("manager")
	_ = cmd.MarkFlagRequired("holder")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}
