package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zkdrop/zkdrop-node/pkg/client"
)

func newStatusCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether a node is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server := v.GetString("server")
			c := client.New(server)
			if err := c.Health(cmd.Context()); err != nil {
				return fmt.Errorf("node at %s unreachable: %w", server, err)
			}
			fmt.Printf("node at %s is healthy\n", server)
			return nil
		},
	}
}
