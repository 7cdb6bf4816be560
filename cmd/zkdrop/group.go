package main

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zkdrop/zkdrop-node/pkg/client"
)

func newGroupCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage membership groups",
	}
	cmd.AddCommand(newGroupCreateCmd(v))
	cmd.AddCommand(newGroupGetCmd(v))
	cmd.AddCommand(newGroupAddCmd(v))
	return cmd
}

func newGroupCreateCmd(v *viper.Viper) *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "create <group-id>",
		Short: "Create a membership group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return err
			}

			c := client.New(v.GetString("server"))
			group, err := c.CreateGroup(cmd.Context(), id, depth)
			if err != nil {
				return err
			}
			return printJSON(group)
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 0, "merkle tree depth (default 20)")
	return cmd
}

func newGroupGetCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "get <group-id>",
		Short: "Show a group's current root and member count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return err
			}

			c := client.New(v.GetString("server"))
			group, err := c.GetGroup(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(group)
		},
	}
}

func newGroupAddCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "add <group-id> <commitment>",
		Short: "Add an identity commitment to a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return err
			}

			c := client.New(v.GetString("server"))
			group, err := c.AddMember(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			return printJSON(group)
		},
	}
}
