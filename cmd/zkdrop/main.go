package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "zkdrop",
		Short: "Zero-knowledge airdrop claim node",
	}

	rootCmd.PersistentFlags().String("server", "http://localhost:8480", "node API address")
	_ = v.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.AddCommand(newStartCmd(v))
	rootCmd.AddCommand(newCreateCmd(v))
	rootCmd.AddCommand(newGetCmd(v))
	rootCmd.AddCommand(newClaimCmd(v))
	rootCmd.AddCommand(newGroupCmd(v))
	rootCmd.AddCommand(newStatusCmd(v))
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
