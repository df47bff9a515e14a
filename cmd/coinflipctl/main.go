package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "coinflipctl",
	Short:         "coinflip escrow client tools",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadSettings(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().String("profile", defaultProfilePath(), "TOML profile with server and token")
	rootCmd.PersistentFlags().String("server", "", "API base URL (overrides profile)")
	rootCmd.PersistentFlags().String("token", "", "bearer token (overrides profile)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "overall command timeout, 0 for none")

	rootCmd.AddCommand(
		CreateCmd(),
		JoinCmd(),
		PlayCmd(),
		ResolveCmd(),
		ShowCmd(),
		ListCmd(),
		BalanceCmd(),
	)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
