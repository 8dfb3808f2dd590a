package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create all pipeline tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, closePool, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closePool()

		return s.Migrate(ctx)
	},
}

func init() { rootCmd.AddCommand(migrateCmd) }
