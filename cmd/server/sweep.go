package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func sweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue certificates once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res := newSweeper(a).RunNow(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "organizations=%d expired=%d failed=%d\n",
				res.Organizations, res.Expired, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("sweep failed for %d organization(s)", res.Failed)
			}
			return nil
		},
	}
}
