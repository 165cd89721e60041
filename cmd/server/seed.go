package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/warp/giftcert-engine/api"
	"github.com/warp/giftcert-engine/giftcert"
)

func seedCommand() *cobra.Command {
	var (
		scenario string
		org      string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a demo scenario into an organization",
		Long:  "Load a demo scenario into an organization.\n\nScenarios: " + scenarioIDs(),
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

			res, err := api.LoadScenario(cmd.Context(), a.service, scenario, giftcert.OrganizationID(org))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %s into %s: %d certificate(s)\n",
				res.ScenarioID, res.OrganizationID, res.Issued)
			for _, code := range res.Codes {
				fmt.Fprintln(cmd.OutOrStdout(), code)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scenario, "scenario", "holiday-promo", "scenario to load")
	cmd.Flags().StringVar(&org, "org", "demo", "organization to load into")
	return cmd
}

func scenarioIDs() string {
	var ids []string
	for _, s := range api.Scenarios() {
		ids = append(ids, s.ID)
	}
	return strings.Join(ids, ", ")
}
