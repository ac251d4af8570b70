package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProfileListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profile-list",
		Short: "List the profiles available to the API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			profiles, err := c.Profiles(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(profiles) == 0 {
				fmt.Fprintln(out, "No profiles found.")
				return nil
			}
			for _, p := range profiles {
				fmt.Fprintf(out, "%s: %s\n", p.ID, p.Name)
			}
			return nil
		},
	}
}
