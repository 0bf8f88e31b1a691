package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/elimu/services/jobs"
)

func (cli *commandLine) reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Delete assignments and tests whose course no longer exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := jobs.Reconcile(cmd.Context(), cli.catalogSvc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d orphan(s) removed\n", n)
			return nil
		},
	}
}
