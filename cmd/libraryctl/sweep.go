package main

import (
	"fmt"

	"github.com/geocoder89/libraryhub/internal/circulation"
	"github.com/spf13/cobra"
)

func newSweepOverdueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-overdue",
		Short: "Mark active borrowings past their due date as overdue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, closeStore, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			n := circulation.NewService(st, circulation.WithLogger(a.log)).SweepOverdue(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "%d borrowing(s) marked overdue\n", n)
			return nil
		},
	}
}
