package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vnykmshr/batchflow/pkg/scheduling/scheduler"
)

func newCronCommand() *cobra.Command {
	var (
		next     int
		timezone string
	)
	cmd := &cobra.Command{
		Use:   "cron EXPRESSION",
		Short: "Validate a cron expression and show its next runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(timezone)
			if err != nil {
				return fmt.Errorf("load timezone %q: %w", timezone, err)
			}
			desc, err := scheduler.DescribeCron(args[0], loc, time.Now(), next)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			bold := color.New(color.Bold)
			bold.Fprintf(out, "%s\n", desc.Expression)
			fmt.Fprintf(out, "%s (%s)\n", desc.Description, desc.TimeZone)
			for i, t := range desc.NextRuns {
				fmt.Fprintf(out, "  %d. %s\n", i+1, t.Format(time.RFC1123))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&next, "next", 5, "number of upcoming runs to show")
	cmd.Flags().StringVar(&timezone, "timezone", "Local", "time zone to evaluate the expression in")
	return cmd
}
