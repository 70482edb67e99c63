package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var activityID string
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status or a project's activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if activityID != "" {
				log, err := client.activity(activityID, limit)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(log.Entries))
				for _, entry := range log.Entries {
					rows = append(rows, []string{
						entry.CreatedAt.Format("2006-01-02 15:04:05"),
						entry.Action,
						truncate(entry.Detail, 48),
						truncate(entry.ClientInfo, 24),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Time", "Action", "Detail", "Client"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			}

			status, err := client.status()
			if err != nil {
				return err
			}
			printField(out, "running", strconv.FormatBool(status.Running))
			printField(out, "listen_addr", status.ListenAddr)
			printField(out, "data_dir", status.DataDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&activityID, "activity", "", "Show the activity log for a project id")
	cmd.Flags().IntVar(&limit, "limit", 50, "Activity entries to show")
	return cmd
}
