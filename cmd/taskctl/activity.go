package main

import (
	"github.com/spf13/cobra"

	"taskmaster/pkg/activity"
)

func newActivityCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Activity log operations (list, verify)",
	}

	var taskID int64
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "Show recent activity, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				events []activity.Event
				err    error
			)
			if taskID > 0 {
				events, err = a.stores.Activity.ForTask(cmd.Context(), taskID, limit)
			} else {
				events, err = a.stores.Activity.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, events)
		},
	}
	list.Flags().Int64Var(&taskID, "task", 0, "only events for this task id")
	list.Flags().IntVar(&limit, "limit", activity.DefaultLimit, "maximum number of events")

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check the hash chain of the activity log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.stores.Activity.VerifyChain(cmd.Context()); err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"status": "ok", "message": "activity chain intact"})
		},
	}

	cmd.AddCommand(list, verify)
	return cmd
}
