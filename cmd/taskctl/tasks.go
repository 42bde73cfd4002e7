package main

import (
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"taskmaster/pkg/activity"
	"taskmaster/pkg/query"
	"taskmaster/pkg/task"
)

func newTaskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task operations (list, get, create, update, delete, counts)",
	}
	cmd.AddCommand(
		newTaskListCmd(a),
		newTaskGetCmd(a),
		newTaskCreateCmd(a),
		newTaskUpdateCmd(a),
		newTaskDeleteCmd(a),
		newTaskCountsCmd(a),
	)
	return cmd
}

func newTaskListCmd(a *app) *cobra.Command {
	var filter, status, search, sortBy, sortOrder string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks with the same filters as the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := query.ParseParams(url.Values{
				"filter":    {filter},
				"status":    {status},
				"search":    {search},
				"sortBy":    {sortBy},
				"sortOrder": {sortOrder},
			})
			if err != nil {
				return err
			}
			tasks, err := query.NewComposer(a.stores.Tasks).Compose(cmd.Context(), params)
			if err != nil {
				return err
			}
			return printJSON(cmd, tasks)
		},
	}
	f := cmd.Flags()
	f.StringVar(&filter, "filter", "", "date bucket: today, upcoming or overdue")
	f.StringVar(&status, "status", "", "only tasks with this status: "+statusHelp())
	f.StringVar(&search, "search", "", "case-insensitive text search")
	f.StringVar(&sortBy, "sort-by", "", "due-date, created-date, status or title")
	f.StringVar(&sortOrder, "sort-order", "", "asc or desc (default desc)")
	return cmd
}

func newTaskGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			t, err := a.stores.Tasks.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, t)
		},
	}
}

func newTaskCreateCmd(a *app) *cobra.Command {
	var in task.Input
	var description, remarks, due, status, as string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			by, err := a.actor(ctx, as)
			if err != nil {
				return err
			}
			in.DueDate = task.Parse(due)
			in.Status = task.Status(status)
			if cmd.Flags().Changed("description") {
				in.Description = &description
			}
			if cmd.Flags().Changed("remarks") {
				in.Remarks = &remarks
			}
			t, err := a.stores.Tasks.Create(ctx, in, by)
			if err != nil {
				return err
			}
			a.record(cmd, activity.TaskCreated, t.ID, by, t)
			return printJSON(cmd, t)
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Title, "title", "", "task title (required)")
	f.StringVar(&description, "description", "", "description")
	f.StringVar(&due, "due", "", "due date, e.g. 2026-03-12 or 2026-03-12T17:00")
	f.StringVar(&status, "status", "", "initial status, default "+string(task.StatusNotStarted)+": "+statusHelp())
	f.StringVar(&remarks, "remarks", "", "remarks")
	f.StringVar(&as, "as", "", "username to attribute the change to")
	return cmd
}

func newTaskUpdateCmd(a *app) *cobra.Command {
	var title, description, remarks, due, status, as string
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update the given fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			by, err := a.actor(ctx, as)
			if err != nil {
				return err
			}

			var p task.Patch
			changed := cmd.Flags().Changed
			if changed("title") {
				p.Title = &title
			}
			if changed("description") {
				p.Description = &description
			}
			if changed("remarks") {
				p.Remarks = &remarks
			}
			if changed("due") {
				w := task.Parse(due)
				p.DueDate = &w
			}
			if changed("status") {
				s := task.Status(status)
				p.Status = &s
			}

			t, err := a.stores.Tasks.Update(ctx, id, p, by)
			if err != nil {
				return err
			}
			a.record(cmd, activity.TaskUpdated, t.ID, by, map[string]any{"changes": p, "task": t})
			return printJSON(cmd, t)
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "new title")
	f.StringVar(&description, "description", "", "new description")
	f.StringVar(&due, "due", "", "new due date")
	f.StringVar(&status, "status", "", "new status: "+statusHelp())
	f.StringVar(&remarks, "remarks", "", "new remarks")
	f.StringVar(&as, "as", "", "username to attribute the change to")
	return cmd
}

func newTaskDeleteCmd(a *app) *cobra.Command {
	var as string
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			by, err := a.actor(ctx, as)
			if err != nil {
				return err
			}
			removed, err := a.stores.Tasks.Delete(ctx, id)
			if err != nil {
				return err
			}
			if !removed {
				return task.ErrNotFound
			}
			a.record(cmd, activity.TaskDeleted, id, by, map[string]any{"id": id})
			return printJSON(cmd, map[string]any{"deleted": id})
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "username to attribute the change to")
	return cmd
}

func newTaskCountsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show bucket and status counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tasks, err := a.stores.Tasks.All(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, query.CountBuckets(tasks, time.Now()))
		},
	}
}

// record appends an activity event, warning on stderr if it fails.
func (a *app) record(cmd *cobra.Command, eventType string, taskID int64, by task.Attribution, content any) {
	if _, err := a.stores.Activity.Append(cmd.Context(), eventType, taskID, by.Name, content); err != nil {
		cmd.PrintErrf("warning: record activity: %v\n", err)
	}
}
