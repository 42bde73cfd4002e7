package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"taskmaster/internal/db"
	"taskmaster/pkg/activity"
	"taskmaster/pkg/task"
	"taskmaster/pkg/user"
)

const (
	demoUsername = "demo"
	demoPassword = "password"
)

type sampleTask struct {
	title, description, remarks string
	dueIn                       time.Duration
	status                      task.Status
}

var sampleTasks = []sampleTask{
	{"Complete Project Plan", "Finalize the project plan document including timeline and resources", "Need to discuss with team", 48 * time.Hour, task.StatusInProgress},
	{"Review Code Changes", "Review pull request for the new feature implementation", "High priority", 24 * time.Hour, task.StatusNotStarted},
	{"Deploy Application", "Deploy the latest version to production", "Needs testing first", 5 * 24 * time.Hour, task.StatusNotStarted},
	{"Update Documentation", "Update API documentation with the latest changes", "Overdue", -24 * time.Hour, task.StatusNotStarted},
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo user and sample tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			created, err := seed(cmd.Context(), a.stores, time.Now())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"status": "ok", "user": demoUsername, "tasks": created})
		},
	}
}

// seed ensures the tables, the demo user and one copy of each sample task
// attributed to it. It returns how many tasks it created.
func seed(ctx context.Context, stores *db.Stores, now time.Time) (int, error) {
	if err := stores.EnsureTables(ctx); err != nil {
		return 0, err
	}

	u, err := stores.Users.Create(ctx, demoUsername, demoPassword)
	if errors.Is(err, user.ErrUsernameTaken) {
		u, err = stores.Users.ByUsername(ctx, demoUsername)
	}
	if err != nil {
		return 0, fmt.Errorf("demo user: %w", err)
	}
	by := task.Attribution{ID: &u.ID, Name: u.Username}

	existing, err := stores.Tasks.All(ctx)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[t.Title] = true
	}

	n := 0
	for _, s := range sampleTasks {
		if have[s.title] {
			continue
		}
		description, remarks := s.description, s.remarks
		t, err := stores.Tasks.Create(ctx, task.Input{
			Title:       s.title,
			Description: &description,
			DueDate:     task.At(now.Add(s.dueIn)),
			Status:      s.status,
			Remarks:     &remarks,
		}, by)
		if err != nil {
			return n, fmt.Errorf("seed %q: %w", s.title, err)
		}
		if _, err := stores.Activity.Append(ctx, activity.TaskCreated, t.ID, by.Name, t); err != nil {
			return n, fmt.Errorf("seed %q: %w", s.title, err)
		}
		n++
	}
	return n, nil
}
