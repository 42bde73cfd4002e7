// Command taskctl administers a TaskMaster database from the shell.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"taskmaster/internal/config"
	"taskmaster/internal/db"
	"taskmaster/pkg/task"
	"taskmaster/pkg/user"
)

// app is the state shared by every subcommand once the root has run.
type app struct {
	cfg    *config.Config
	stores *db.Stores
	hasher *user.PasswordHasher
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "taskctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var cfgFile string

	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "Administer TaskMaster tasks, users and activity",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context(), cfgFile)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.stores != nil {
				a.stores.Close()
			}
		},
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./taskmaster.yaml)")

	root.AddCommand(
		newInitCmd(a),
		newSeedCmd(a),
		newTaskCmd(a),
		newUserCmd(a),
		newActivityCmd(a),
	)
	return root
}

func (a *app) open(ctx context.Context, cfgFile string) error {
	v, err := config.New(cfgFile)
	if err != nil {
		return err
	}
	a.cfg, err = config.Load(v)
	if err != nil {
		return err
	}
	a.hasher = user.NewPasswordHasher(a.cfg.Users.BcryptCost)
	a.stores, err = db.Open(ctx, a.cfg.Database, a.hasher)
	return err
}

// actor resolves --as to an attribution, falling back to the configured
// default name.
func (a *app) actor(ctx context.Context, username string) (task.Attribution, error) {
	if username == "" {
		return task.Attribution{Name: a.cfg.Attribution.DefaultName}, nil
	}
	u, err := a.stores.Users.ByUsername(ctx, username)
	if errors.Is(err, user.ErrNotFound) {
		return task.Attribution{}, fmt.Errorf("unknown user %q", username)
	}
	if err != nil {
		return task.Attribution{}, err
	}
	id := u.ID
	return task.Attribution{ID: &id, Name: u.Username}, nil
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create all tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.stores.EnsureTables(cmd.Context()); err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"status": "ok", "message": "all tables initialized"})
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// statusHelp lists the accepted statuses for flag usage text.
func statusHelp() string {
	names := make([]string, len(task.Statuses))
	for i, s := range task.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}
