package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"taskmaster/internal/db"
	"taskmaster/pkg/task"
	"taskmaster/pkg/user"
)

func setupStores(t *testing.T) *db.Stores {
	t.Helper()
	gdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "seed.db"), false)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	stores := db.NewGormStores(gdb, user.NewPasswordHasher(bcrypt.MinCost))
	t.Cleanup(stores.Close)
	return stores
}

func TestSeed(t *testing.T) {
	stores := setupStores(t)
	ctx := context.Background()
	now := time.Now()

	n, err := seed(ctx, stores, now)
	if err != nil {
		t.Fatalf("seed() error = %v", err)
	}
	if n != len(sampleTasks) {
		t.Errorf("seed() created %d tasks, want %d", n, len(sampleTasks))
	}

	// A second run adds nothing.
	n, err = seed(ctx, stores, now)
	if err != nil || n != 0 {
		t.Errorf("second seed() = %d, %v; want 0, nil", n, err)
	}

	all, _ := stores.Tasks.All(ctx)
	if len(all) != len(sampleTasks) {
		t.Fatalf("store holds %d tasks, want %d", len(all), len(sampleTasks))
	}
	for _, tk := range all {
		if tk.CreatedByName == nil || *tk.CreatedByName != demoUsername {
			t.Errorf("%q created by %v, want demo", tk.Title, tk.CreatedByName)
		}
	}

	overdue, _ := stores.Tasks.Overdue(ctx)
	if len(overdue) != 1 || overdue[0].Title != "Update Documentation" {
		t.Errorf("Overdue() = %v", overdue)
	}

	if err := stores.Activity.VerifyChain(ctx); err != nil {
		t.Errorf("VerifyChain() = %v", err)
	}
}

func TestTaskListCommand(t *testing.T) {
	stores := setupStores(t)
	if _, err := seed(context.Background(), stores, time.Now()); err != nil {
		t.Fatalf("seed() error = %v", err)
	}

	a := &app{stores: stores}
	cmd := newTaskListCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--status", "not-started", "--sort-by", "title", "--sort-order", "asc"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("task list error = %v", err)
	}

	var tasks []task.Task
	if err := json.Unmarshal(out.Bytes(), &tasks); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	var titles []string
	for _, tk := range tasks {
		titles = append(titles, tk.Title)
	}
	want := "Deploy Application|Review Code Changes|Update Documentation"
	if got := strings.Join(titles, "|"); got != want {
		t.Errorf("titles = %s, want %s", got, want)
	}

	bad := newTaskListCmd(a)
	bad.SetOut(&bytes.Buffer{})
	bad.SetErr(&bytes.Buffer{})
	bad.SetArgs([]string{"--filter", "someday"})
	if err := bad.ExecuteContext(context.Background()); !task.IsValidation(err) {
		t.Errorf("bad filter error = %v, want ValidationError", err)
	}
}

func TestUserCheckCommand(t *testing.T) {
	stores := setupStores(t)
	if _, err := seed(context.Background(), stores, time.Now()); err != nil {
		t.Fatalf("seed() error = %v", err)
	}
	a := &app{stores: stores, hasher: user.NewPasswordHasher(bcrypt.MinCost)}

	run := func(args ...string) error {
		cmd := newUserCmd(a)
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.ExecuteContext(context.Background())
	}

	if err := run("check", demoUsername, "--password", demoPassword); err != nil {
		t.Errorf("check with the right password = %v", err)
	}
	if err := run("check", demoUsername, "--password", "nope"); err != errPasswordMismatch {
		t.Errorf("check with a wrong password = %v, want errPasswordMismatch", err)
	}
	if err := run("check", "ghost", "--password", "x"); !errors.Is(err, user.ErrNotFound) {
		t.Errorf("check unknown user = %v, want ErrNotFound", err)
	}
}

func TestStatusFlagHelp(t *testing.T) {
	a := &app{}
	for _, cmd := range []*cobra.Command{newTaskListCmd(a), newTaskCreateCmd(a), newTaskUpdateCmd(a)} {
		usage := cmd.Flags().Lookup("status").Usage
		for _, s := range task.Statuses {
			if !strings.Contains(usage, string(s)) {
				t.Errorf("%s --status usage %q does not mention %s", cmd.Name(), usage, s)
			}
		}
	}
}
