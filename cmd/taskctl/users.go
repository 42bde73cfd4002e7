package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var errPasswordMismatch = errors.New("password does not match")

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User operations (add, list)",
	}

	var password string
	add := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.stores.Users.Create(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			return printJSON(cmd, u)
		},
	}
	add.Flags().StringVar(&password, "password", "", "password (required)")
	_ = add.MarkFlagRequired("password")

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := a.stores.Users.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, users)
		},
	}

	var candidate string
	check := &cobra.Command{
		Use:   "check USERNAME",
		Short: "Check a user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.stores.Users.ByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !a.hasher.Verify(candidate, u.PasswordHash) {
				return errPasswordMismatch
			}
			return printJSON(cmd, map[string]string{"status": "ok", "user": u.Username})
		},
	}
	check.Flags().StringVar(&candidate, "password", "", "password to check (required)")
	_ = check.MarkFlagRequired("password")

	cmd.AddCommand(add, list, check)
	return cmd
}
