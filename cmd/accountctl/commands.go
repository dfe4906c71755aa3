package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"account-console/internal/domain"
	"account-console/internal/service"
	"account-console/internal/storage"
)

type app struct {
	accounts  service.AccountService
	storage   storage.Service
	bucket    string
	keyPrefix string
}

type opener func(ctx context.Context) (*app, func(), error)

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:   "accountctl",
		Short: "Manage console accounts from the command line",
		Long: `accountctl creates accounts and administrators and resets passwords
against the database configured for the console server (CONSOLE_* variables,
.env or config file).`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newCreateCmd(open, "createuser", "Create a regular account", false),
		newCreateCmd(open, "createadmin", "Create an administrator account", true),
		newSetPasswordCmd(open),
		newExportsCmd(open),
	)
	return root
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, open opener, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, a)
}

func newCreateCmd(open opener, use, short string, administrator bool) *cobra.Command {
	var email, birthdate, plain string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			born, err := domain.ParseDate(birthdate)
			if err != nil {
				return fmt.Errorf("invalid --birthdate %q, want YYYY-MM-DD", birthdate)
			}
			return withApp(cmd, open, func(ctx context.Context, a *app) error {
				create := a.accounts.CreateUser
				if administrator {
					create = a.accounts.CreateAdministrator
				}
				account, err := create(ctx, email, born, plain)
				if err != nil {
					return err
				}
				kind := "account"
				if administrator {
					kind = "administrator"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (id %d)\n", kind, account.Email, account.ID)
				if !account.HasUsablePassword() {
					fmt.Fprintln(cmd.OutOrStdout(), "no password set, run setpassword before logging in")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&birthdate, "birthdate", "", "date of birth (YYYY-MM-DD)")
	cmd.Flags().StringVar(&plain, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("birthdate")
	if administrator {
		_ = cmd.MarkFlagRequired("password")
	}
	return cmd
}

func newSetPasswordCmd(open opener) *cobra.Command {
	var email, plain string

	cmd := &cobra.Command{
		Use:   "setpassword",
		Short: "Replace the password of an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app) error {
				account, err := a.accounts.GetByEmail(ctx, email)
				if err != nil {
					return fmt.Errorf("find %s: %w", email, err)
				}
				if err := a.accounts.SetPassword(ctx, account.ID, plain); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "password changed for %s\n", account.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&plain, "password", "", "new password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newExportsCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "exports",
		Short: "List uploaded changelist exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app) error {
				if a.storage == nil || a.bucket == "" {
					return fmt.Errorf("storage bucket is not configured")
				}
				prefix := strings.Trim(a.keyPrefix, "/")
				if prefix != "" {
					prefix += "/"
				}
				objects, err := a.storage.ListObjects(ctx, a.bucket, prefix)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "KEY\tSIZE\tMODIFIED")
				for _, obj := range objects {
					modified := "-"
					if obj.LastModified != nil {
						modified = obj.LastModified.UTC().Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%s\t%d\t%s\n", obj.Key, obj.Size, modified)
				}
				return w.Flush()
			})
		},
	}
}
