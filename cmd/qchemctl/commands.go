package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mmynk/qchemaxis/internal/auth"
	"github.com/mmynk/qchemaxis/internal/maintenance"
	"github.com/mmynk/qchemaxis/internal/service"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func (a *app) auditCmd() *cobra.Command {
	var (
		asJSON    bool
		listUsers bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the database for integrity problems (read-only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.runAudit(cmd.Context(), maintenance.AuditOptions{ListUsers: listUsers})
			if err != nil {
				return err
			}
			if asJSON {
				return maintenance.WriteJSON(a.out, report)
			}
			return maintenance.WriteAuditText(a.out, report)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&listUsers, "list-users", false, "include every user in the report")
	return cmd
}

func (a *app) cleanupCmd() *cobra.Command {
	var (
		live   bool
		dryRun bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Repair duplicates, corrupted hashes, unset fields and orphaned quiz results",
		Long: "Plans a change-set and prints it. Nothing is written unless --live is given\n" +
			"or the plan is confirmed at the interactive prompt.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if live && dryRun {
				return errors.New("--live and --dry-run are mutually exclusive")
			}
			ctx := cmd.Context()
			render := func(r *maintenance.CleanupReport) error {
				if asJSON {
					return maintenance.WriteJSON(a.out, r)
				}
				return maintenance.WriteCleanupText(a.out, r)
			}

			if live || dryRun {
				report, err := a.runCleanup(ctx, live)
				if err != nil {
					return err
				}
				return render(report)
			}

			if a.serverURL != "" {
				return errors.New("interactive cleanup needs a local database; pass --live or --dry-run with --server")
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			cleaner := maintenance.NewCleaner(store, a.hasher(), nil, a.logger)

			plan := cleaner.Plan(ctx)
			if err := render(plan); err != nil {
				return err
			}
			if len(plan.Changes) == 0 {
				return nil
			}

			ok, err := confirm(a.in, a.out, "Apply these changes?")
			if err != nil || !ok {
				fmt.Fprintln(a.out, "Aborted; no changes made.")
				return nil
			}

			// Apply the plan that was shown, so the printed temporary
			// passwords are the ones stored.
			return render(cleaner.Apply(ctx, plan))
		},
	}
	cmd.Flags().BoolVar(&live, "live", false, "apply the changes")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only print the plan")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func (a *app) createUserCmd() *cobra.Command {
	var (
		username string
		email    string
		password string
	)
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account directly in the local database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				pw, err := promptPassword(a.out)
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				password = pw
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			secret := a.cfg.JWT.Secret
			if secret == "" {
				if secret, err = auth.RandomSecret(32); err != nil {
					return err
				}
			}
			accounts := service.NewAccountService(store, store, a.hasher(), auth.NewJWTManager(secret, time.Hour), nil, a.logger)

			res, err := accounts.Signup(cmd.Context(), service.SignupInput{Username: username, Email: email, Password: password})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created user %d (%s, %s)\n", res.User.ID, res.User.Username, res.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username (at least 3 characters)")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password; prompted for when omitted")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// promptPassword reads a password twice from the terminal without echo.
func promptPassword(w io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())

	fmt.Fprint(w, "Password: ")
	first, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}

	fmt.Fprint(w, "Repeat password: ")
	second, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func confirm(r io.Reader, w io.Writer, question string) (bool, error) {
	fmt.Fprintf(w, "%s [y/N] ", question)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
