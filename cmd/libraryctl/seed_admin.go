package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/geocoder89/libraryhub/internal/account"
	"github.com/geocoder89/libraryhub/internal/security"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newSeedAdminCmd(a *app) *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the admin account when it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				email = a.cfg.AdminEmail
			}
			if name == "" {
				name = a.cfg.AdminName
			}
			if email == "" {
				return errors.New("an admin email is required (--email or ADMIN_EMAIL)")
			}

			password := a.cfg.AdminPassword
			if password == "" {
				p, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), "Admin password: ")
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				password = p
			}

			ctx := cmd.Context()
			st, closeStore, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			svc := account.NewService(st.Repos().Users, security.NewPasswordHasher(a.cfg.BcryptCost), account.WithLogger(a.log))

			created, err := svc.EnsureAdmin(ctx, name, email, password)
			if err != nil {
				return err
			}

			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s created\n", email)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s already exists\n", email)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email (defaults to ADMIN_EMAIL)")
	cmd.Flags().StringVar(&name, "name", "", "admin display name (defaults to ADMIN_NAME)")

	return cmd
}

// readPassword masks input on a terminal and falls back to one line of
// plain input otherwise, so the command can be scripted.
func readPassword(in io.Reader, prompt io.Writer, label string) (string, error) {
	fmt.Fprint(prompt, label)

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	password := strings.TrimSpace(line)
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}
