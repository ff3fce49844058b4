package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"smartcheck/internal/adapters/render"
	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/domain/ports"
)

type loginResult struct {
	Username  string          `json:"username" yaml:"username"`
	Role      models.UserRole `json:"role" yaml:"role"`
	ExpiresAt time.Time       `json:"expires_at" yaml:"expires_at"`
}

func newLoginCmd(a *app) *cobra.Command {
	var user, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Long: `Logs in with a username or email. Without --password the password is
read from the first line of standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			if password == "" {
				line, err := bufio.NewReader(a.stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			sess, err := a.client.Login(cmd.Context(), user, password)
			if err != nil {
				return err
			}
			if err := a.sessions.Save(sess); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}
			a.logger.Debug("session stored", zap.String("path", a.sessions.Path()))

			out := loginResult{Username: sess.Username, Role: sess.Role, ExpiresAt: sess.ExpiresAt}
			return a.printer.Print(out, func(s render.Styles) string {
				return fmt.Sprintf("Logged in as %s (%s)\n", s.Bold.Render(sess.Username), sess.Role)
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "username or email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when omitted)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget it locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.client.Session().Token == "" {
				a.printer.Messagef("Not logged in")
				return nil
			}
			err := a.client.Logout(cmd.Context())
			if clearErr := a.sessions.Clear(); clearErr != nil {
				return fmt.Errorf("failed to clear session: %w", clearErr)
			}
			if err != nil {
				// The local session is gone either way.
				a.logger.Warn("server-side logout failed", zap.Error(err))
			}
			a.printer.Messagef("Logged out")
			return nil
		},
	}
}

type whoami struct {
	Session models.Session `json:"session" yaml:"session"`
	User    *models.User   `json:"user,omitempty" yaml:"user,omitempty"`
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			sess := a.client.Session()
			out := whoami{Session: sess}
			if u, err := a.client.GetUser(cmd.Context(), sess.UserID); err == nil {
				out.User = &u
			} else if errors.Is(err, ports.ErrAuthExpired) {
				return err
			}

			return a.printer.Print(out, func(s render.Styles) string {
				var sb strings.Builder
				fmt.Fprintf(&sb, "%s (%s)\n", s.Bold.Render(sess.Username), sess.Role)
				if out.User != nil {
					fmt.Fprintf(&sb, "Email:   %s\n", out.User.Email)
					fmt.Fprintf(&sb, "Status:  %s\n", out.User.Status)
				}
				if !sess.ExpiresAt.IsZero() {
					fmt.Fprintf(&sb, "Expires: %s\n", humanize.Time(sess.ExpiresAt))
				}
				return sb.String()
			})
		},
	}
}
