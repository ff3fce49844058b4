package main

import (
	"github.com/spf13/cobra"

	"smartcheck/internal/adapters/render"
	"smartcheck/internal/core/domain/models"
)

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Manage operator accounts (Admin only)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}
			return a.requireAdmin()
		},
	}
	cmd.AddCommand(newUsersListCmd(a), newUsersCreateCmd(a), newUsersUpdateCmd(a), newUsersDeleteCmd(a))
	return cmd
}

func newUsersListCmd(a *app) *cobra.Command {
	var q models.UserQuery
	var role, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Role = models.UserRole(role)
			q.Status = models.UserStatus(status)
			users, err := a.client.ListUsers(cmd.Context(), q)
			if err != nil {
				return err
			}
			return a.printer.Print(users, render.Users(users))
		},
	}
	cmd.Flags().StringVar(&q.SearchTerm, "search", "", "match username, email or name")
	cmd.Flags().StringVar(&role, "role", "", "Admin or User")
	cmd.Flags().StringVar(&status, "status", "", "Active or Inactive")
	cmd.Flags().IntVar(&q.Skip, "skip", 0, "number of accounts to skip")
	cmd.Flags().IntVar(&q.Limit, "limit", 100, "maximum number of accounts")
	cmd.Flags().StringVar(&q.SortBy, "sort-by", "", "field to sort by")
	cmd.Flags().StringVar(&q.SortOrder, "sort-order", "", "asc or desc")
	return cmd
}

func newUsersCreateCmd(a *app) *cobra.Command {
	var req models.UserCreateRequest
	var role, status string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Role = models.UserRole(role)
			req.Status = models.UserStatus(status)
			u, err := a.client.CreateUser(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.printer.Print(u, render.Users([]models.User{u}))
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "login name")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&req.JobTitle, "job-title", "", "job title")
	cmd.Flags().StringVar(&role, "role", string(models.RoleUser), "Admin or User")
	cmd.Flags().StringVar(&status, "status", string(models.UserActive), "Active or Inactive")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUsersUpdateCmd(a *app) *cobra.Command {
	var username, email, firstName, lastName, jobTitle, role, status string
	cmd := &cobra.Command{
		Use:   "update USER_ID",
		Short: "Change fields of an account; only the given flags are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			var req models.UserUpdateRequest
			flags := cmd.Flags()
			if flags.Changed("username") {
				req.Username = &username
			}
			if flags.Changed("email") {
				req.Email = &email
			}
			if flags.Changed("first-name") {
				req.FirstName = &firstName
			}
			if flags.Changed("last-name") {
				req.LastName = &lastName
			}
			if flags.Changed("job-title") {
				req.JobTitle = &jobTitle
			}
			if flags.Changed("role") {
				r := models.UserRole(role)
				req.Role = &r
			}
			if flags.Changed("status") {
				s := models.UserStatus(status)
				req.Status = &s
			}
			u, err := a.client.UpdateUser(cmd.Context(), id, req)
			if err != nil {
				return err
			}
			return a.printer.Print(u, render.Users([]models.User{u}))
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&jobTitle, "job-title", "", "job title")
	cmd.Flags().StringVar(&role, "role", "", "Admin or User")
	cmd.Flags().StringVar(&status, "status", "", "Active or Inactive")
	return cmd
}

func newUsersDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete USER_ID",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			if err := a.client.DeleteUser(cmd.Context(), id); err != nil {
				return err
			}
			a.printer.Messagef("Deleted user %d", id)
			return nil
		},
	}
}
