package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/papersim/internal/reference"
	"github.com/matsen/papersim/internal/storage"
)

var (
	userEmail    string
	userUsername string
)

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userGetCmd)
	userCmd.AddCommand(userListCmd)

	userAddCmd.Flags().StringVar(&userEmail, "email", "", "Email address (unique)")
	userAddCmd.Flags().StringVar(&userUsername, "username", "", "Display name (default: email local part)")
	userAddCmd.MarkFlagRequired("email")
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user with an empty interest profile",
	Args:  cobra.NoArgs,
	RunE:  runUserAdd,
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	e := mustSetup()
	defer e.close()

	username := userUsername
	if username == "" {
		username, _, _ = strings.Cut(userEmail, "@")
	}

	u, err := e.db.CreateUser(context.Background(), reference.User{
		Email:    userEmail,
		Username: username,
	})
	exitOnError(err, "creating user")

	if humanOutput {
		printUserHuman(*u)
	} else {
		outputJSON(u)
	}
	return nil
}

var userGetCmd = &cobra.Command{
	Use:   "get <user-id-or-email>",
	Short: "Show a user and their interests",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserGet,
}

func runUserGet(cmd *cobra.Command, args []string) error {
	e := mustSetup()
	defer e.close()

	u := e.mustResolveUser(context.Background(), args[0])

	if humanOutput {
		printUserHuman(*u)
	} else {
		outputJSON(u)
	}
	return nil
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE:  runUserList,
}

func runUserList(cmd *cobra.Command, args []string) error {
	e := mustSetup()
	defer e.close()

	users, err := e.db.ListUsers(context.Background())
	exitOnError(err, "listing users")
	if users == nil {
		users = []reference.User{}
	}

	if humanOutput {
		for _, u := range users {
			fmt.Printf("%-36s  %-30s  %s\n", u.ID, u.Email, u.Interests)
		}
	} else {
		outputJSON(users)
	}
	return nil
}

// mustResolveUser looks a user up by ID, then by email, exits on error.
func (e *env) mustResolveUser(ctx context.Context, key string) *reference.User {
	u, err := e.db.GetUser(ctx, key)
	if errors.Is(err, storage.ErrUserNotFound) && strings.Contains(key, "@") {
		u, err = e.db.GetUserByEmail(ctx, key)
	}
	exitOnError(err, "looking up user")
	return u
}
