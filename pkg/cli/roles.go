package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/platinummonkey/storygate/pkg/login"
	"github.com/platinummonkey/storygate/pkg/rbac"
	"github.com/platinummonkey/storygate/pkg/seed"
)

func newMigrateCommand(env *Env) *Command {
	return &Command{
		Name:        "migrate",
		Description: "Apply database migrations",
		Run: func(args []string) error {
			flags := flag.NewFlagSet("migrate", flag.ContinueOnError)
			if err := flags.Parse(args); err != nil {
				return err
			}

			if err := rbac.RunMigrations(context.Background(), env.DB, env.Dialect, env.logger()); err != nil {
				return err
			}
			fmt.Fprintln(env.out(), "migrations applied")
			return nil
		},
	}
}

func newSeedCommand(env *Env) *Command {
	return &Command{
		Name:        "seed",
		Description: "Reconcile built-in and seed-file roles",
		Run: func(args []string) error {
			flags := flag.NewFlagSet("seed", flag.ContinueOnError)
			file := flags.String("file", env.SeedFile, "YAML role seed file or s3://bucket/key")
			if err := flags.Parse(args); err != nil {
				return err
			}

			source, err := seed.SourceFor(*file, env.S3)
			if err != nil {
				return err
			}
			reconciler := seed.NewReconcilerFromSource(rbac.NewStore(env.DB), source, env.logger(), nil)
			result, err := reconciler.Run(context.Background(), seed.TriggerManual)
			if err != nil {
				return err
			}

			fmt.Fprintf(env.out(), "created: %v\nupdated: %v\nunchanged: %v\n",
				result.Created, result.Updated, result.Unchanged)
			return nil
		},
	}
}

func newCreateUserCommand(env *Env) *Command {
	return &Command{
		Name:        "create-user",
		Description: "Create a user, optionally with a role",
		Run: func(args []string) error {
			flags := flag.NewFlagSet("create-user", flag.ContinueOnError)
			email := flags.String("email", "", "Email address")
			name := flags.String("name", "", "Display name")
			roleName := flags.String("role", "", "Role name")
			if err := flags.Parse(args); err != nil {
				return err
			}
			if *email == "" {
				return fmt.Errorf("--email is required")
			}

			ctx := context.Background()
			store := rbac.NewStore(env.DB)

			user := &rbac.User{Email: *email, Name: *name, IsActive: true}
			if *roleName != "" {
				role, err := store.GetRoleByName(ctx, *roleName)
				if err != nil {
					return err
				}
				user.RoleID = &role.ID
			}

			if err := store.CreateUser(ctx, user); err != nil {
				return err
			}
			fmt.Fprintf(env.out(), "created user %d (%s)\n", user.ID, user.Email)
			return nil
		},
	}
}

func newSetRoleCommand(env *Env) *Command {
	return &Command{
		Name:        "set-role",
		Description: "Assign a role to a user; an empty role clears it",
		Run: func(args []string) error {
			flags := flag.NewFlagSet("set-role", flag.ContinueOnError)
			userID := flags.Int64("user", 0, "User ID")
			roleName := flags.String("role", "", "Role name")
			if err := flags.Parse(args); err != nil {
				return err
			}
			if *userID == 0 {
				return fmt.Errorf("--user is required")
			}

			ctx := context.Background()
			store := rbac.NewStore(env.DB)

			var roleID *int64
			if *roleName != "" {
				role, err := store.GetRoleByName(ctx, *roleName)
				if err != nil {
					return err
				}
				roleID = &role.ID
			}

			if err := store.SetUserRole(ctx, *userID, roleID); err != nil {
				return err
			}
			fmt.Fprintf(env.out(), "user %d role set to %q\n", *userID, *roleName)
			return nil
		},
	}
}

func newSetPasswordCommand(env *Env) *Command {
	return &Command{
		Name:        "set-password",
		Description: "Set a user's login password",
		Run: func(args []string) error {
			flags := flag.NewFlagSet("set-password", flag.ContinueOnError)
			userID := flags.Int64("user", 0, "User ID")
			password := flags.String("password", "", "New password")
			if err := flags.Parse(args); err != nil {
				return err
			}
			if *userID == 0 || *password == "" {
				return fmt.Errorf("--user and --password are required")
			}

			hash, err := login.HashPassword(*password)
			if err != nil {
				return err
			}
			if err := rbac.NewStore(env.DB).SetPasswordHash(context.Background(), *userID, hash); err != nil {
				return err
			}
			fmt.Fprintf(env.out(), "password set for user %d\n", *userID)
			return nil
		},
	}
}

func newSetActiveCommand(env *Env) *Command {
	return &Command{
		Name:        "set-active",
		Description: "Enable or disable a user",
		Run: func(args []string) error {
			flags := flag.NewFlagSet("set-active", flag.ContinueOnError)
			userID := flags.Int64("user", 0, "User ID")
			active := flags.Bool("active", true, "Whether the user may sign in")
			if err := flags.Parse(args); err != nil {
				return err
			}
			if *userID == 0 {
				return fmt.Errorf("--user is required")
			}

			if err := rbac.NewStore(env.DB).SetUserActive(context.Background(), *userID, *active); err != nil {
				return err
			}
			fmt.Fprintf(env.out(), "user %d active: %t\n", *userID, *active)
			return nil
		},
	}
}
