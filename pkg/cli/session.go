package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/platinummonkey/storygate/pkg/ability"
	"github.com/platinummonkey/storygate/pkg/rbac"
)

func newIssueSessionCommand(env *Env) *Command {
	return &Command{
		Name:        "issue-session",
		Description: "Issue a bearer session token for a user",
		Run: func(args []string) error {
			flags := flag.NewFlagSet("issue-session", flag.ContinueOnError)
			userID := flags.Int64("user", 0, "User ID")
			ttl := flags.Duration("ttl", env.SessionTTL, "Session lifetime")
			if err := flags.Parse(args); err != nil {
				return err
			}
			if *userID == 0 {
				return fmt.Errorf("--user is required")
			}
			if env.Sessions == nil {
				return fmt.Errorf("session store is not configured")
			}

			ctx := context.Background()
			// refuse sessions for unknown or disabled users
			if _, err := rbac.NewStore(env.DB).Identity(ctx, *userID); err != nil {
				return err
			}

			token, session, err := env.Sessions.Create(ctx, *userID, *ttl)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.out(), "%s\nexpires: %s\n", token, session.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}
}

func newCheckCommand(env *Env) *Command {
	return &Command{
		Name:        "check",
		Description: "Show a user's ability, or answer one can query",
		Run: func(args []string) error {
			flags := flag.NewFlagSet("check", flag.ContinueOnError)
			userID := flags.Int64("user", 0, "User ID; 0 evaluates a guest")
			action := flags.String("action", "", "Action to check")
			subject := flags.String("subject", "", "Subject to check")
			if err := flags.Parse(args); err != nil {
				return err
			}

			var identity *ability.Identity
			if *userID != 0 {
				id, err := rbac.NewStore(env.DB).Identity(context.Background(), *userID)
				if err != nil {
					return err
				}
				identity = id
			}
			a := ability.Build(identity)

			if *action == "" && *subject == "" {
				for _, g := range a.Grants() {
					fmt.Fprintln(env.out(), g.String())
				}
				return nil
			}

			act, subj := ability.Action(*action), ability.Subject(*subject)
			if !act.Valid() || !subj.Valid() {
				return fmt.Errorf("unknown action or subject: %s %s", *action, *subject)
			}
			if a.Can(act, subj) {
				fmt.Fprintf(env.out(), "allowed: can %s %s\n", act, subj)
			} else {
				fmt.Fprintf(env.out(), "denied: cannot %s %s\n", act, subj)
			}
			return nil
		},
	}
}
