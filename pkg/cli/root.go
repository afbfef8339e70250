package cli

import (
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/platinummonkey/storygate/pkg/auth"
	"github.com/platinummonkey/storygate/pkg/observability"
	"github.com/platinummonkey/storygate/pkg/rbac"
	"github.com/platinummonkey/storygate/pkg/seed"
)

// Env holds the connections the admin commands operate on
type Env struct {
	DB         *sql.DB
	Dialect    rbac.Dialect
	Sessions   *auth.SessionStore
	SessionTTL time.Duration
	SeedFile   string
	// S3 fetches s3:// seed files; nil when object storage is not configured
	S3         seed.ObjectGetter
	Logger     *observability.Logger
	Out        io.Writer
}

func (e *Env) out() io.Writer {
	if e.Out == nil {
		return os.Stdout
	}
	return e.Out
}

func (e *Env) logger() *observability.Logger {
	if e.Logger == nil {
		return observability.NopLogger()
	}
	return e.Logger
}

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// NewRootCommand creates the root command
func NewRootCommand(env *Env) *Command {
	root := &Command{
		Name:        "storygate-admin",
		Description: "Storygate - role and session administration",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("storygate-admin", flag.ContinueOnError),
	}

	// Add subcommands
	root.Subcommands["migrate"] = newMigrateCommand(env)
	root.Subcommands["seed"] = newSeedCommand(env)
	root.Subcommands["create-user"] = newCreateUserCommand(env)
	root.Subcommands["set-role"] = newSetRoleCommand(env)
	root.Subcommands["set-password"] = newSetPasswordCommand(env)
	root.Subcommands["set-active"] = newSetActiveCommand(env)
	root.Subcommands["issue-session"] = newIssueSessionCommand(env)
	root.Subcommands["check"] = newCheckCommand(env)

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(args []string, out io.Writer) error {
	if len(args) == 0 {
		return c.usage(out)
	}

	switch strings.ToLower(args[0]) {
	case "-h", "--help", "help":
		return c.usage(out)
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage(out io.Writer) error {
	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}
