package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/reconcile"
)

// ReconcileRunner runs an orphan profile reconciliation pass
type ReconcileRunner interface {
	Run(ctx context.Context, opts reconcile.Options) (*reconcile.Report, error)
}

// ExpiryRunner runs one policy expiry pass
type ExpiryRunner interface {
	RunOnce(ctx context.Context) (int64, error)
}

// Services are the collaborators commands act on
type Services struct {
	Reconciler ReconcileRunner
	Expiry     ExpiryRunner
	Migrate    func(ctx context.Context) error
	Close      func() error
}

// SetupFunc connects Services. It is called only by commands that need them, so usage
// output works without configuration.
type SetupFunc func(ctx context.Context) (*Services, error)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// Env is shared by all commands
type Env struct {
	Setup  SetupFunc
	Out    io.Writer
	Logger *logrus.Logger
}

// NewRootCommand creates the portal-admin root command
func NewRootCommand(env *Env) *Command {
	root := &Command{
		Name:        "portal-admin",
		Description: "Maintenance tasks for the policy portal",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("portal-admin", flag.ContinueOnError),
	}

	root.Subcommands["fix-orphans"] = newFixOrphansCommand(env)
	root.Subcommands["expire-policies"] = newExpirePoliciesCommand(env)
	root.Subcommands["migrate"] = newMigrateCommand(env)

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return c.usage(out)
	}

	// Check for help flag
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		return c.usage(out)
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(ctx, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage(out io.Writer) error {
	fmt.Fprintf(out, "Usage: %s <command> [flags]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-17s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// withServices runs fn against freshly set up services and closes them afterwards
func (e *Env) withServices(ctx context.Context, fn func(*Services) error) error {
	svc, err := e.Setup(ctx)
	if err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}
	if svc.Close != nil {
		defer func() {
			if err := svc.Close(); err != nil {
				e.Logger.WithError(err).Warn("Failed to release resources")
			}
		}()
	}
	return fn(svc)
}

// NewLogger returns the CLI's JSON logger at level, falling back to info
func NewLogger(level string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
