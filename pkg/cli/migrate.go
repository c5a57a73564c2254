package cli

import (
	"context"
	"flag"
	"fmt"
)

func newMigrateCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "migrate",
		Description: "Apply pending database migrations",
		Flags:       flag.NewFlagSet("migrate", flag.ContinueOnError),
	}

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return env.withServices(ctx, func(svc *Services) error {
			if err := svc.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			env.Logger.Info("Database is up to date")
			return nil
		})
	}

	return cmd
}
