package cli

import (
	"context"
	"flag"
	"fmt"
)

func newExpirePoliciesCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "expire-policies",
		Description: "Mark active policies that already ended as expired",
		Flags:       flag.NewFlagSet("expire-policies", flag.ContinueOnError),
	}

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return env.withServices(ctx, func(svc *Services) error {
			n, err := svc.Expiry.RunOnce(ctx)
			if err != nil {
				return fmt.Errorf("expiry pass failed: %w", err)
			}
			env.Logger.WithField("expired", n).Info("Expiry pass finished")
			fmt.Fprintf(env.Out, "expired %d policies\n", n)
			return nil
		})
	}

	return cmd
}
