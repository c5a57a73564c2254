package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/reconcile"
)

func newFixOrphansCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "fix-orphans",
		Description: "Give clients without an access profile a linked or new account",
		Flags:       flag.NewFlagSet("fix-orphans", flag.ContinueOnError),
	}

	dryRun := cmd.Flags.Bool("dry-run", true, "Report decisions without changing anything")
	limit := cmd.Flags.Int("limit", reconcile.DefaultLimit, "Maximum number of orphans to process")
	sendEmails := cmd.Flags.Bool("send-emails", false, "Email temporary credentials to newly created accounts")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		opts := reconcile.Options{DryRun: *dryRun, Limit: *limit, SendEmails: *sendEmails}
		if opts.Limit <= 0 {
			opts.Limit = reconcile.DefaultLimit
		}

		return env.withServices(ctx, func(svc *Services) error {
			log := env.Logger.WithFields(logrus.Fields{
				"dry_run":     opts.DryRun,
				"limit":       opts.Limit,
				"send_emails": opts.SendEmails,
			})
			log.Info("Starting orphan reconciliation")

			report, err := svc.Reconciler.Run(ctx, opts)
			if err != nil {
				return fmt.Errorf("reconciliation failed: %w", err)
			}

			log.WithFields(logrus.Fields{
				"orphans":   report.Summary.TotalOrphansFound,
				"processed": report.Summary.Processed,
				"errors":    report.Summary.Errors,
			}).Info("Reconciliation finished")

			enc := json.NewEncoder(env.Out)
			enc.SetIndent("", "  ")
			return enc.Encode(report.Response())
		})
	}

	return cmd
}
