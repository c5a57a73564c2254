package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/access"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/cli"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/config"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/identity"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/notify"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/observability"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/policies"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/reconcile"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/storage/postgres"
)

func main() {
	logger := cli.NewLogger(os.Getenv("PORTAL_LOG_LEVEL"), os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(&cli.Env{
		Setup:  setup,
		Out:    os.Stdout,
		Logger: logger,
	})
	if err := root.Execute(ctx, os.Args[1:], os.Stdout); err != nil {
		logger.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

// setup connects the database and the backend platform with the service key
func setup(ctx context.Context) (*cli.Services, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(cfg.Observability.Level(), os.Stderr).WithComponent("portal-admin")

	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	store := postgres.NewStore(db)

	httpClient := observability.TraceHTTPClient(cfg.Backend.RequestTimeout)
	directory := identity.NewClient(cfg.Backend.URL, cfg.Backend.ServiceKey,
		identity.WithHTTPClient(httpClient),
		identity.WithPageSize(cfg.Backend.AccountPageSize),
	)

	var opts []access.Option
	if cfg.Backend.NotificationFunction != "" {
		opts = append(opts, access.WithNotifier(notify.NewClient(
			cfg.Backend.URL, cfg.Backend.ServiceKey, cfg.Backend.NotificationFunction, cfg.Backend.LoginURL, httpClient)))
	}
	provisioner := access.NewProvisioner(directory, store, logger.WithComponent("access"), opts...)

	return &cli.Services{
		Reconciler: reconcile.NewReconciler(directory, store, provisioner, nil, logger.WithComponent("reconcile")),
		Expiry:     policies.NewExpiryJob(store, nil, logger.WithComponent("expiry")),
		Migrate: func(ctx context.Context) error {
			return postgres.Migrate(ctx, db, logger.WithComponent("migrations"))
		},
		Close: func() error {
			if err := store.Close(); err != nil {
				return fmt.Errorf("failed to close database: %w", err)
			}
			return nil
		},
	}, nil
}
