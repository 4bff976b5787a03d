package app

import (
	"context"
	"fmt"
	"net/http"

	"courier/internal/reconcile"
	"courier/pkg/admin"
	"courier/pkg/config"
	"courier/pkg/identity"
	"courier/pkg/logger"
	"courier/pkg/store"
	"courier/pkg/validation"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	provider   *identity.Provider
	aggregator *admin.Aggregator

	srv *http.Server
}

// New validates the effective config, opens the store and constructs the
// collaborators. It does not start the HTTP server or the reconcile
// scheduler; call Run for those.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	validation.SetLimits(validation.Limits{
		MaxMessageBytes: eff.Config.Limits.MaxMessageBytes.Int64(),
		MaxNameLen:      eff.Config.Limits.MaxNameLen,
		MaxGroupMembers: eff.Config.Limits.MaxGroupMembers,
	})

	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	smtp := eff.Config.SMTP
	mailer := identity.NewMailer(smtp.Host, smtp.Port, smtp.From, smtp.Username, smtp.Password)
	provider := identity.New(
		eff.Config.Security.Token.Secret,
		eff.Config.Security.Token.TTL.Duration(),
		mailer,
	)
	aggregator := admin.New(eff.Config.Security.AdminEmails, provider)

	return &App{
		eff:        eff,
		version:    version,
		commit:     commit,
		buildDate:  buildDate,
		provider:   provider,
		aggregator: aggregator,
	}, nil
}

// validateConfig fails fast on configuration the server cannot run with.
func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.Config.Security.Token.Secret == "" {
		return fmt.Errorf("security.token.secret is required (or COURIER_TOKEN_SECRET)")
	}
	if eff.DBPath == "" {
		return fmt.Errorf("server.db_path is required (or COURIER_DB_PATH / --db)")
	}
	if len(eff.Config.Security.AdminEmails) == 0 {
		logger.Warn("no_admin_emails_configured")
	}
	return nil
}

// Run starts the reconcile scheduler and the HTTP server, and blocks until
// ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	cancelReconcile, err := reconcile.Start(ctx, a.eff.Config.Reconcile)
	if err != nil {
		return err
	}
	defer cancelReconcile()

	a.printBanner()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.stopHTTP()
		return nil
	case err := <-errCh:
		return err
	}
}
