// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"

	userstore "github.com/dalemusser/churchhub/internal/app/store/users"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})

	if err := ensureAdmin(ctx, deps, appCfg.AdminEmail, logger); err != nil {
		return err
	}

	if deps.Jobs != nil {
		deps.Jobs.Start()
	}

	if deps.Worker != nil {
		if err := deps.Worker.Start(); err != nil {
			logger.Error("notification worker failed to start", zap.Error(err))
			return err
		}
		logger.Info("notification worker started")
	}
	return nil
}

// ensureAdmin promotes the configured email to admin. A missing profile is
// not an error: the first admin can still come from POST /setup.
func ensureAdmin(ctx context.Context, deps DBDeps, email string, logger *zap.Logger) error {
	if email == "" {
		return nil
	}
	promoted, err := userstore.New(deps.MongoDatabase).PromoteToAdmin(ctx, email)
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		logger.Warn("admin_email has no profile yet; skipping promotion", zap.String("email", email))
		return nil
	case err != nil:
		logger.Error("admin promotion failed", zap.String("email", email), zap.Error(err))
		return err
	case promoted:
		logger.Info("promoted user to admin", zap.String("email", email))
	}
	return nil
}
