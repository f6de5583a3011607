// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown drains notification delivery, then closes Redis and MongoDB.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Jobs != nil {
		deps.Jobs.Stop()
	}
	if deps.Worker != nil {
		logger.Info("stopping notification worker")
		deps.Worker.Shutdown()
	}
	if deps.Queue != nil {
		if err := deps.Queue.Close(); err != nil {
			logger.Warn("notification queue close failed", zap.Error(err))
		}
	}
	if deps.Inline != nil {
		if err := deps.Inline.Close(ctx); err != nil {
			logger.Warn("in-flight notifications abandoned", zap.Error(err))
		}
	}
	if deps.Redis != nil {
		if err := deps.Redis.Close(); err != nil {
			logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
