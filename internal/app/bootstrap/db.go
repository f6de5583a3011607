// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/churchhub/internal/app/store/audit"
	invitestore "github.com/dalemusser/churchhub/internal/app/store/invites"
	"github.com/dalemusser/churchhub/internal/app/system/indexes"
	"github.com/dalemusser/churchhub/internal/app/system/mailer"
	"github.com/dalemusser/churchhub/internal/app/system/notify"
	"github.com/dalemusser/churchhub/internal/app/system/tasks"
	"github.com/dalemusser/churchhub/internal/app/system/validators"
	"github.com/dalemusser/churchhub/internal/app/system/whatsapp"
	"github.com/dalemusser/churchhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// inlineDeliveryTimeout bounds one in-process notification.
const inlineDeliveryTimeout = 30 * time.Second

// ConnectDB connects MongoDB and, when configured, Redis. The notification
// path is chosen here because it depends on whether Redis is available.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}
	deps.Jobs = newJobs(appCfg, deps.MongoDatabase, logger)
	dispatcher := newDispatcher(appCfg, deps.MongoDatabase, logger)

	if appCfg.RedisAddr == "" {
		logger.Info("redis_addr not set; invite notifications are sent in-process")
		deps.Inline = notify.NewInline(dispatcher, inlineDeliveryTimeout)
		return deps, nil
	}

	deps.Redis = redis.NewClient(&redis.Options{
		Addr:     appCfg.RedisAddr,
		Password: appCfg.RedisPassword,
		DB:       appCfg.RedisDB,
	})
	if err := deps.Redis.Ping(pingCtx).Err(); err != nil {
		// The queue reconnects on its own; a cold Redis only delays delivery.
		logger.Warn("redis ping failed; queue will retry", zap.String("addr", appCfg.RedisAddr), zap.Error(err))
	}
	opt := asynq.RedisClientOpt{
		Addr:     appCfg.RedisAddr,
		Password: appCfg.RedisPassword,
		DB:       appCfg.RedisDB,
	}
	deps.Queue = notify.NewQueue(opt)
	deps.Worker = notify.NewWorker(opt, dispatcher, appCfg.WorkerConcurrency)
	logger.Info("invite notifications use the redis queue", zap.String("addr", appCfg.RedisAddr))
	return deps, nil
}

// newDispatcher wires the delivery channels. Email falls back to logging
// when SendGrid is not configured; WhatsApp stays disabled without an
// instance.
func newDispatcher(appCfg AppConfig, db *mongo.Database, logger *zap.Logger) *notify.Dispatcher {
	wa := whatsapp.New(whatsapp.Config{
		BaseURL:     appCfg.ZAPIBaseURL,
		Instance:    appCfg.ZAPIInstance,
		Token:       appCfg.ZAPIToken,
		ClientToken: appCfg.ZAPIClientToken,
	}, logger)
	if !wa.Enabled() {
		logger.Info("whatsapp channel disabled")
	}
	return &notify.Dispatcher{
		Mail:     mailer.New(appCfg.SendGridAPIKey, appCfg.MailFrom, appCfg.MailFromName, logger),
		WhatsApp: wa,
		Marks:    invitestore.New(db),
		Log:      logger,
	}
}

// newJobs schedules the enabled maintenance jobs.
func newJobs(appCfg AppConfig, db *mongo.Database, logger *zap.Logger) *workers.Scheduler {
	var jobs []tasks.Job
	if appCfg.AuditRetention > 0 {
		jobs = append(jobs, tasks.AuditRetentionJob(audit.New(db), logger, appCfg.AuditRetention))
	}
	if len(jobs) == 0 {
		return nil
	}
	return workers.NewScheduler(logger, time.Minute, jobs...)
}

// EnsureSchema creates the collections with their validators, then the
// indexes every store relies on.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := validators.EnsureAll(ctx, deps.MongoDatabase, logger); err != nil {
		logger.Error("ensure validators failed", zap.Error(err))
		return err
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	logger.Info("indexes ensured")
	return nil
}
