// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/churchhub/internal/app/system/notify"
	"github.com/dalemusser/churchhub/internal/app/system/workers"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// Redis is optional. With it, invite notifications go through an asynq
// queue drained by Worker; without it they are delivered by Inline.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Redis  *redis.Client // nil when redis_addr is blank
	Queue  *notify.Queue
	Worker *notify.Worker
	Inline *notify.Inline

	// Jobs runs periodic maintenance; nil when no job is enabled.
	Jobs *workers.Scheduler
}

// Notifier returns the notifier handlers should hand invite notices to.
func (d DBDeps) Notifier() notify.Notifier {
	switch {
	case d.Queue != nil:
		return d.Queue
	case d.Inline != nil:
		return d.Inline
	default:
		return notify.Discard{}
	}
}
