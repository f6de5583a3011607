// Package metricsstore computes the totals and breakdowns shown on the
// dashboard and reports. Every figure is taken under a visibility scope.
package metricsstore

import (
	"context"
	"sort"
	"time"

	"github.com/dalemusser/churchhub/internal/app/system/visibility"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Counts is the set of totals used by the dashboard.
type Counts struct {
	Users           int64 `json:"users"`
	Churches        int64 `json:"churches"`
	Invites         int64 `json:"invites"`
	PendingInvites  int64 `json:"pending_invites"`
	AcceptedInvites int64 `json:"accepted_invites"`
}

// FetchDashboardCounts returns the high-level counts used by the dashboard.
// Intentionally tolerant: on error it returns 0 for that counter.
func FetchDashboardCounts(ctx context.Context, db *mongo.Database, sc visibility.Scope) Counts {
	var out Counts
	count := func(coll string, base bson.M) int64 {
		n, err := db.Collection(coll).CountDocuments(ctx, sc.Filter(base))
		if err != nil {
			return 0
		}
		return n
	}
	out.Users = count("users", bson.M{})
	out.Churches = count("places", bson.M{})
	out.Invites = count("invites", bson.M{})
	out.PendingInvites = count("invites", bson.M{"accepted_at": nil})
	out.AcceptedInvites = count("invites", bson.M{"accepted_at": bson.M{"$ne": nil}})
	return out
}

// Bucket is one labelled count in a breakdown.
type Bucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// group runs pipeline (after the scope match) and reads {_id, n} rows.
func group(ctx context.Context, c *mongo.Collection, sc visibility.Scope, pipeline mongo.Pipeline) ([]Bucket, error) {
	full := append(mongo.Pipeline{{{Key: "$match", Value: sc.Filter(bson.M{})}}}, pipeline...)
	cur, err := c.Aggregate(ctx, full)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []Bucket{}
	for cur.Next(ctx) {
		var row struct {
			Key   *string `bson:"_id"`
			Count int64   `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		if row.Key == nil || *row.Key == "" {
			continue
		}
		out = append(out, Bucket{Key: *row.Key, Count: row.Count})
	}
	return out, cur.Err()
}

var countStage = bson.D{{Key: "$sum", Value: 1}}

// UsersByRole counts users per role they hold. A user holding several
// roles counts once under each; a legacy record counts under its single
// role. Sorted by count, highest first.
func UsersByRole(ctx context.Context, db *mongo.Database, sc visibility.Scope) ([]Bucket, error) {
	held := bson.M{"$cond": bson.A{
		bson.M{"$gt": bson.A{bson.M{"$size": bson.M{"$ifNull": bson.A{"$roles", bson.A{}}}}, 0}},
		"$roles",
		bson.A{"$role"},
	}}
	out, err := group(ctx, db.Collection("users"), sc, mongo.Pipeline{
		{{Key: "$project", Value: bson.M{"held": held}}},
		{{Key: "$unwind", Value: "$held"}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$held"}, {Key: "n", Value: countStage}}}},
	})
	sortByCount(out)
	return out, err
}

// ChurchesByKind counts places per kind, highest first.
func ChurchesByKind(ctx context.Context, db *mongo.Database, sc visibility.Scope) ([]Bucket, error) {
	out, err := group(ctx, db.Collection("places"), sc, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$kind"}, {Key: "n", Value: countStage}}}},
	})
	sortByCount(out)
	return out, err
}

// InvitesByMonth counts invites per creation month (YYYY-MM, UTC), newest
// month first.
func InvitesByMonth(ctx context.Context, db *mongo.Database, sc visibility.Scope) ([]Bucket, error) {
	out, err := group(ctx, db.Collection("invites"), sc, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.M{"$dateToString": bson.M{"format": "%Y-%m", "date": "$created_at"}}},
			{Key: "n", Value: countStage},
		}}},
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, err
}

func sortByCount(bs []Bucket) {
	sort.SliceStable(bs, func(i, j int) bool {
		if bs[i].Count != bs[j].Count {
			return bs[i].Count > bs[j].Count
		}
		return bs[i].Key < bs[j].Key
	})
}

// Activity is one recently created record.
type Activity struct {
	Kind      string    `json:"kind"` // user | church | invite
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

// Recent returns the newest records of the given kinds, newest first, at
// most limit in total.
func Recent(ctx context.Context, db *mongo.Database, sc visibility.Scope, limit int, kinds ...string) ([]Activity, error) {
	sources := map[string]struct {
		coll  string
		label string
	}{
		"user":   {"users", "display_name"},
		"church": {"places", "name"},
		"invite": {"invites", "email"},
	}
	out := []Activity{}
	for _, kind := range kinds {
		src, ok := sources[kind]
		if !ok {
			continue
		}
		cur, err := db.Collection(src.coll).Find(ctx, sc.Filter(bson.M{}), options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(int64(limit)).
			SetProjection(bson.M{src.label: 1, "email": 1, "created_at": 1}))
		if err != nil {
			return nil, err
		}
		var rows []bson.M
		err = cur.All(ctx, &rows)
		cur.Close(ctx)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			a := Activity{Kind: kind, ID: idString(row["_id"])}
			a.Label, _ = row[src.label].(string)
			if a.Label == "" {
				a.Label, _ = row["email"].(string)
			}
			if dt, ok := row["created_at"].(primitive.DateTime); ok {
				a.CreatedAt = dt.Time().UTC()
			}
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	}
	return ""
}
