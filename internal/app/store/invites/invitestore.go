// internal/app/store/invites/invitestore.go
package invitestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/churchhub/internal/app/system/normalize"
	"github.com/dalemusser/churchhub/internal/app/system/visibility"
	"github.com/dalemusser/churchhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound        = errors.New("invite not found")
	ErrAlreadyAccepted = errors.New("invite already accepted")
	ErrDuplicateToken  = errors.New("invite token already in use")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("invites")}
}

// Create inserts an invite. CreatedAt is kept when set so a pre-accepted
// invite can carry accepted_at == created_at.
func (s *Store) Create(ctx context.Context, inv models.Invite) (models.Invite, error) {
	inv.ID = primitive.NewObjectID()
	inv.Email = normalize.Email(inv.Email)
	inv.Phone = normalize.Phone(inv.Phone)
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	if len(inv.Roles) > 0 && inv.Role == "" {
		inv.Role = inv.Roles[0]
	}
	if _, err := s.c.InsertOne(ctx, inv); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Invite{}, ErrDuplicateToken
		}
		return models.Invite{}, err
	}
	return inv, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Invite, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByToken loads a link invite by its token.
func (s *Store) GetByToken(ctx context.Context, token string) (models.Invite, error) {
	if token == "" {
		return models.Invite{}, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"token": token})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.Invite, error) {
	var inv models.Invite
	if err := s.c.FindOne(ctx, filter).Decode(&inv); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Invite{}, ErrNotFound
		}
		return models.Invite{}, err
	}
	return inv, nil
}

// MarkAccepted records acceptance by uid. It only succeeds while the invite
// is pending, so acceptance happens at most once.
func (s *Store) MarkAccepted(ctx context.Context, id primitive.ObjectID, uid string, at time.Time) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "accepted_at": nil},
		bson.M{"$set": bson.M{"accepted_at": at, "accepted_by_uid": uid}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyAccepted
	}
	return nil
}

// MarkAcceptedByEmail accepts every pending invite for email. Returns how
// many were accepted.
func (s *Store) MarkAcceptedByEmail(ctx context.Context, email, uid string, at time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"email": normalize.Email(email), "accepted_at": nil},
		bson.M{"$set": bson.M{"accepted_at": at, "accepted_by_uid": uid}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// HasPending reports whether email has an unexpired pending invite.
func (s *Store) HasPending(ctx context.Context, email string, now time.Time) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{
		"email":       normalize.Email(email),
		"accepted_at": nil,
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$exists": false}},
			bson.M{"expires_at": bson.M{"$gt": now}},
		},
	}, options.Count().SetLimit(1))
	return n > 0, err
}

// RenewToken replaces a pending invite's token and expiry and resets the
// notification flags.
func (s *Store) RenewToken(ctx context.Context, id primitive.ObjectID, token string, expiresAt time.Time) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "accepted_at": nil},
		bson.M{"$set": bson.M{
			"token":         token,
			"expires_at":    expiresAt,
			"email_sent":    false,
			"whatsapp_sent": false,
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyAccepted
	}
	return nil
}

// MarkNotified records which channels delivered a notification.
func (s *Store) MarkNotified(ctx context.Context, id primitive.ObjectID, email, whatsapp bool) error {
	set := bson.M{}
	if email {
		set["email_sent"] = true
	}
	if whatsapp {
		set["whatsapp_sent"] = true
	}
	if len(set) == 0 {
		return nil
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

// Revoke deletes a pending invite. Accepted invites are history and stay.
func (s *Store) Revoke(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "accepted_at": nil})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyAccepted
	}
	return nil
}

// Delete removes an invite regardless of state.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// ListOptions filters an invite listing.
type ListOptions struct {
	PendingOnly bool
	Skip        int64
	Limit       int64
}

func (opt ListOptions) filter() bson.M {
	f := bson.M{}
	if opt.PendingOnly {
		f["accepted_at"] = nil
	}
	return f
}

// List returns invites visible under sc, newest first.
func (s *Store) List(ctx context.Context, sc visibility.Scope, opt ListOptions) ([]models.Invite, error) {
	find := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if opt.Skip > 0 {
		find.SetSkip(opt.Skip)
	}
	if opt.Limit > 0 {
		find.SetLimit(opt.Limit)
	}
	cur, err := s.c.Find(ctx, sc.Filter(opt.filter()), find)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Invite{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns how many invites are visible under sc and match opt.
func (s *Store) Count(ctx context.Context, sc visibility.Scope, opt ListOptions) (int64, error) {
	return s.c.CountDocuments(ctx, sc.Filter(opt.filter()))
}
