package userstore

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dalemusser/churchhub/internal/app/system/auth"
	"github.com/dalemusser/churchhub/internal/app/system/normalize"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/app/system/search"
	"github.com/dalemusser/churchhub/internal/app/system/status"
	"github.com/dalemusser/churchhub/internal/app/system/visibility"
	"github.com/dalemusser/churchhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultDisplayName is used when a first-login identity carries neither a
// display name nor an email.
const DefaultDisplayName = "Usuário"

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	// ErrNotFound is returned when no profile matches.
	ErrNotFound  = errors.New("user not found")
	errBadStatus = errors.New(`status must be "active"|"inactive"|"pending"`)
	errNoID      = errors.New("user id is required")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// ResolveProfile returns the profile keyed by id.ID, creating a default
// profile on first sight. An existing profile is returned exactly as stored.
//
// The insert is an upsert with $setOnInsert, so concurrent first logins for
// the same identity converge on one document.
func (s *Store) ResolveProfile(ctx context.Context, id auth.Identity) (*models.User, error) {
	if id.ID == "" {
		return nil, errNoID
	}

	var u models.User
	err := s.c.FindOne(ctx, bson.M{"_id": id.ID}).Decode(&u)
	if err == nil {
		return &u, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	name := normalize.Name(id.DisplayName)
	if name == "" {
		name = normalize.Email(id.Email)
	}
	if name == "" {
		name = DefaultDisplayName
	}
	now := time.Now()
	insert := bson.M{
		"email":           normalize.Email(id.Email),
		"display_name":    name,
		"display_name_ci": text.Fold(name),
		"roles":           []string{string(roles.Default)},
		"role":            string(roles.Default),
		"status":          status.Active,
		"created_at":      now,
		"updated_at":      now,
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err = s.c.FindOneAndUpdate(ctx, bson.M{"_id": id.ID}, bson.M{"$setOnInsert": insert}, opts).Decode(&u)
	if err != nil && wafflemongo.IsDup(err) {
		// Lost the upsert race; the winner's document is there now.
		err = s.c.FindOne(ctx, bson.M{"_id": id.ID}).Decode(&u)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID loads a profile by identity id.
func (s *Store) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case-insensitive email. Returns ErrNotFound if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// EmailExists reports whether any profile uses email.
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"email": normalize.Email(email)}, options.Count().SetLimit(1))
	return n > 0, err
}

// Create inserts a profile whose ID was issued by the identity provider.
// Roles are written together with the legacy mirror.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	if u.ID == "" {
		return models.User{}, errNoID
	}
	rs, err := roles.Normalize(u.Roles)
	if err != nil {
		return models.User{}, err
	}
	u.Roles = roles.Strings(rs)
	u.Role = roles.Mirror(rs)
	u.Email = normalize.Email(u.Email)
	u.DisplayName = normalize.Name(u.DisplayName)
	u.DisplayNameCI = text.Fold(u.DisplayName)
	u.Status = normalize.Status(u.Status)
	if !status.IsValid(u.Status) {
		return models.User{}, errBadStatus
	}

	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// Delete removes a profile. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ProfileUpdate holds the self-editable fields. Empty strings clear a field
// except DisplayName, which is left unchanged when empty.
type ProfileUpdate struct {
	DisplayName string
	FullName    string
	Nickname    string
	Phone       string
	BirthDate   string
}

// UpdateProfile applies a self-edit.
func (s *Store) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) error {
	set := bson.M{
		"full_name":  normalize.Name(upd.FullName),
		"nickname":   normalize.Name(upd.Nickname),
		"phone":      normalize.Phone(upd.Phone),
		"birth_date": upd.BirthDate,
		"updated_at": time.Now(),
	}
	if name := normalize.Name(upd.DisplayName); name != "" {
		set["display_name"] = name
		set["display_name_ci"] = text.Fold(name)
	}
	return s.update(ctx, id, set)
}

// SetRoles replaces a user's roles and rewrites the legacy mirror. Dropping
// secretaria also drops the secretary_of link it grants.
func (s *Store) SetRoles(ctx context.Context, id string, rs []roles.Role) error {
	if len(rs) == 0 {
		return roles.ErrNoRoles
	}
	upd := bson.M{"$set": bson.M{
		"roles":      roles.Strings(rs),
		"role":       roles.Mirror(rs),
		"updated_at": time.Now(),
	}}
	if !slices.Contains(rs, roles.Secretaria) {
		upd["$unset"] = bson.M{"secretary_of": ""}
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, upd)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRegion assigns or clears (nil) a user's region.
func (s *Store) SetRegion(ctx context.Context, id string, regionID *primitive.ObjectID) error {
	return s.setRef(ctx, id, "region_id", regionID)
}

// SetChurch assigns or clears (nil) the church a user pastors.
func (s *Store) SetChurch(ctx context.Context, id string, churchID *primitive.ObjectID) error {
	return s.setRef(ctx, id, "church_id", churchID)
}

// SetSecretaryOf assigns or clears (nil) the church a user is secretary of.
func (s *Store) SetSecretaryOf(ctx context.Context, id string, churchID *primitive.ObjectID) error {
	return s.setRef(ctx, id, "secretary_of", churchID)
}

// SetStatus changes a user's account status.
func (s *Store) SetStatus(ctx context.Context, id, st string) error {
	st = normalize.Status(st)
	if !status.IsValid(st) {
		return errBadStatus
	}
	return s.update(ctx, id, bson.M{"status": st, "updated_at": time.Now()})
}

func (s *Store) setRef(ctx context.Context, id, field string, ref *primitive.ObjectID) error {
	if ref == nil {
		res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
			"$unset": bson.M{field: ""},
			"$set":   bson.M{"updated_at": time.Now()},
		})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		return nil
	}
	return s.update(ctx, id, bson.M{field: *ref, "updated_at": time.Now()})
}

func (s *Store) update(ctx context.Context, id string, set bson.M) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOptions filters a user listing. Zero values mean "any".
type ListOptions struct {
	Search   string // prefix match on folded display name, or on email when it contains @
	Role     roles.Role
	Status   string
	ChurchID *primitive.ObjectID
	IDs      []string
	Skip     int64
	Limit    int64
}

// List returns users visible under sc, sorted by display name.
func (s *Store) List(ctx context.Context, sc visibility.Scope, opt ListOptions) ([]models.User, error) {
	find := options.Find().SetSort(bson.D{{Key: "display_name_ci", Value: 1}, {Key: "_id", Value: 1}})
	if opt.Skip > 0 {
		find.SetSkip(opt.Skip)
	}
	if opt.Limit > 0 {
		find.SetLimit(opt.Limit)
	}
	cur, err := s.c.Find(ctx, sc.Filter(listFilter(opt)), find)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns how many users are visible under sc and match opt.
func (s *Store) Count(ctx context.Context, sc visibility.Scope, opt ListOptions) (int64, error) {
	return s.c.CountDocuments(ctx, sc.Filter(listFilter(opt)))
}

// ListByChurch returns the users whose church_id points at churchID.
func (s *Store) ListByChurch(ctx context.Context, churchID primitive.ObjectID) ([]models.User, error) {
	return s.List(ctx, visibility.Global(), ListOptions{ChurchID: &churchID})
}

// ListByChurches returns the users whose church_id is one of ids, sorted
// by display name.
func (s *Store) ListByChurches(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"church_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "display_name_ci", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Names maps user ids to display names. Users without a display name map
// to their email; unknown ids are absent.
func (s *Store) Names(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"display_name": 1, "email": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var u struct {
			ID          string `bson:"_id"`
			DisplayName string `bson:"display_name"`
			Email       string `bson:"email"`
		}
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out[u.ID] = u.DisplayName
		if u.DisplayName == "" {
			out[u.ID] = u.Email
		}
	}
	return out, cur.Err()
}

// CountByRegion counts users assigned to regionID.
func (s *Store) CountByRegion(ctx context.Context, regionID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"region_id": regionID})
}

// ClearChurch detaches every user from churchID, both as pastor and as secretary.
func (s *Store) ClearChurch(ctx context.Context, churchID primitive.ObjectID) error {
	now := time.Now()
	if _, err := s.c.UpdateMany(ctx, bson.M{"church_id": churchID},
		bson.M{"$unset": bson.M{"church_id": ""}, "$set": bson.M{"updated_at": now}}); err != nil {
		return err
	}
	_, err := s.c.UpdateMany(ctx, bson.M{"secretary_of": churchID},
		bson.M{"$unset": bson.M{"secretary_of": ""}, "$set": bson.M{"updated_at": now}})
	return err
}

// HasAdmin reports whether any user holds the admin role, in either the
// roles array or the legacy field.
func (s *Store) HasAdmin(ctx context.Context) (bool, error) {
	n, err := s.c.CountDocuments(ctx, roleFilter(roles.Admin), options.Count().SetLimit(1))
	return n > 0, err
}

// PromoteToAdmin adds admin to the roles of the user with email, keeping
// existing roles. Legacy single-role records are migrated to the array.
// Returns ErrNotFound when no such user exists.
func (s *Store) PromoteToAdmin(ctx context.Context, email string) (promoted bool, err error) {
	u, err := s.GetByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	subj := roles.FromUser(u)
	if roles.HasRole(subj, roles.Admin) {
		return false, nil
	}
	rs := append([]roles.Role{roles.Admin}, roles.UserRoles(subj)...)
	if err := s.SetRoles(ctx, u.ID, rs); err != nil {
		return false, err
	}
	return true, nil
}

func listFilter(opt ListOptions) bson.M {
	f := bson.M{}
	search.Filter(f, opt.Search, "display_name_ci")
	if opt.Role != "" {
		for k, v := range roleFilter(opt.Role) {
			f[k] = v
		}
	}
	if opt.Status != "" {
		f["status"] = normalize.Status(opt.Status)
	}
	if opt.ChurchID != nil {
		f["church_id"] = *opt.ChurchID
	}
	if len(opt.IDs) > 0 {
		f["_id"] = bson.M{"$in": opt.IDs}
	}
	return f
}

// roleFilter matches users holding r, honoring legacy records that carry
// only the scalar role.
func roleFilter(r roles.Role) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"roles": string(r)},
		bson.M{"roles": bson.M{"$exists": false}, "role": string(r)},
		bson.M{"roles": bson.A{}, "role": string(r)},
	}}
}
