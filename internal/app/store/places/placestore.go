// internal/app/store/places/placestore.go
package placestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/churchhub/internal/app/system/normalize"
	"github.com/dalemusser/churchhub/internal/app/system/paging"
	"github.com/dalemusser/churchhub/internal/app/system/search"
	"github.com/dalemusser/churchhub/internal/app/system/visibility"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound  = errors.New("place not found")
	ErrNameEmpty = errors.New("place name is required")
	ErrBadKind   = errors.New(`kind must be "igreja"|"regional"|"nucleo"`)
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("places")}
}

func validKind(k string) bool {
	switch k {
	case models.PlaceKindChurch, models.PlaceKindRegional, models.PlaceKindNucleo:
		return true
	}
	return false
}

// Create inserts a place. An empty kind defaults to a church.
func (s *Store) Create(ctx context.Context, p models.Place) (models.Place, error) {
	p.Name = normalize.Name(p.Name)
	if p.Name == "" {
		return models.Place{}, ErrNameEmpty
	}
	if p.Kind == "" {
		p.Kind = models.PlaceKindChurch
	}
	if !validKind(p.Kind) {
		return models.Place{}, ErrBadKind
	}
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.NameCI = text.Fold(p.Name)
	p.UF = normalize.UF(p.UF)
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Place{}, err
	}
	return p, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Place, error) {
	var p models.Place
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Place{}, ErrNotFound
		}
		return models.Place{}, err
	}
	return p, nil
}

// Update holds the editable fields. Nil pointers are left unchanged.
type Update struct {
	Name     *string
	Kind     *string
	Address  *string
	UF       *string
	Location *models.LatLng
	ParentID *primitive.ObjectID
}

// Update modifies a place's mutable fields and refreshes UpdatedAt.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd Update) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != nil {
		name := normalize.Name(*upd.Name)
		if name == "" {
			return ErrNameEmpty
		}
		set["name"] = name
		set["name_ci"] = text.Fold(name)
	}
	if upd.Kind != nil {
		if !validKind(*upd.Kind) {
			return ErrBadKind
		}
		set["kind"] = *upd.Kind
	}
	if upd.Address != nil {
		set["address"] = normalize.Name(*upd.Address)
	}
	if upd.UF != nil {
		set["uf"] = normalize.UF(*upd.UF)
	}
	if upd.Location != nil {
		set["location"] = *upd.Location
	}
	if upd.ParentID != nil {
		set["church_id"] = *upd.ParentID
	}
	return s.set(ctx, id, set)
}

// SetRegion assigns or clears (nil) a place's region.
func (s *Store) SetRegion(ctx context.Context, id primitive.ObjectID, regionID *primitive.ObjectID) error {
	if regionID == nil {
		res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
			"$unset": bson.M{"region_id": ""},
			"$set":   bson.M{"updated_at": time.Now().UTC()},
		})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		return nil
	}
	return s.set(ctx, id, bson.M{"region_id": *regionID, "updated_at": time.Now().UTC()})
}

func (s *Store) set(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a place. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListOptions filters a place listing. Zero values mean "any".
type ListOptions struct {
	Kind     string
	Search   string // prefix match on folded name
	UF       string
	RegionID *primitive.ObjectID
	Located  bool // only places with coordinates
}

func (opt ListOptions) filter() bson.M {
	f := bson.M{}
	if opt.Kind != "" {
		f["kind"] = opt.Kind
	}
	search.NameFilter(f, opt.Search, "name_ci")
	if opt.UF != "" {
		f["uf"] = normalize.UF(opt.UF)
	}
	if opt.RegionID != nil {
		f["region_id"] = *opt.RegionID
	}
	if opt.Located {
		f["location"] = bson.M{"$exists": true, "$ne": nil}
	}
	return f
}

// List returns one keyset page of places visible under sc, sorted by name,
// plus whether another page follows.
func (s *Store) List(ctx context.Context, sc visibility.Scope, opt ListOptions, ks paging.Keyset) ([]models.Place, bool, error) {
	filter := sc.Filter(opt.filter())
	if w := ks.Window("name_ci"); w != nil {
		filter = bson.M{"$and": bson.A{filter, w}}
	}
	find := options.Find()
	ks.ApplyToFind(find, "name_ci")

	cur, err := s.c.Find(ctx, filter, find)
	if err != nil {
		return nil, false, err
	}
	defer cur.Close(ctx)
	out := []models.Place{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, false, err
	}
	hasNext := paging.TrimPage(&out, ks.Limit)
	return out, hasNext, nil
}

// All returns every place visible under sc matching opt, sorted by name.
// Used for exports and the map, which are not paged.
func (s *Store) All(ctx context.Context, sc visibility.Scope, opt ListOptions) ([]models.Place, error) {
	cur, err := s.c.Find(ctx, sc.Filter(opt.filter()), options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Place{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns how many places are visible under sc and match opt.
func (s *Store) Count(ctx context.Context, sc visibility.Scope, opt ListOptions) (int64, error) {
	return s.c.CountDocuments(ctx, sc.Filter(opt.filter()))
}

// CountByRegion counts places assigned to regionID.
func (s *Store) CountByRegion(ctx context.Context, regionID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"region_id": regionID})
}
