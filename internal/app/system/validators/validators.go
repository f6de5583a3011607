// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Allowed values, mirrored from the stores.
var (
	roleValues    = bson.A{"admin", "pastor_conselho", "pastor_regional", "pastor_local", "secretaria"}
	statusValues  = bson.A{"active", "inactive", "pending"}
	placeKinds    = bson.A{"igreja", "regional", "nucleo"}
	roomTypes     = bson.A{"direct", "group", "broadcast", "hierarchy"}
	messageTypes  = bson.A{"text", "location", "system"}
	nonBlank      = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}
	optionalRefID = bson.M{"bsonType": bson.A{"objectId", "null"}}
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll, log); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema, log); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				log.Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	// Directory
	ensure("users", usersSchema())
	ensure("credentials", credentialsSchema())
	ensure("regions", regionsSchema())
	ensure("places", placesSchema())
	ensure("invites", invitesSchema())

	// Messaging
	ensure("chat_rooms", chatRoomsSchema())
	ensure("chat_messages", chatMessagesSchema())

	// Written by the audit logger only; no validator.
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string, log *zap.Logger) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		log.Debug("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			log.Debug("collection exists", zap.String("collection", name))
			return false, nil
		}
		log.Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	log.Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *zap.Logger) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	log.Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "status"},
			"properties": bson.M{
				"email":        nonBlank,
				"display_name": bson.M{"bsonType": "string"},
				"role":         bson.M{"bsonType": "string"},
				"roles": bson.M{
					"bsonType": bson.A{"array", "null"},
					"items":    bson.M{"enum": roleValues},
				},
				"status":       bson.M{"enum": statusValues},
				"region_id":    optionalRefID,
				"church_id":    optionalRefID,
				"secretary_of": optionalRefID,
			},
		},
	}
}

func credentialsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "password_hash"},
			"properties": bson.M{
				"email":                nonBlank,
				"password_hash":        nonBlank,
				"must_change_password": bson.M{"bsonType": "bool"},
			},
		},
	}
}

func regionsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "is_active"},
			"properties": bson.M{
				"name":      nonBlank,
				"name_ci":   nonBlank,
				"is_active": bson.M{"bsonType": "bool"},
			},
		},
	}
}

func placesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"kind", "name", "name_ci"},
			"properties": bson.M{
				"kind":    bson.M{"enum": placeKinds},
				"name":    nonBlank,
				"name_ci": nonBlank,
				"uf":      bson.M{"bsonType": "string", "maxLength": 2},
				"location": bson.M{
					"bsonType": bson.A{"object", "null"},
					"required": bson.A{"lat", "lng"},
					"properties": bson.M{
						"lat": bson.M{"bsonType": "number", "minimum": -90, "maximum": 90},
						"lng": bson.M{"bsonType": "number", "minimum": -180, "maximum": 180},
					},
				},
				"region_id": optionalRefID,
			},
		},
	}
}

func invitesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "created_at"},
			"properties": bson.M{
				"email": nonBlank,
				"roles": bson.M{
					"bsonType": bson.A{"array", "null"},
					"items":    bson.M{"enum": roleValues},
				},
				"created_at":  bson.M{"bsonType": "date"},
				"accepted_at": bson.M{"bsonType": bson.A{"date", "null"}},
				"expires_at":  bson.M{"bsonType": bson.A{"date", "null"}},
				"token":       bson.M{"bsonType": "string"},
				"region_id":   optionalRefID,
			},
		},
	}
}

func chatRoomsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"type", "participants"},
			"properties": bson.M{
				"type": bson.M{"enum": roomTypes},
				"participants": bson.M{
					"bsonType": "array",
					"minItems": 1,
					"items":    bson.M{"bsonType": "string"},
				},
			},
		},
	}
}

func chatMessagesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"room_id", "sender_id", "type"},
			"properties": bson.M{
				"room_id":   bson.M{"bsonType": "objectId"},
				"sender_id": bson.M{"bsonType": "string"},
				"type":      bson.M{"enum": messageTypes},
			},
		},
	}
}
