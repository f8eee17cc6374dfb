package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	webster "github.com/babymilooo/webster-backend"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// userDocument matches the fields of existing Webster user documents.
// createdAt is new; older documents fall back to the ObjectID timestamp.
type userDocument struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty"`
	UserName              string             `bson:"userName"`
	Email                 string             `bson:"email"`
	EmailVerified         bool               `bson:"emailVerified"`
	PasswordHash          string             `bson:"passwordHash,omitempty"`
	Role                  string             `bson:"role"`
	ProfilePicture        string             `bson:"profilePicture,omitempty"`
	IsRegisteredViaGoogle bool               `bson:"isRegisteredViaGoogle"`
	CreatedAt             time.Time          `bson:"createdAt,omitempty"`
}

func (d userDocument) identity() webster.Identity {
	created := d.CreatedAt
	if created.IsZero() {
		created = d.ID.Timestamp()
	}
	return webster.Identity{
		ID:                  d.ID.Hex(),
		Email:               d.Email,
		UserName:            d.UserName,
		PasswordHash:        d.PasswordHash,
		EmailVerified:       d.EmailVerified,
		Role:                d.Role,
		ProfilePicture:      d.ProfilePicture,
		RegisteredViaGoogle: d.IsRegisteredViaGoogle,
		CreatedAt:           created.UTC(),
	}
}

// FindByID returns the user with the hex ObjectID id. A malformed id is
// a miss.
func (m *Mongo) FindByID(ctx context.Context, id string) (webster.Identity, error) {
	const op = "storage/mongo/FindByID"

	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return webster.Identity{}, fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}
	return m.findOne(ctx, op, bson.D{{Key: "_id", Value: oid}})
}

func (m *Mongo) FindByEmail(ctx context.Context, email string) (webster.Identity, error) {
	const op = "storage/mongo/FindByEmail"
	return m.findOne(ctx, op, bson.D{{Key: "email", Value: email}})
}

func (m *Mongo) Create(ctx context.Context, identity webster.Identity) (webster.Identity, error) {
	const op = "storage/mongo/Create"

	// MongoDB stores milliseconds.
	created := identity.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	doc := userDocument{
		UserName:              identity.UserName,
		Email:                 identity.Email,
		EmailVerified:         identity.EmailVerified,
		PasswordHash:          identity.PasswordHash,
		Role:                  identity.Role,
		ProfilePicture:        identity.ProfilePicture,
		IsRegisteredViaGoogle: identity.RegisteredViaGoogle,
		CreatedAt:             created.UTC().Truncate(time.Millisecond),
	}
	if identity.ID != "" {
		oid, err := primitive.ObjectIDFromHex(identity.ID)
		if err != nil {
			return webster.Identity{}, fmt.Errorf("%s: %w: id must be an ObjectID", op, webster.ErrInvalidInput)
		}
		doc.ID = oid
	}

	res, err := m.users.InsertOne(ctx, doc)
	if err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return webster.Identity{}, fmt.Errorf("%s: %w", op, webster.ErrAccountExists)
		}
		return webster.Identity{}, fmt.Errorf("%s: insert: %w", op, err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return webster.Identity{}, fmt.Errorf("%s: inserted id type %T", op, res.InsertedID)
	}
	doc.ID = oid
	return doc.identity(), nil
}

func (m *Mongo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	const op = "storage/mongo/UpdatePasswordHash"
	return m.updateByID(ctx, op, id, bson.D{{Key: "passwordHash", Value: hash}})
}

func (m *Mongo) SwapPasswordHash(ctx context.Context, id, current, next string) error {
	const op = "storage/mongo/SwapPasswordHash"

	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}

	res, err := m.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}, {Key: "passwordHash", Value: current}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "passwordHash", Value: next}}}},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := m.users.CountDocuments(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}
	return fmt.Errorf("%s: %w", op, webster.ErrStaleWrite)
}

func (m *Mongo) MarkEmailVerified(ctx context.Context, id string) error {
	const op = "storage/mongo/MarkEmailVerified"
	return m.updateByID(ctx, op, id, bson.D{{Key: "emailVerified", Value: true}})
}

func (m *Mongo) UpdateProfile(ctx context.Context, id string, p webster.Profile) (webster.Identity, error) {
	const op = "storage/mongo/UpdateProfile"

	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return webster.Identity{}, fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}

	var doc userDocument
	err = m.users.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "userName", Value: p.UserName},
			{Key: "email", Value: p.Email},
			{Key: "emailVerified", Value: p.EmailVerified},
		}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		switch {
		case errors.Is(err, mongodriver.ErrNoDocuments):
			return webster.Identity{}, fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
		case mongodriver.IsDuplicateKeyError(err):
			return webster.Identity{}, fmt.Errorf("%s: %w", op, webster.ErrAccountExists)
		}
		return webster.Identity{}, fmt.Errorf("%s: %w", op, err)
	}
	return doc.identity(), nil
}

func (m *Mongo) Delete(ctx context.Context, id string) error {
	const op = "storage/mongo/Delete"

	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}

	res, err := m.users.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}
	return nil
}

func (m *Mongo) findOne(ctx context.Context, op string, filter bson.D) (webster.Identity, error) {
	var doc userDocument
	if err := m.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return webster.Identity{}, fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
		}
		return webster.Identity{}, fmt.Errorf("%s: %w", op, err)
	}
	return doc.identity(), nil
}

func (m *Mongo) updateByID(ctx context.Context, op, id string, set bson.D) error {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}

	res, err := m.users.UpdateByID(ctx, oid, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}
	return nil
}
