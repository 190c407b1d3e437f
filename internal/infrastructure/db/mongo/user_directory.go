package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

const usersCollection = "users"

// UserDirectory implements ports.UserDirectory on the users collection.
type UserDirectory struct {
	coll *mongo.Collection
}

func NewUserDirectory(db *mongo.Database) *UserDirectory {
	return &UserDirectory{coll: db.Collection(usersCollection)}
}

type mongoIdentity struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	SubjectID  string             `bson:"subject_id"`
	Email      string             `bson:"email"`
	Role       string             `bson:"role"`
	Department string             `bson:"department,omitempty"`
	FirstName  string             `bson:"first_name,omitempty"`
	LastName   string             `bson:"last_name,omitempty"`
	LastLogin  time.Time          `bson:"last_login,omitempty"`
	IsActive   bool               `bson:"is_active"`
	CreatedAt  time.Time          `bson:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at"`
}

func (m mongoIdentity) toDomain() domain.Identity {
	return domain.Identity{
		ID:         m.ID.Hex(),
		SubjectID:  m.SubjectID,
		Email:      m.Email,
		Role:       domain.Role(m.Role),
		Department: m.Department,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		LastLogin:  m.LastLogin.UTC(),
		IsActive:   m.IsActive,
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

func (r *UserDirectory) FindBySubject(ctx context.Context, subjectID string) (domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoIdentity
	if err := r.coll.FindOne(ctx, bson.M{"subject_id": subjectID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Identity{}, domain.ErrNotFound
		}
		return domain.Identity{}, unavailable("find identity", err)
	}
	return doc.toDomain(), nil
}

func (r *UserDirectory) TouchLogin(ctx context.Context, subjectID string, at time.Time) (domain.Identity, error) {
	return r.findAndSet(ctx, "touch login", subjectID, bson.M{"last_login": at.UTC()})
}

func (r *UserDirectory) UpdateRole(ctx context.Context, subjectID string, role domain.Role, at time.Time) (domain.Identity, error) {
	return r.findAndSet(ctx, "update role", subjectID, bson.M{"role": string(role), "updated_at": at.UTC()})
}

func (r *UserDirectory) findAndSet(ctx context.Context, op, subjectID string, set bson.M) (domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc mongoIdentity
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"subject_id": subjectID}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Identity{}, domain.ErrNotFound
		}
		return domain.Identity{}, unavailable(op, err)
	}
	return doc.toDomain(), nil
}

// InsertOrGet upserts with $setOnInsert keyed by subject_id, so a concurrent
// first login either inserts or matches the winner's document. When two
// upserts collide on the unique index the loser gets E11000; the stored row
// is then re-read. If it still cannot be found the conflict was on email.
func (r *UserDirectory) InsertOrGet(ctx context.Context, seed domain.Identity) (domain.Identity, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	onInsert := bson.M{
		"email":      domain.NormalizeEmail(seed.Email),
		"role":       string(seed.Role),
		"is_active":  seed.IsActive,
		"created_at": seed.CreatedAt.UTC(),
		"updated_at": seed.UpdatedAt.UTC(),
	}
	if !seed.LastLogin.IsZero() {
		onInsert["last_login"] = seed.LastLogin.UTC()
	}
	if seed.Department != "" {
		onInsert["department"] = seed.Department
	}
	if seed.FirstName != "" {
		onInsert["first_name"] = seed.FirstName
	}
	if seed.LastName != "" {
		onInsert["last_name"] = seed.LastName
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"subject_id": seed.SubjectID},
		bson.M{"$setOnInsert": onInsert},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return domain.Identity{}, false, unavailable("upsert identity", err)
		}
		existing, findErr := r.FindBySubject(ctx, seed.SubjectID)
		if errors.Is(findErr, domain.ErrNotFound) {
			return domain.Identity{}, false, fmt.Errorf("upsert identity: %w: email %s", domain.ErrIdentityConflict, seed.Email)
		}
		if findErr != nil {
			return domain.Identity{}, false, findErr
		}
		return existing, false, nil
	}

	if res.UpsertedID == nil {
		existing, err := r.FindBySubject(ctx, seed.SubjectID)
		if err != nil {
			return domain.Identity{}, false, err
		}
		return existing, false, nil
	}

	created := seed
	created.Email = domain.NormalizeEmail(seed.Email)
	if oid, ok := res.UpsertedID.(primitive.ObjectID); ok {
		created.ID = oid.Hex()
	}
	return created, true, nil
}

// EnsureIndexes creates the unique subject and email indexes.
func (r *UserDirectory) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "subject_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrDirectoryUnavailable, err)
}
