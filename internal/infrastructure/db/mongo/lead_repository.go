package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pipelinecrm/leadhub/internal/core/domain"
)

const collectionLeads = "leads"

type LeadRepository struct {
	col *mongo.Collection
}

func NewLeadRepository(db *mongo.Database) *LeadRepository {
	return &LeadRepository{col: db.Collection(collectionLeads)}
}

// Create inserts a new lead document and sets its ID.
func (r *LeadRepository) Create(ctx context.Context, l *domain.Lead) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.InsertOne(ctx, l)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		l.ID = oid.Hex()
	}
	return nil
}

// List returns a page of leads inside scope, newest first, and the total count.
func (r *LeadRepository) List(ctx context.Context, scope domain.Scope, page, limit int) ([]domain.Lead, int64, error) {
	filter, err := scopeFilter(scope)
	if err != nil {
		return nil, 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find leads: %w", err)
	}
	defer cur.Close(ctx)

	leads := make([]domain.Lead, 0, limit)
	if err := cur.All(ctx, &leads); err != nil {
		return nil, 0, fmt.Errorf("decode leads: %w", err)
	}
	return leads, total, nil
}

// scopeFilter translates a Scope into a query. A scope that names no known
// field is refused rather than run unfiltered.
func scopeFilter(scope domain.Scope) (bson.M, error) {
	if scope.Unrestricted {
		return bson.M{}, nil
	}
	switch scope.Field {
	case domain.ScopeFieldOwner:
		return bson.M{"owner": scope.Value}, nil
	case domain.ScopeFieldDepartment:
		return bson.M{"department": scope.Value}, nil
	}
	return nil, domain.ErrForbidden
}

// EnsureIndexes creates the indexes used by scoped listing.
func (r *LeadRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "department", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "email", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
