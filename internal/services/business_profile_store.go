package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vedant7151/Invoice-Generator/internal/db"
	"github.com/vedant7151/Invoice-Generator/internal/models"
)

// IBusinessProfileStore is the persistence boundary for business profiles.
// Lookups that match nothing return mongo.ErrNoDocuments.
type IBusinessProfileStore interface {
	Insert(ctx context.Context, p *models.BusinessProfile) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.BusinessProfile, error)
	FindByOwner(ctx context.Context, owner string) (*models.BusinessProfile, error)
	Replace(ctx context.Context, p *models.BusinessProfile) error
}

type mongoBusinessProfileStore struct {
	coll *mongo.Collection
}

func NewBusinessProfileStore(database *mongo.Database) IBusinessProfileStore {
	return &mongoBusinessProfileStore{coll: database.Collection(db.BusinessProfilesCollection)}
}

func (s *mongoBusinessProfileStore) Insert(ctx context.Context, p *models.BusinessProfile) error {
	p.GenIDIfEmpty()
	if _, err := s.coll.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("insert business profile for %s: %w", p.Owner, err)
	}
	return nil
}

func (s *mongoBusinessProfileStore) findOne(ctx context.Context, filter bson.M) (*models.BusinessProfile, error) {
	var p models.BusinessProfile
	if err := s.coll.FindOne(ctx, filter).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("find business profile: %w", err)
	}
	return &p, nil
}

func (s *mongoBusinessProfileStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.BusinessProfile, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *mongoBusinessProfileStore) FindByOwner(ctx context.Context, owner string) (*models.BusinessProfile, error) {
	return s.findOne(ctx, bson.M{"owner": owner})
}

func (s *mongoBusinessProfileStore) Replace(ctx context.Context, p *models.BusinessProfile) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": p.ID, "owner": p.Owner}, p)
	if err != nil {
		return fmt.Errorf("replace business profile %s: %w", p.ID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
