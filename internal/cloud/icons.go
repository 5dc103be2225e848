// Package cloud looks up named icons in the shared record store.
package cloud

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"beacon/internal/constants"
	pkgerrors "beacon/pkg/errors"
)

// Icon is a named icon record. Either Data holds the image or URL points at it.
type Icon struct {
	Name        string    `bson:"name" json:"name"`
	Data        []byte    `bson:"data,omitempty" json:"-"`
	URL         string    `bson:"url,omitempty" json:"url,omitempty"`
	ContentType string    `bson:"content_type,omitempty" json:"content_type,omitempty"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

type IconStore interface {
	QueryIcon(ctx context.Context, name string) (*Icon, error)
	UpsertIcon(ctx context.Context, icon Icon) error
}

type MongoIconStore struct {
	collection *mongo.Collection
}

func NewMongoIconStore(db *mongo.Database, collection string) *MongoIconStore {
	if collection == "" {
		collection = constants.DefaultIconCollection
	}
	return &MongoIconStore{collection: db.Collection(collection)}
}

func (s *MongoIconStore) QueryIcon(ctx context.Context, name string) (*Icon, error) {
	var icon Icon
	err := s.collection.FindOne(ctx, bson.M{"name": name}, options.FindOne()).Decode(&icon)
	if err == mongo.ErrNoDocuments {
		return nil, pkgerrors.ErrNotFound.WithMessage(fmt.Sprintf("icon %q not found", name))
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb query failed: %w", err)
	}
	return &icon, nil
}

func (s *MongoIconStore) UpsertIcon(ctx context.Context, icon Icon) error {
	if icon.Name == "" {
		return pkgerrors.ErrValidation.WithMessage("icon name is required")
	}
	if len(icon.Data) == 0 && icon.URL == "" {
		return pkgerrors.ErrValidation.WithMessage("icon needs data or url")
	}
	if icon.UpdatedAt.IsZero() {
		icon.UpdatedAt = time.Now().UTC()
	}
	_, err := s.collection.ReplaceOne(ctx, bson.M{"name": icon.Name}, icon, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert icon: %w", err)
	}
	return nil
}
