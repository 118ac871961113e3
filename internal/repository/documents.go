package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/RishiKendai/paperlit/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const documentsCollection = "documents"

type MongoDocumentStore struct {
	mongoRepo *MongoRepository
}

func NewMongoDocumentStore(mongoRepo *MongoRepository) *MongoDocumentStore {
	return &MongoDocumentStore{
		mongoRepo: mongoRepo,
	}
}

// EnsureIndexes creates the owner/upload-time index used by ListByUser.
func (s *MongoDocumentStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.mongoRepo.GetCollection(documentsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "uploadedAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create document index: %w", err)
	}
	return nil
}

func (s *MongoDocumentStore) Insert(ctx context.Context, doc *models.Document) error {
	if err := s.mongoRepo.InsertOne(ctx, documentsCollection, doc); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (s *MongoDocumentStore) Update(ctx context.Context, doc *models.Document) error {
	filter := bson.M{"_id": doc.ID, "userId": doc.UserID}

	result, err := s.mongoRepo.ReplaceOne(ctx, documentsCollection, filter, doc)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoDocumentStore) Delete(ctx context.Context, userID, documentID string) error {
	filter := bson.M{"_id": documentID, "userId": userID}

	result, err := s.mongoRepo.DeleteOne(ctx, documentsCollection, filter)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoDocumentStore) Get(ctx context.Context, userID, documentID string) (*models.Document, error) {
	filter := bson.M{"_id": documentID, "userId": userID}

	var doc models.Document
	err := s.mongoRepo.FindOne(ctx, documentsCollection, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document: %w", err)
	}
	return &doc, nil
}

func (s *MongoDocumentStore) ListByUser(ctx context.Context, userID string) ([]*models.Document, error) {
	filter := bson.M{"userId": userID}
	opts := options.Find().SetSort(bson.D{{Key: "uploadedAt", Value: -1}})

	cursor, err := s.mongoRepo.FindMany(ctx, documentsCollection, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find documents: %w", err)
	}
	defer cursor.Close(ctx)

	docs := []*models.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return docs, nil
}
