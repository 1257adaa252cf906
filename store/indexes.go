package store

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func indexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		membersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "role", Value: 1}, {Key: "isActive", Value: 1}}},
			{Keys: bson.D{{Key: "studentId", Value: 1}}, Options: options.Index().SetSparse(true)},
			{Keys: bson.D{{Key: "registrationDate", Value: -1}}},
		},
		booksCollection: {
			// Books without an ISBN omit the field, so sparse keeps them out of the unique index.
			{Keys: bson.D{{Key: "isbn", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "available", Value: 1}}},
			{Keys: bson.D{{Key: "title", Value: 1}}},
			{Keys: bson.D{{Key: "author", Value: 1}}},
		},
		loansCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "returned", Value: 1}}},
			{Keys: bson.D{{Key: "bookId", Value: 1}, {Key: "returned", Value: 1}}},
			{Keys: bson.D{{Key: "returned", Value: 1}, {Key: "isOverdue", Value: 1}, {Key: "dueDate", Value: 1}}},
			{Keys: bson.D{{Key: "borrowDate", Value: -1}}},
		},
	}
}

// EnsureIndexes creates the indexes every query path relies on, including
// the unique constraints on member email and book ISBN.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	for coll, idx := range indexModels() {
		names, err := db.Database.Collection(coll).Indexes().CreateMany(ctx, idx)
		if err != nil {
			return fmt.Errorf("indexes on %s: %w", coll, err)
		}
		slog.Info("indexes ensured", "collection", coll, "indexes", names)
	}
	return nil
}
