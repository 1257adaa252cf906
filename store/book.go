package store

import (
	"context"
	"errors"

	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *DB) FindBooks(ctx context.Context, filter bson.M, page utils.Page) ([]models.Book, int64, error) {
	sort := bson.D{{Key: "title", Value: 1}, {Key: "_id", Value: 1}}
	return findPage[models.Book](ctx, db.Books(), filter, page, sort, nil)
}

func (db *DB) BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	var book models.Book
	err := db.Books().FindOne(ctx, bson.M{"_id": id}).Decode(&book)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (db *DB) InsertBook(ctx context.Context, book *models.Book) (primitive.ObjectID, error) {
	res, err := db.Books().InsertOne(ctx, book)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

// UpdateBook applies update and returns the book after the change, or nil
// when it does not exist.
func (db *DB) UpdateBook(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.Book, error) {
	var book models.Book
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := db.Books().FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&book)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// DeleteBook removes a book and returns what was deleted so the caller can
// clean up its cover object. Returns nil when no book matched.
func (db *DB) DeleteBook(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	var book models.Book
	err := db.Books().FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&book)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// BookStatsByCategory groups books by category, largest group first.
func (db *DB) BookStatsByCategory(ctx context.Context) ([]models.CategoryStat, error) {
	return aggregateAll[models.CategoryStat](ctx, db.Books(), bookStatsPipeline())
}

func bookStatsPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":           bson.M{"$ifNull": bson.A{"$category", ""}},
			"count":         bson.M{"$sum": 1},
			"available":     countIf(bson.M{"$eq": bson.A{"$available", true}}),
			"totalQuantity": bson.M{"$sum": "$quantity"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
}
