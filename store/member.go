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

// memberReadProjection keeps the password hash out of every read.
var memberReadProjection = bson.M{"password": 0}

func (db *DB) FindMembers(ctx context.Context, filter bson.M, page utils.Page) ([]models.Member, int64, error) {
	sort := bson.D{{Key: "registrationDate", Value: -1}, {Key: "_id", Value: -1}}
	return findPage[models.Member](ctx, db.Members(), filter, page, sort, memberReadProjection)
}

func (db *DB) MemberByID(ctx context.Context, id primitive.ObjectID) (*models.Member, error) {
	var m models.Member
	opts := options.FindOne().SetProjection(memberReadProjection)
	err := db.Members().FindOne(ctx, bson.M{"_id": id}, opts).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MemberByEmail returns the member including the password hash, for
// credential checks only.
func (db *DB) MemberByEmail(ctx context.Context, email string) (*models.Member, error) {
	var m models.Member
	err := db.Members().FindOne(ctx, bson.M{"email": email}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (db *DB) InsertMember(ctx context.Context, m *models.Member) (primitive.ObjectID, error) {
	res, err := db.Members().InsertOne(ctx, m)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

// UpdateMember applies update and returns the member after the change, or
// nil when no member matches filter.
func (db *DB) UpdateMember(ctx context.Context, filter, update bson.M) (*models.Member, error) {
	var m models.Member
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(memberReadProjection)
	err := db.Members().FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (db *DB) DeleteMember(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := db.Members().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// MemberStatsByRole counts members and active members per role.
func (db *DB) MemberStatsByRole(ctx context.Context) ([]models.RoleStat, error) {
	return aggregateAll[models.RoleStat](ctx, db.Members(), memberStatsPipeline())
}

func memberStatsPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":    "$role",
			"count":  bson.M{"$sum": 1},
			"active": countIf(bson.M{"$eq": bson.A{"$isActive", true}}),
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
}
