package store

import (
	"context"
	"errors"
	"time"

	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	loanSortRecent  = bson.D{{Key: "borrowDate", Value: -1}, {Key: "_id", Value: -1}}
	loanSortDueDate = bson.D{{Key: "dueDate", Value: 1}, {Key: "_id", Value: 1}}
)

// OverdueFilter matches loans that are still out and either flagged overdue
// or past their due date at now.
func OverdueFilter(now time.Time) bson.M {
	return bson.M{
		"returned": false,
		"$or": bson.A{
			bson.M{"isOverdue": true},
			bson.M{"dueDate": bson.M{"$lt": now}},
		},
	}
}

// lookupRef replaces the identifier in field with a projection of the
// referenced document. The field is removed when the reference dangles.
func lookupRef(field, from string, project bson.M) []bson.D {
	return []bson.D{
		{{Key: "$lookup", Value: bson.M{
			"from": from,
			"let":  bson.M{"ref": "$" + field},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$_id", "$$ref"}}}},
				bson.M{"$project": project},
			},
			"as": field,
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$" + field, "preserveNullAndEmptyArrays": true}}},
	}
}

func loanDetailStages() []bson.D {
	stages := lookupRef("userId", membersCollection, bson.M{"name": 1, "email": 1, "role": 1})
	return append(stages, lookupRef("bookId", booksCollection, bson.M{"title": 1, "author": 1, "category": 1})...)
}

func loanPagePipeline(filter bson.M, page utils.Page, sort bson.D) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$sort", Value: sort}},
		{{Key: "$skip", Value: page.Offset}},
		{{Key: "$limit", Value: page.Limit}},
	}
	return append(pipeline, loanDetailStages()...)
}

// FindLoans returns one page of loans, most recent first, with member and
// book resolved.
func (db *DB) FindLoans(ctx context.Context, filter bson.M, page utils.Page) ([]models.LoanDetail, int64, error) {
	return db.findLoans(ctx, filter, page, loanSortRecent)
}

// FindOverdueLoans pages through OverdueFilter(now), earliest due first.
func (db *DB) FindOverdueLoans(ctx context.Context, now time.Time, page utils.Page) ([]models.LoanDetail, int64, error) {
	return db.findLoans(ctx, OverdueFilter(now), page, loanSortDueDate)
}

// findLoans cuts the page before the lookups so only returned loans are joined.
func (db *DB) findLoans(ctx context.Context, filter bson.M, page utils.Page, sort bson.D) ([]models.LoanDetail, int64, error) {
	total, err := db.Loans().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	loans, err := aggregateAll[models.LoanDetail](ctx, db.Loans(), loanPagePipeline(filter, page, sort))
	if err != nil {
		return nil, 0, err
	}
	return loans, total, nil
}

func (db *DB) LoanDetailByID(ctx context.Context, id primitive.ObjectID) (*models.LoanDetail, error) {
	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.M{"_id": id}}}}
	pipeline = append(pipeline, loanDetailStages()...)
	loans, err := aggregateAll[models.LoanDetail](ctx, db.Loans(), pipeline)
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, nil
	}
	return &loans[0], nil
}

func (db *DB) LoanByID(ctx context.Context, id primitive.ObjectID) (*models.Loan, error) {
	var loan models.Loan
	err := db.Loans().FindOne(ctx, bson.M{"_id": id}).Decode(&loan)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (db *DB) InsertLoan(ctx context.Context, loan *models.Loan) (primitive.ObjectID, error) {
	res, err := db.Loans().InsertOne(ctx, loan)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

// UpdateLoan applies update to the loan matching filter. It reports false
// when nothing matched.
func (db *DB) UpdateLoan(ctx context.Context, filter, update bson.M) (bool, error) {
	res, err := db.Loans().UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (db *DB) DeleteLoan(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := db.Loans().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// CountActiveLoans counts unreturned loans whose field (userId or bookId)
// references id.
func (db *DB) CountActiveLoans(ctx context.Context, field string, id primitive.ObjectID) (int64, error) {
	return db.Loans().CountDocuments(ctx, bson.M{field: id, "returned": false}, options.Count().SetLimit(1))
}

// MarkOverdue flags every active loan past its due date. It returns the
// number of loans newly flagged.
func (db *DB) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{
		"returned":  false,
		"isOverdue": bson.M{"$ne": true},
		"dueDate":   bson.M{"$lt": now},
	}
	res, err := db.Loans().UpdateMany(ctx, filter, bson.M{"$set": bson.M{"isOverdue": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// LoanSummary counts loans by state in a single grouping pass.
func (db *DB) LoanSummary(ctx context.Context, now time.Time) (models.LoanSummary, error) {
	rows, err := aggregateAll[models.LoanSummary](ctx, db.Loans(), loanSummaryPipeline(now))
	if err != nil || len(rows) == 0 {
		return models.LoanSummary{}, err
	}
	return rows[0], nil
}

func loanSummaryPipeline(now time.Time) mongo.Pipeline {
	returned := bson.M{"$eq": bson.A{"$returned", true}}
	notReturned := bson.M{"$ne": bson.A{"$returned", true}}
	overdue := bson.M{"$and": bson.A{
		notReturned,
		bson.M{"$or": bson.A{
			bson.M{"$eq": bson.A{"$isOverdue", true}},
			bson.M{"$lt": bson.A{"$dueDate", now}},
		}},
	}}
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":      nil,
			"total":    bson.M{"$sum": 1},
			"returned": countIf(returned),
			"active":   countIf(notReturned),
			"overdue":  countIf(overdue),
		}}},
	}
}
