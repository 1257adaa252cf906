package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Book struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title           string             `bson:"title" json:"title"`
	Author          string             `bson:"author" json:"author"`
	ISBN            string             `bson:"isbn,omitempty" json:"isbn,omitempty"`
	Available       bool               `bson:"available" json:"available"`
	Quantity        int                `bson:"quantity" json:"quantity"`
	Category        string             `bson:"category,omitempty" json:"category,omitempty"`
	PublicationYear int                `bson:"publicationYear,omitempty" json:"publicationYear,omitempty"`
	CoverKey        string             `bson:"coverKey,omitempty" json:"-"` // object key in S3
	HasCover        bool               `bson:"-" json:"hasCover"`
}

// CategoryStat is one row of the books-by-category report. Category is
// empty for books without one.
type CategoryStat struct {
	Category      string `bson:"_id" json:"category"`
	Count         int64  `bson:"count" json:"count"`
	Available     int64  `bson:"available" json:"available"`
	TotalQuantity int64  `bson:"totalQuantity" json:"totalQuantity"`
}
