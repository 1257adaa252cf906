package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Loan is the stored form: member and book are referenced by ID only.
type Loan struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	BookID     primitive.ObjectID `bson:"bookId" json:"bookId"`
	BorrowDate time.Time          `bson:"borrowDate" json:"borrowDate"`
	DueDate    time.Time          `bson:"dueDate" json:"dueDate"`
	ReturnDate *time.Time         `bson:"returnDate,omitempty" json:"returnDate,omitempty"`
	Returned   bool               `bson:"returned" json:"returned"`
	IsOverdue  bool               `bson:"isOverdue" json:"isOverdue"`
}

// MemberRef is the slice of a member resolved into a loan read.
type MemberRef struct {
	ID    primitive.ObjectID `bson:"_id" json:"id"`
	Name  string             `bson:"name" json:"name"`
	Email string             `bson:"email" json:"email"`
	Role  string             `bson:"role" json:"role"`
}

// BookRef is the slice of a book resolved into a loan read.
type BookRef struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Title    string             `bson:"title" json:"title"`
	Author   string             `bson:"author" json:"author"`
	Category string             `bson:"category,omitempty" json:"category,omitempty"`
}

// LoanDetail is a loan with userId/bookId resolved. A nil ref means the
// referenced document no longer exists.
type LoanDetail struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	User       *MemberRef         `bson:"userId,omitempty" json:"userId"`
	Book       *BookRef           `bson:"bookId,omitempty" json:"bookId"`
	BorrowDate time.Time          `bson:"borrowDate" json:"borrowDate"`
	DueDate    time.Time          `bson:"dueDate" json:"dueDate"`
	ReturnDate *time.Time         `bson:"returnDate,omitempty" json:"returnDate,omitempty"`
	Returned   bool               `bson:"returned" json:"returned"`
	IsOverdue  bool               `bson:"isOverdue" json:"isOverdue"`
}

type LoanSummary struct {
	Total    int64 `bson:"total" json:"total"`
	Active   int64 `bson:"active" json:"active"`
	Returned int64 `bson:"returned" json:"returned"`
	Overdue  int64 `bson:"overdue" json:"overdue"`
}
