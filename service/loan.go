package service

import (
	"context"
	"log/slog"
	"maps"
	"net/url"
	"time"

	"github.com/kevinaaaquil/library/common"
	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LoanQuery is the filter surface of GET /loans. Loans have no free-text
// search.
var LoanQuery = utils.QueryConfig{
	Filterable: []string{"returned", "userId", "bookId", "isOverdue"},
}

// loanRefFields hold identifiers and are parsed before querying.
var loanRefFields = []string{"userId", "bookId"}

type LoanStore interface {
	FindLoans(ctx context.Context, filter bson.M, page utils.Page) ([]models.LoanDetail, int64, error)
	FindOverdueLoans(ctx context.Context, now time.Time, page utils.Page) ([]models.LoanDetail, int64, error)
	LoanDetailByID(ctx context.Context, id primitive.ObjectID) (*models.LoanDetail, error)
	LoanByID(ctx context.Context, id primitive.ObjectID) (*models.Loan, error)
	InsertLoan(ctx context.Context, loan *models.Loan) (primitive.ObjectID, error)
	UpdateLoan(ctx context.Context, filter, update bson.M) (bool, error)
	DeleteLoan(ctx context.Context, id primitive.ObjectID) (bool, error)
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	LoanSummary(ctx context.Context, now time.Time) (models.LoanSummary, error)
}

type MemberLookup interface {
	MemberByID(ctx context.Context, id primitive.ObjectID) (*models.Member, error)
}

type BookLookup interface {
	BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
}

type LoanService struct {
	store     LoanStore
	members   MemberLookup
	books     BookLookup
	reminders ReminderSender
	now       func() time.Time
}

type LoanOption func(*LoanService)

func WithReminderSender(r ReminderSender) LoanOption {
	return func(s *LoanService) { s.reminders = r }
}

// WithClock replaces time.Now, which decides due-date comparisons.
func WithClock(now func() time.Time) LoanOption {
	return func(s *LoanService) { s.now = now }
}

func NewLoanService(store LoanStore, members MemberLookup, books BookLookup, opts ...LoanOption) *LoanService {
	s := &LoanService{store: store, members: members, books: books, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateLoanInput struct {
	UserID     string     `json:"userId" validate:"required"`
	BookID     string     `json:"bookId" validate:"required"`
	BorrowDate *time.Time `json:"borrowDate"`
	DueDate    *time.Time `json:"dueDate" validate:"required"`
}

type UpdateLoanInput struct {
	DueDate    *time.Time `json:"dueDate"`
	ReturnDate *time.Time `json:"returnDate"`
	Returned   *bool      `json:"returned"`
	IsOverdue  *bool      `json:"isOverdue"`
}

// identifierFilters converts identifier filters from hex strings. A value
// that is not a valid identifier is a cast error, not an empty result.
func identifierFilters(filter bson.M, fields ...string) error {
	for _, field := range fields {
		v, ok := filter[field]
		if !ok {
			continue
		}
		hex, _ := v.(string)
		id, err := parseID(field, hex)
		if err != nil {
			return err
		}
		filter[field] = id
	}
	return nil
}

func (s *LoanService) List(ctx context.Context, params url.Values) (utils.Paginated[models.LoanDetail], error) {
	page := utils.ResolvePage(params.Get("page"), params.Get("limit"))
	filter := LoanQuery.Query(params)
	if err := identifierFilters(filter, loanRefFields...); err != nil {
		return utils.Paginated[models.LoanDetail]{}, err
	}
	loans, total, err := s.store.FindLoans(ctx, filter, page)
	if err != nil {
		return utils.Paginated[models.LoanDetail]{}, common.FromStore(err, "loan")
	}
	return utils.Paginate(loans, total, page), nil
}

// ByUser lists one member's loans; other loan filters still apply.
func (s *LoanService) ByUser(ctx context.Context, userID string, params url.Values) (utils.Paginated[models.LoanDetail], error) {
	params = maps.Clone(params)
	if params == nil {
		params = url.Values{}
	}
	params.Set("userId", userID)
	if _, err := parseID("userId", userID); err != nil {
		return utils.Paginated[models.LoanDetail]{}, err
	}
	return s.List(ctx, params)
}

// Overdue pages through loans that are out and either flagged overdue or
// past their due date, earliest due first.
func (s *LoanService) Overdue(ctx context.Context, params url.Values) (utils.Paginated[models.LoanDetail], error) {
	page := utils.ResolvePage(params.Get("page"), params.Get("limit"))
	loans, total, err := s.store.FindOverdueLoans(ctx, s.now().UTC(), page)
	if err != nil {
		return utils.Paginated[models.LoanDetail]{}, common.FromStore(err, "loan")
	}
	return utils.Paginate(loans, total, page), nil
}

func (s *LoanService) Summary(ctx context.Context) (models.LoanSummary, error) {
	summary, err := s.store.LoanSummary(ctx, s.now().UTC())
	if err != nil {
		return models.LoanSummary{}, common.FromStore(err, "loan")
	}
	return summary, nil
}

// RefreshOverdue stores isOverdue=true on every active loan past due and
// returns how many were flagged.
func (s *LoanService) RefreshOverdue(ctx context.Context) (int64, error) {
	n, err := s.store.MarkOverdue(ctx, s.now().UTC())
	if err != nil {
		return 0, common.FromStore(err, "loan")
	}
	return n, nil
}

func (s *LoanService) Get(ctx context.Context, idHex string) (*models.LoanDetail, error) {
	id, err := parseID("id", idHex)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, id)
}

func (s *LoanService) detail(ctx context.Context, id primitive.ObjectID) (*models.LoanDetail, error) {
	loan, err := s.store.LoanDetailByID(ctx, id)
	if err != nil {
		return nil, common.FromStore(err, "loan")
	}
	if loan == nil {
		return nil, common.NotFound("loan")
	}
	return loan, nil
}

// Create opens a loan. Both the member and the book must exist.
func (s *LoanService) Create(ctx context.Context, in CreateLoanInput) (*models.LoanDetail, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	userID, err := parseID("userId", in.UserID)
	if err != nil {
		return nil, err
	}
	bookID, err := parseID("bookId", in.BookID)
	if err != nil {
		return nil, err
	}
	member, err := s.members.MemberByID(ctx, userID)
	if err != nil {
		return nil, common.FromStore(err, "member")
	}
	if member == nil {
		return nil, common.NotFound("member")
	}
	book, err := s.books.BookByID(ctx, bookID)
	if err != nil {
		return nil, common.FromStore(err, "book")
	}
	if book == nil {
		return nil, common.NotFound("book")
	}
	borrow := s.now().UTC()
	if in.BorrowDate != nil {
		borrow = in.BorrowDate.UTC()
	}
	due := in.DueDate.UTC()
	if !due.After(borrow) {
		return nil, common.Validation("dueDate", "dueDate must be after borrowDate")
	}
	loan := &models.Loan{
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: borrow,
		DueDate:    due,
	}
	id, err := s.store.InsertLoan(ctx, loan)
	if err != nil {
		return nil, common.FromStore(err, "loan")
	}
	return &models.LoanDetail{
		ID:         id,
		User:       &models.MemberRef{ID: member.ID, Name: member.Name, Email: member.Email, Role: member.Role},
		Book:       &models.BookRef{ID: book.ID, Title: book.Title, Author: book.Author, Category: book.Category},
		BorrowDate: loan.BorrowDate,
		DueDate:    loan.DueDate,
	}, nil
}

// Update changes due date, overdue flag or return state. A loan can move
// from active to returned but never back.
func (s *LoanService) Update(ctx context.Context, idHex string, in UpdateLoanInput) (*models.LoanDetail, error) {
	id, err := parseID("id", idHex)
	if err != nil {
		return nil, err
	}
	loan, err := s.store.LoanByID(ctx, id)
	if err != nil {
		return nil, common.FromStore(err, "loan")
	}
	if loan == nil {
		return nil, common.NotFound("loan")
	}
	if in.Returned != nil && !*in.Returned && loan.Returned {
		return nil, common.Validation("returned", "a returned loan cannot be reopened")
	}
	set := bson.M{}
	if in.DueDate != nil {
		due := in.DueDate.UTC()
		if !due.After(loan.BorrowDate) {
			return nil, common.Validation("dueDate", "dueDate must be after borrowDate")
		}
		set["dueDate"] = due
	}
	returning := (in.Returned != nil && *in.Returned) || in.ReturnDate != nil
	if returning && (!loan.Returned || in.ReturnDate != nil) {
		returnDate := s.now().UTC()
		if in.ReturnDate != nil {
			returnDate = in.ReturnDate.UTC()
		}
		if returnDate.Before(loan.BorrowDate) {
			return nil, common.Validation("returnDate", "returnDate cannot be before borrowDate")
		}
		set["returned"] = true
		set["returnDate"] = returnDate
	}
	if in.IsOverdue != nil {
		set["isOverdue"] = *in.IsOverdue
	}
	if len(set) > 0 {
		matched, err := s.store.UpdateLoan(ctx, bson.M{"_id": id}, bson.M{"$set": set})
		if err != nil {
			return nil, common.FromStore(err, "loan")
		}
		if !matched {
			return nil, common.NotFound("loan")
		}
	}
	return s.detail(ctx, id)
}

// Return marks an active loan returned now.
func (s *LoanService) Return(ctx context.Context, idHex string) (*models.LoanDetail, error) {
	id, err := parseID("id", idHex)
	if err != nil {
		return nil, err
	}
	loan, err := s.store.LoanByID(ctx, id)
	if err != nil {
		return nil, common.FromStore(err, "loan")
	}
	if loan == nil {
		return nil, common.NotFound("loan")
	}
	alreadyReturned := common.Validation("returned", "loan already returned")
	if loan.Returned {
		return nil, alreadyReturned
	}
	update := bson.M{"$set": bson.M{"returned": true, "returnDate": s.now().UTC()}}
	matched, err := s.store.UpdateLoan(ctx, bson.M{"_id": id, "returned": false}, update)
	if err != nil {
		return nil, common.FromStore(err, "loan")
	}
	if !matched {
		return nil, alreadyReturned
	}
	return s.detail(ctx, id)
}

func (s *LoanService) Delete(ctx context.Context, idHex string) error {
	id, err := parseID("id", idHex)
	if err != nil {
		return err
	}
	deleted, err := s.store.DeleteLoan(ctx, id)
	if err != nil {
		return common.FromStore(err, "loan")
	}
	if !deleted {
		return common.NotFound("loan")
	}
	return nil
}

// Remind e-mails the borrower of an active loan.
func (s *LoanService) Remind(ctx context.Context, idHex string) error {
	if s.reminders == nil {
		return common.Unavailable("mail not configured")
	}
	loan, err := s.Get(ctx, idHex)
	if err != nil {
		return err
	}
	if loan.Returned {
		return common.Validation("returned", "loan already returned")
	}
	if loan.User == nil {
		return common.Validation("userId", "borrower no longer exists")
	}
	title := "your borrowed book"
	if loan.Book != nil {
		title = loan.Book.Title
	}
	err = s.reminders.SendReminder(ctx, Reminder{
		To:        loan.User.Email,
		Name:      loan.User.Name,
		BookTitle: title,
		DueDate:   loan.DueDate,
	})
	if err != nil {
		slog.WarnContext(ctx, "reminder failed", "loan", idHex, "error", err)
		return common.Unavailable("failed to send reminder")
	}
	return nil
}
