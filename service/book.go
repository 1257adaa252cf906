package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/kevinaaaquil/library/common"
	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookQuery is the filter and search surface of GET /books.
var BookQuery = utils.QueryConfig{
	Filterable: []string{"category", "available"},
	Searchable: []string{"title", "author"},
}

const (
	coverPrefix      = "books/covers/"
	coverURLLifetime = 15 * time.Minute
)

var coverContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

type BookStore interface {
	FindBooks(ctx context.Context, filter bson.M, page utils.Page) ([]models.Book, int64, error)
	BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	InsertBook(ctx context.Context, book *models.Book) (primitive.ObjectID, error)
	UpdateBook(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.Book, error)
	DeleteBook(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	BookStatsByCategory(ctx context.Context) ([]models.CategoryStat, error)
}

// CoverStorage is the object store holding cover images.
type CoverStorage interface {
	Upload(ctx context.Context, prefix, originalFilename string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type MetadataFetcher interface {
	FetchByISBN(ctx context.Context, isbn string) (*BookMetadata, error)
}

type BookService struct {
	store    BookStore
	loans    ActiveLoanCounter
	covers   CoverStorage
	metadata MetadataFetcher
}

// BookOption configures optional collaborators of BookService.
type BookOption func(*BookService)

func WithCoverStorage(c CoverStorage) BookOption {
	return func(s *BookService) { s.covers = c }
}

func WithMetadataFetcher(m MetadataFetcher) BookOption {
	return func(s *BookService) { s.metadata = m }
}

func NewBookService(store BookStore, loans ActiveLoanCounter, opts ...BookOption) *BookService {
	s := &BookService{store: store, loans: loans}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateBookInput struct {
	Title           string `json:"title" validate:"required"`
	Author          string `json:"author" validate:"required"`
	ISBN            string `json:"isbn"`
	Available       *bool  `json:"available"`
	Quantity        *int   `json:"quantity" validate:"omitempty,min=0"`
	Category        string `json:"category"`
	PublicationYear int    `json:"publicationYear" validate:"omitempty,min=0"`
}

// UpdateBookInput holds a partial update; nil fields are left unchanged.
type UpdateBookInput struct {
	Title           *string `json:"title"`
	Author          *string `json:"author"`
	ISBN            *string `json:"isbn"`
	Available       *bool   `json:"available"`
	Quantity        *int    `json:"quantity"`
	Category        *string `json:"category"`
	PublicationYear *int    `json:"publicationYear"`
}

func decorate(b *models.Book) *models.Book {
	if b != nil {
		b.HasCover = b.CoverKey != ""
	}
	return b
}

func (s *BookService) List(ctx context.Context, params url.Values) (utils.Paginated[models.Book], error) {
	page := utils.ResolvePage(params.Get("page"), params.Get("limit"))
	books, total, err := s.store.FindBooks(ctx, BookQuery.Query(params), page)
	if err != nil {
		return utils.Paginated[models.Book]{}, common.FromStore(err, "book")
	}
	for i := range books {
		decorate(&books[i])
	}
	return utils.Paginate(books, total, page), nil
}

func (s *BookService) Get(ctx context.Context, idHex string) (*models.Book, error) {
	id, err := parseID("id", idHex)
	if err != nil {
		return nil, err
	}
	return s.byID(ctx, id)
}

func (s *BookService) byID(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	book, err := s.store.BookByID(ctx, id)
	if err != nil {
		return nil, common.FromStore(err, "book")
	}
	if book == nil {
		return nil, common.NotFound("book")
	}
	return decorate(book), nil
}

func (s *BookService) Create(ctx context.Context, in CreateBookInput) (*models.Book, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	book := &models.Book{
		Title:           in.Title,
		Author:          in.Author,
		ISBN:            normalizeISBN(in.ISBN),
		Available:       true,
		Quantity:        1,
		Category:        strings.TrimSpace(in.Category),
		PublicationYear: in.PublicationYear,
	}
	if in.Available != nil {
		book.Available = *in.Available
	}
	if in.Quantity != nil {
		book.Quantity = *in.Quantity
	}
	id, err := s.store.InsertBook(ctx, book)
	if err != nil {
		return nil, common.FromStore(err, "book")
	}
	book.ID = id
	return decorate(book), nil
}

func (s *BookService) Update(ctx context.Context, idHex string, in UpdateBookInput) (*models.Book, error) {
	id, err := parseID("id", idHex)
	if err != nil {
		return nil, err
	}
	set := bson.M{}
	unset := bson.M{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, common.Validation("title", "title cannot be empty")
		}
		set["title"] = title
	}
	if in.Author != nil {
		author := strings.TrimSpace(*in.Author)
		if author == "" {
			return nil, common.Validation("author", "author cannot be empty")
		}
		set["author"] = author
	}
	if in.ISBN != nil {
		setOrUnset(set, unset, "isbn", normalizeISBN(*in.ISBN))
	}
	if in.Available != nil {
		set["available"] = *in.Available
	}
	if in.Quantity != nil {
		if *in.Quantity < 0 {
			return nil, common.Validation("quantity", "quantity must be at least 0")
		}
		set["quantity"] = *in.Quantity
	}
	if in.Category != nil {
		setOrUnset(set, unset, "category", *in.Category)
	}
	if in.PublicationYear != nil {
		switch {
		case *in.PublicationYear < 0:
			return nil, common.Validation("publicationYear", "publicationYear must be at least 0")
		case *in.PublicationYear == 0:
			unset["publicationYear"] = ""
		default:
			set["publicationYear"] = *in.PublicationYear
		}
	}
	if len(set) == 0 && len(unset) == 0 {
		return s.byID(ctx, id)
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return s.apply(ctx, id, update)
}

func (s *BookService) apply(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.Book, error) {
	book, err := s.store.UpdateBook(ctx, id, update)
	if err != nil {
		return nil, common.FromStore(err, "book")
	}
	if book == nil {
		return nil, common.NotFound("book")
	}
	return decorate(book), nil
}

// Delete removes a book unless active loans still reference it. The cover
// object, if any, is removed on a best-effort basis.
func (s *BookService) Delete(ctx context.Context, idHex string) error {
	id, err := parseID("id", idHex)
	if err != nil {
		return err
	}
	if s.loans != nil {
		n, err := s.loans.CountActiveLoans(ctx, "bookId", id)
		if err != nil {
			return common.FromStore(err, "loan")
		}
		if n > 0 {
			return common.Validation("id", "book has active loans")
		}
	}
	book, err := s.store.DeleteBook(ctx, id)
	if err != nil {
		return common.FromStore(err, "book")
	}
	if book == nil {
		return common.NotFound("book")
	}
	s.removeCover(ctx, book.CoverKey)
	return nil
}

func (s *BookService) removeCover(ctx context.Context, key string) {
	if key == "" || s.covers == nil {
		return
	}
	if err := s.covers.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "cover cleanup failed", "key", key, "error", err)
	}
}

func (s *BookService) Stats(ctx context.Context) ([]models.CategoryStat, error) {
	rows, err := s.store.BookStatsByCategory(ctx)
	if err != nil {
		return nil, common.FromStore(err, "book")
	}
	if rows == nil {
		rows = []models.CategoryStat{}
	}
	return rows, nil
}

// SetCover uploads a cover image and points the book at it, replacing any
// previous cover.
func (s *BookService) SetCover(ctx context.Context, idHex, filename, contentType string, body io.Reader) (*models.Book, error) {
	if s.covers == nil {
		return nil, common.Unavailable("cover storage not configured")
	}
	if !coverContentTypes[contentType] {
		return nil, common.Validation("file", "cover must be a jpeg, png or webp image")
	}
	book, err := s.Get(ctx, idHex)
	if err != nil {
		return nil, err
	}
	key, err := s.covers.Upload(ctx, coverPrefix, filename, body, contentType)
	if err != nil {
		return nil, common.Internal(err)
	}
	updated, err := s.store.UpdateBook(ctx, book.ID, bson.M{"$set": bson.M{"coverKey": key}})
	if err != nil || updated == nil {
		s.removeCover(ctx, key)
		if err != nil {
			return nil, common.FromStore(err, "book")
		}
		return nil, common.NotFound("book")
	}
	s.removeCover(ctx, book.CoverKey)
	return decorate(updated), nil
}

// CoverURL returns a short-lived download URL for the book's cover.
func (s *BookService) CoverURL(ctx context.Context, idHex string) (string, error) {
	if s.covers == nil {
		return "", common.Unavailable("cover storage not configured")
	}
	book, err := s.Get(ctx, idHex)
	if err != nil {
		return "", err
	}
	if book.CoverKey == "" {
		return "", common.NotFound("cover")
	}
	u, err := s.covers.PresignedGetURL(ctx, book.CoverKey, coverURLLifetime)
	if err != nil {
		return "", common.Internal(err)
	}
	return u, nil
}

// RefreshMetadata fills the book from the catalogue. isbn overrides the
// stored ISBN when given.
func (s *BookService) RefreshMetadata(ctx context.Context, idHex, isbn string) (*models.Book, error) {
	if s.metadata == nil {
		return nil, common.Unavailable("metadata lookup not configured")
	}
	book, err := s.Get(ctx, idHex)
	if err != nil {
		return nil, err
	}
	isbn = normalizeISBN(isbn)
	if isbn == "" {
		isbn = book.ISBN
	}
	if isbn == "" {
		return nil, common.Validation("isbn", "no ISBN provided and book has no ISBN")
	}
	meta, err := s.metadata.FetchByISBN(ctx, isbn)
	if errors.Is(err, ErrNoMetadata) {
		return nil, common.NotFound("metadata")
	}
	if err != nil {
		slog.WarnContext(ctx, "metadata lookup failed", "isbn", isbn, "error", err)
		return nil, common.Unavailable("metadata lookup failed")
	}
	set := bson.M{"isbn": isbn}
	if meta.ISBN != "" {
		set["isbn"] = meta.ISBN
	}
	if meta.Title != "" {
		set["title"] = meta.Title
	}
	if meta.Author != "" {
		set["author"] = meta.Author
	}
	if meta.Category != "" {
		set["category"] = meta.Category
	}
	if meta.PublicationYear > 0 {
		set["publicationYear"] = meta.PublicationYear
	}
	return s.apply(ctx, book.ID, bson.M{"$set": set})
}
