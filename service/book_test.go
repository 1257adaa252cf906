package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kevinaaaquil/library/common"
	"github.com/kevinaaaquil/library/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeCovers struct {
	uploaded map[string]string
	deleted  []string
	n        int
}

func newFakeCovers() *fakeCovers {
	return &fakeCovers{uploaded: map[string]string{}}
}

func (c *fakeCovers) Upload(_ context.Context, prefix, filename string, body io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	c.n++
	key := prefix + strings.Repeat("k", c.n) + "-" + filename
	c.uploaded[key] = string(data)
	return key, nil
}

func (c *fakeCovers) Delete(_ context.Context, key string) error {
	c.deleted = append(c.deleted, key)
	return nil
}

func (c *fakeCovers) PresignedGetURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	return "https://covers.example.com/" + key + "?expires=" + expiry.String(), nil
}

type fakeMetadata struct {
	meta *BookMetadata
	err  error
	isbn string
}

func (m *fakeMetadata) FetchByISBN(_ context.Context, isbn string) (*BookMetadata, error) {
	m.isbn = isbn
	return m.meta, m.err
}

func TestCreateBookDefaults(t *testing.T) {
	f := newFixture(t, nil)
	b, err := f.books.Create(context.Background(), CreateBookInput{Title: " Dune ", Author: "Frank Herbert", ISBN: "978-0-441-17271-9"})
	require.NoError(t, err)

	assert.Equal(t, "Dune", b.Title)
	assert.True(t, b.Available)
	assert.Equal(t, 1, b.Quantity)
	assert.Equal(t, "9780441172719", b.ISBN)
	assert.False(t, b.HasCover)
}

func TestCreateBookExplicitZeroValues(t *testing.T) {
	f := newFixture(t, nil)
	b, err := f.books.Create(context.Background(), CreateBookInput{
		Title: "Dune", Author: "Frank Herbert", Available: ptr(false), Quantity: ptr(0),
	})
	require.NoError(t, err)
	assert.False(t, b.Available)
	assert.Equal(t, 0, b.Quantity)
}

func TestCreateBookValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.books.Create(ctx, CreateBookInput{Author: "Someone"})
	assertKind(t, err, common.ErrValidation, "title", http.StatusBadRequest)

	_, err = f.books.Create(ctx, CreateBookInput{Title: "T", Author: "A", Quantity: ptr(-1)})
	assertKind(t, err, common.ErrValidation, "quantity", http.StatusBadRequest)
}

func TestCreateBookDuplicateISBN(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.books.Create(ctx, CreateBookInput{Title: "A", Author: "A", ISBN: "111"})
	require.NoError(t, err)

	_, err = f.books.Create(ctx, CreateBookInput{Title: "B", Author: "B", ISBN: "111"})
	assertKind(t, err, common.ErrDuplicate, "isbn", http.StatusBadRequest)

	_, err = f.books.Create(ctx, CreateBookInput{Title: "C", Author: "C"})
	require.NoError(t, err, "books without ISBN do not collide")
	_, err = f.books.Create(ctx, CreateBookInput{Title: "D", Author: "D"})
	require.NoError(t, err)
}

func TestListBooks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.book(t, "Dune")
	f.book(t, "Emma")
	_, err := f.books.Create(ctx, CreateBookInput{Title: "Cosmos", Author: "Sagan", Category: "Science", Available: ptr(false)})
	require.NoError(t, err)

	page, err := f.books.List(ctx, url.Values{"category": {"Fiction"}, "available": {"true"}})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"category": "Fiction", "available": true}, f.store.LastFilter)
	assert.Equal(t, int64(2), page.Pagination.Total)

	page, err = f.books.List(ctx, url.Values{"search": {"sag"}})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Cosmos", page.Data[0].Title)
}

func TestListBooksFilterSearchAndLimit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, in := range []CreateBookInput{
		{Title: "Harry Potter and the Philosopher's Stone", Author: "J. K. Rowling", Category: "Fiction"},
		{Title: "Harry Potter and the Chamber of Secrets", Author: "J. K. Rowling", Category: "Fiction"},
		{Title: "Dirty Harry", Author: "Phillip Rock", Category: "Fiction", Available: ptr(false)},
		{Title: "Harry and the Science of Cats", Author: "Someone", Category: "Science"},
		{Title: "Emma", Author: "Jane Austen", Category: "Fiction"},
	} {
		_, err := f.books.Create(ctx, in)
		require.NoError(t, err)
	}
	for i := 0; i < 5; i++ {
		_, err := f.books.Create(ctx, CreateBookInput{Title: fmt.Sprintf("Harry Hole %d", i), Author: "Jo Nesbo", Category: "Fiction"})
		require.NoError(t, err)
	}

	params, err := url.ParseQuery("category=Fiction&available=true&search=Harry&limit=5")
	require.NoError(t, err)
	page, err := f.books.List(ctx, params)
	require.NoError(t, err)

	assert.Equal(t, bson.M{
		"category":  "Fiction",
		"available": true,
		"$or": bson.A{
			bson.M{"title": primitive.Regex{Pattern: "Harry", Options: "i"}},
			bson.M{"author": primitive.Regex{Pattern: "Harry", Options: "i"}},
		},
	}, f.store.LastFilter)
	assert.Equal(t, int64(7), page.Pagination.Total)
	assert.Equal(t, int64(5), page.Pagination.Limit)
	assert.Equal(t, int64(2), page.Pagination.Pages)
	require.Len(t, page.Data, 5)
	for _, b := range page.Data {
		assert.Equal(t, "Fiction", b.Category)
		assert.True(t, b.Available)
		assert.Contains(t, strings.ToLower(b.Title), "harry")
	}
}

func TestUpdateBook(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	b := f.book(t, "Dune")

	got, err := f.books.Update(ctx, b.ID.Hex(), UpdateBookInput{Quantity: ptr(4), Category: ptr("")})
	require.NoError(t, err)
	assert.Equal(t, 4, got.Quantity)
	assert.Empty(t, got.Category)
	assert.Equal(t, "Dune", got.Title)

	_, err = f.books.Update(ctx, b.ID.Hex(), UpdateBookInput{Title: ptr("  ")})
	assertKind(t, err, common.ErrValidation, "title", http.StatusBadRequest)

	_, err = f.books.Update(ctx, primitive.NewObjectID().Hex(), UpdateBookInput{Quantity: ptr(1)})
	assertKind(t, err, common.ErrNotFound, "", http.StatusNotFound)
}

func TestDeleteBookWithActiveLoan(t *testing.T) {
	covers := newFakeCovers()
	f := newFixture(t, []BookOption{WithCoverStorage(covers)})
	ctx := context.Background()
	m := f.patron(t, "p@example.com")
	b := f.book(t, "Dune")
	_, err := f.books.SetCover(ctx, b.ID.Hex(), "dune.png", "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	l := f.loan(t, m, b, fixedNow.Add(time.Hour))

	err = f.books.Delete(ctx, b.ID.Hex())
	assertKind(t, err, common.ErrValidation, "id", http.StatusBadRequest)

	_, err = f.loans.Return(ctx, l.ID.Hex())
	require.NoError(t, err)
	require.NoError(t, f.books.Delete(ctx, b.ID.Hex()))
	assert.Len(t, covers.deleted, 1, "cover object removed with the book")

	_, err = f.books.Get(ctx, b.ID.Hex())
	assertKind(t, err, common.ErrNotFound, "", http.StatusNotFound)
}

func TestBookStats(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.book(t, "Dune")
	f.book(t, "Emma")
	_, err := f.books.Create(ctx, CreateBookInput{Title: "Cosmos", Author: "Sagan", Category: "Science", Quantity: ptr(3), Available: ptr(false)})
	require.NoError(t, err)

	rows, err := f.books.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.CategoryStat{
		{Category: "Fiction", Count: 2, Available: 2, TotalQuantity: 2},
		{Category: "Science", Count: 1, Available: 0, TotalQuantity: 3},
	}, rows)
}

func TestSetCover(t *testing.T) {
	covers := newFakeCovers()
	f := newFixture(t, []BookOption{WithCoverStorage(covers)})
	ctx := context.Background()
	b := f.book(t, "Dune")

	_, err := f.books.SetCover(ctx, b.ID.Hex(), "dune.gif", "image/gif", strings.NewReader("gif"))
	assertKind(t, err, common.ErrValidation, "file", http.StatusBadRequest)

	first, err := f.books.SetCover(ctx, b.ID.Hex(), "dune.png", "image/png", strings.NewReader("one"))
	require.NoError(t, err)
	assert.True(t, first.HasCover)

	second, err := f.books.SetCover(ctx, b.ID.Hex(), "dune.jpg", "image/jpeg", strings.NewReader("two"))
	require.NoError(t, err)
	assert.NotEqual(t, first.CoverKey, second.CoverKey)
	assert.Equal(t, []string{first.CoverKey}, covers.deleted, "previous cover replaced")
	assert.True(t, strings.HasPrefix(second.CoverKey, "books/covers/"))

	u, err := f.books.CoverURL(ctx, b.ID.Hex())
	require.NoError(t, err)
	assert.Contains(t, u, second.CoverKey)
	assert.Contains(t, u, "15m0s")
}

func TestCoverWithoutStorage(t *testing.T) {
	f := newFixture(t, nil)
	b := f.book(t, "Dune")

	_, err := f.books.SetCover(context.Background(), b.ID.Hex(), "a.png", "image/png", strings.NewReader(""))
	assertKind(t, err, common.ErrUnavailable, "", http.StatusServiceUnavailable)
}

func TestCoverURLWithoutCover(t *testing.T) {
	f := newFixture(t, []BookOption{WithCoverStorage(newFakeCovers())})
	b := f.book(t, "Dune")

	_, err := f.books.CoverURL(context.Background(), b.ID.Hex())
	assertKind(t, err, common.ErrNotFound, "", http.StatusNotFound)
}

func TestRefreshMetadata(t *testing.T) {
	meta := &fakeMetadata{meta: &BookMetadata{
		Title: "Dune", Author: "Frank Herbert", ISBN: "9780441172719", Category: "Fiction", PublicationYear: 1965,
	}}
	f := newFixture(t, []BookOption{WithMetadataFetcher(meta)})
	ctx := context.Background()
	b, err := f.books.Create(ctx, CreateBookInput{Title: "dune?", Author: "unknown"})
	require.NoError(t, err)

	_, err = f.books.RefreshMetadata(ctx, b.ID.Hex(), "")
	assertKind(t, err, common.ErrValidation, "isbn", http.StatusBadRequest)

	got, err := f.books.RefreshMetadata(ctx, b.ID.Hex(), "0-441-17271-7")
	require.NoError(t, err)
	assert.Equal(t, "0441172717", meta.isbn)
	assert.Equal(t, "Dune", got.Title)
	assert.Equal(t, "Frank Herbert", got.Author)
	assert.Equal(t, "9780441172719", got.ISBN)
	assert.Equal(t, 1965, got.PublicationYear)
}

func TestRefreshMetadataErrors(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, nil)
	b := f.book(t, "Dune")
	_, err := f.books.RefreshMetadata(ctx, b.ID.Hex(), "123")
	assertKind(t, err, common.ErrUnavailable, "", http.StatusServiceUnavailable)

	f = newFixture(t, []BookOption{WithMetadataFetcher(&fakeMetadata{err: ErrNoMetadata})})
	b = f.book(t, "Dune")
	_, err = f.books.RefreshMetadata(ctx, b.ID.Hex(), "123")
	assertKind(t, err, common.ErrNotFound, "", http.StatusNotFound)

	f = newFixture(t, []BookOption{WithMetadataFetcher(&fakeMetadata{err: errors.New("dial tcp: timeout")})})
	b = f.book(t, "Dune")
	_, err = f.books.RefreshMetadata(ctx, b.ID.Hex(), "123")
	assertKind(t, err, common.ErrUnavailable, "", http.StatusServiceUnavailable)
}
