package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kevinaaaquil/library/common"
	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainHasher keeps tests fast; bcrypt itself is covered in password_test.go.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }

func (plainHasher) Verify(p, hash string) bool { return hash == "hashed:"+p }

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fixture struct {
	store   *memstore.Store
	members *MemberService
	books   *BookService
	loans   *LoanService
}

func newFixture(t *testing.T, bookOpts []BookOption, loanOpts ...LoanOption) *fixture {
	t.Helper()
	st := memstore.New()
	members := NewMemberService(st, st, plainHasher{})
	members.now = clock
	return &fixture{
		store:   st,
		members: members,
		books:   NewBookService(st, st, bookOpts...),
		loans:   NewLoanService(st, st, st, append([]LoanOption{WithClock(clock)}, loanOpts...)...),
	}
}

func (f *fixture) student(t *testing.T, email string) *models.Member {
	t.Helper()
	m, err := f.members.RegisterStudent(context.Background(), CreateMemberInput{
		Name: "Student " + email, Email: email, Password: "secret", StudentID: "S-" + email,
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) patron(t *testing.T, email string) *models.Member {
	t.Helper()
	m, err := f.members.RegisterPatron(context.Background(), CreateMemberInput{
		Name: "Patron " + email, Email: email, Password: "secret",
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) book(t *testing.T, title string) *models.Book {
	t.Helper()
	b, err := f.books.Create(context.Background(), CreateBookInput{Title: title, Author: "Author of " + title, Category: "Fiction"})
	require.NoError(t, err)
	return b
}

func (f *fixture) loan(t *testing.T, m *models.Member, b *models.Book, due time.Time) *models.LoanDetail {
	t.Helper()
	borrow := due.Add(-14 * 24 * time.Hour)
	l, err := f.loans.Create(context.Background(), CreateLoanInput{
		UserID: m.ID.Hex(), BookID: b.ID.Hex(), BorrowDate: &borrow, DueDate: &due,
	})
	require.NoError(t, err)
	return l
}

// assertKind checks err is a classified error of kind, optionally naming
// field, that maps to status.
func assertKind(t *testing.T, err error, kind error, field string, status int) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, kind)
	var appErr *common.Error
	require.True(t, errors.As(err, &appErr), "not a *common.Error: %v", err)
	if field != "" {
		assert.Equal(t, field, appErr.Field)
	}
	assert.Equal(t, status, common.HTTPStatusFromError(err))
	assert.False(t, strings.Contains(appErr.Message, "mongo"), appErr.Message)
}
