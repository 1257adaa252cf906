// Package memstore is an in-memory stand-in for store.DB. It evaluates the
// subset of MongoDB filter and update syntax the services produce, which is
// enough to exercise them without a server.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/store"
	"github.com/kevinaaaquil/library/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type collection struct {
	name  string
	order []primitive.ObjectID
	docs  map[primitive.ObjectID]bson.M
}

func newCollection(name string) *collection {
	return &collection{name: name, docs: map[primitive.ObjectID]bson.M{}}
}

func (c *collection) insert(id primitive.ObjectID, doc bson.M) {
	c.order = append(c.order, id)
	c.docs[id] = doc
}

func (c *collection) remove(id primitive.ObjectID) bool {
	if _, ok := c.docs[id]; !ok {
		return false
	}
	delete(c.docs, id)
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// find returns matching documents in insertion order.
func (c *collection) find(filter bson.M) []bson.M {
	var out []bson.M
	for _, id := range c.order {
		if doc := c.docs[id]; matches(doc, filter) {
			out = append(out, doc)
		}
	}
	return out
}

func (c *collection) first(filter bson.M) bson.M {
	for _, id := range c.order {
		if doc := c.docs[id]; matches(doc, filter) {
			return doc
		}
	}
	return nil
}

// Store holds members, books and loans in memory.
type Store struct {
	mu      sync.Mutex
	members *collection
	books   *collection
	loans   *collection

	// Err, when set, is returned by every operation.
	Err error
	// LastFilter is the filter of the most recent Find* call.
	LastFilter bson.M
}

func New() *Store {
	return &Store{
		members: newCollection("members"),
		books:   newCollection("books"),
		loans:   newCollection("loans"),
	}
}

func (s *Store) Ping(context.Context) error {
	return s.Err
}

func duplicateKey(coll, field string, value any) error {
	return mongo.WriteException{WriteErrors: mongo.WriteErrors{{
		Code: 11000,
		Message: fmt.Sprintf("E11000 duplicate key error collection: library.%s index: %s_1 dup key: { %s: %q }",
			coll, field, field, fmt.Sprint(value)),
	}}}
}

// unique reports a duplicate-key error when another document already holds
// value in field. Empty values are exempt, as with a sparse index.
func (c *collection) unique(field string, value any, self primitive.ObjectID) error {
	if value == nil || value == "" {
		return nil
	}
	for _, id := range c.order {
		if id != self && equal(c.docs[id][field], value) {
			return duplicateKey(c.name, field, value)
		}
	}
	return nil
}

func toDoc(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func fromDoc(doc bson.M, out any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}

func pageOf(docs []bson.M, page utils.Page) []bson.M {
	if page.Offset >= int64(len(docs)) {
		return nil
	}
	end := min(page.Offset+page.Limit, int64(len(docs)))
	return docs[page.Offset:end]
}

func applyUpdate(doc, update bson.M) {
	if set, ok := update["$set"].(bson.M); ok {
		for k, v := range set {
			doc[k] = v
		}
	}
	if unset, ok := update["$unset"].(bson.M); ok {
		for k := range unset {
			delete(doc, k)
		}
	}
}

func matches(doc, filter bson.M) bool {
	for key, want := range filter {
		switch key {
		case "$or":
			hit := false
			for _, sub := range want.(bson.A) {
				if matches(doc, sub.(bson.M)) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
		case "$and":
			for _, sub := range want.(bson.A) {
				if !matches(doc, sub.(bson.M)) {
					return false
				}
			}
		default:
			got, ok := doc[key]
			if !matchField(got, ok, want) {
				return false
			}
		}
	}
	return true
}

func matchField(got any, present bool, want any) bool {
	switch w := want.(type) {
	case primitive.Regex:
		s, ok := got.(string)
		pattern := w.Pattern
		if strings.Contains(w.Options, "i") {
			pattern = "(?i)" + pattern
		}
		return ok && regexp.MustCompile(pattern).MatchString(s)
	case bson.M:
		for op, arg := range w {
			switch op {
			case "$ne":
				if present && equal(got, arg) {
					return false
				}
			case "$lt", "$lte", "$gt", "$gte":
				c, ok := compare(got, arg)
				if !present || !ok {
					return false
				}
				if (op == "$lt" && c >= 0) || (op == "$lte" && c > 0) ||
					(op == "$gt" && c <= 0) || (op == "$gte" && c < 0) {
					return false
				}
			default:
				return false
			}
		}
		return true
	}
	return present && equal(got, want)
}

func normalize(v any) any {
	switch x := v.(type) {
	case time.Time:
		return primitive.NewDateTimeFromTime(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return primitive.NewDateTimeFromTime(*x)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	}
	return v
}

func equal(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func compare(a, b any) (int, bool) {
	switch x := normalize(a).(type) {
	case primitive.DateTime:
		y, ok := normalize(b).(primitive.DateTime)
		return cmp(int64(x), int64(y)), ok
	case int64:
		y, ok := normalize(b).(int64)
		return cmp(x, y), ok
	}
	return 0, false
}

func cmp(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func asInt(v any) int64 {
	n, _ := normalize(v).(int64)
	return n
}

func (s *Store) FindMembers(_ context.Context, filter bson.M, page utils.Page) ([]models.Member, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}
	s.LastFilter = filter
	docs := s.members.find(filter)
	var out []models.Member
	for _, doc := range pageOf(docs, page) {
		var m models.Member
		if err := fromDoc(doc, &m); err != nil {
			return nil, 0, err
		}
		m.Password = ""
		out = append(out, m)
	}
	return out, int64(len(docs)), nil
}

func (s *Store) member(filter bson.M, withPassword bool) (*models.Member, error) {
	doc := s.members.first(filter)
	if doc == nil {
		return nil, nil
	}
	var m models.Member
	if err := fromDoc(doc, &m); err != nil {
		return nil, err
	}
	if !withPassword {
		m.Password = ""
	}
	return &m, nil
}

func (s *Store) MemberByID(_ context.Context, id primitive.ObjectID) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.member(bson.M{"_id": id}, false)
}

func (s *Store) MemberByEmail(_ context.Context, email string) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.member(bson.M{"email": email}, true)
}

func (s *Store) InsertMember(_ context.Context, m *models.Member) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return primitive.NilObjectID, s.Err
	}
	if err := s.members.unique("email", m.Email, primitive.NilObjectID); err != nil {
		return primitive.NilObjectID, err
	}
	id := m.ID
	if id.IsZero() {
		id = primitive.NewObjectID()
	}
	doc, err := toDoc(m)
	if err != nil {
		return primitive.NilObjectID, err
	}
	doc["_id"] = id
	s.members.insert(id, doc)
	return id, nil
}

func (s *Store) UpdateMember(_ context.Context, filter, update bson.M) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	doc := s.members.first(filter)
	if doc == nil {
		return nil, nil
	}
	id := doc["_id"].(primitive.ObjectID)
	if set, ok := update["$set"].(bson.M); ok {
		if err := s.members.unique("email", set["email"], id); err != nil {
			return nil, err
		}
	}
	applyUpdate(doc, update)
	return s.member(bson.M{"_id": id}, false)
}

func (s *Store) DeleteMember(_ context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	return s.members.remove(id), nil
}

func (s *Store) MemberStatsByRole(context.Context) ([]models.RoleStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	byRole := map[string]*models.RoleStat{}
	for _, doc := range s.members.find(nil) {
		role, _ := doc["role"].(string)
		row, ok := byRole[role]
		if !ok {
			row = &models.RoleStat{Role: role}
			byRole[role] = row
		}
		row.Count++
		if active, _ := doc["isActive"].(bool); active {
			row.Active++
		}
	}
	out := make([]models.RoleStat, 0, len(byRole))
	for _, row := range byRole {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out, nil
}

func (s *Store) FindBooks(_ context.Context, filter bson.M, page utils.Page) ([]models.Book, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}
	s.LastFilter = filter
	docs := s.books.find(filter)
	var out []models.Book
	for _, doc := range pageOf(docs, page) {
		var b models.Book
		if err := fromDoc(doc, &b); err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, int64(len(docs)), nil
}

func (s *Store) book(id primitive.ObjectID) (*models.Book, error) {
	doc := s.books.docs[id]
	if doc == nil {
		return nil, nil
	}
	var b models.Book
	if err := fromDoc(doc, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) BookByID(_ context.Context, id primitive.ObjectID) (*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.book(id)
}

func (s *Store) InsertBook(_ context.Context, b *models.Book) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return primitive.NilObjectID, s.Err
	}
	if err := s.books.unique("isbn", b.ISBN, primitive.NilObjectID); err != nil {
		return primitive.NilObjectID, err
	}
	id := b.ID
	if id.IsZero() {
		id = primitive.NewObjectID()
	}
	doc, err := toDoc(b)
	if err != nil {
		return primitive.NilObjectID, err
	}
	doc["_id"] = id
	s.books.insert(id, doc)
	return id, nil
}

func (s *Store) UpdateBook(_ context.Context, id primitive.ObjectID, update bson.M) (*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	doc := s.books.docs[id]
	if doc == nil {
		return nil, nil
	}
	if set, ok := update["$set"].(bson.M); ok {
		if err := s.books.unique("isbn", set["isbn"], id); err != nil {
			return nil, err
		}
	}
	applyUpdate(doc, update)
	return s.book(id)
}

func (s *Store) DeleteBook(_ context.Context, id primitive.ObjectID) (*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	b, err := s.book(id)
	if err != nil || b == nil {
		return nil, err
	}
	s.books.remove(id)
	return b, nil
}

func (s *Store) BookStatsByCategory(context.Context) ([]models.CategoryStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	byCategory := map[string]*models.CategoryStat{}
	for _, doc := range s.books.find(nil) {
		category, _ := doc["category"].(string)
		row, ok := byCategory[category]
		if !ok {
			row = &models.CategoryStat{Category: category}
			byCategory[category] = row
		}
		row.Count++
		if available, _ := doc["available"].(bool); available {
			row.Available++
		}
		row.TotalQuantity += asInt(doc["quantity"])
	}
	out := make([]models.CategoryStat, 0, len(byCategory))
	for _, row := range byCategory {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (s *Store) detail(doc bson.M) (models.LoanDetail, error) {
	var loan models.Loan
	if err := fromDoc(doc, &loan); err != nil {
		return models.LoanDetail{}, err
	}
	d := models.LoanDetail{
		ID:         loan.ID,
		BorrowDate: loan.BorrowDate,
		DueDate:    loan.DueDate,
		ReturnDate: loan.ReturnDate,
		Returned:   loan.Returned,
		IsOverdue:  loan.IsOverdue,
	}
	if m, err := s.member(bson.M{"_id": loan.UserID}, false); err == nil && m != nil {
		d.User = &models.MemberRef{ID: m.ID, Name: m.Name, Email: m.Email, Role: m.Role}
	}
	if b, err := s.book(loan.BookID); err == nil && b != nil {
		d.Book = &models.BookRef{ID: b.ID, Title: b.Title, Author: b.Author, Category: b.Category}
	}
	return d, nil
}

func (s *Store) details(docs []bson.M) ([]models.LoanDetail, error) {
	var out []models.LoanDetail
	for _, doc := range docs {
		d, err := s.detail(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) FindLoans(_ context.Context, filter bson.M, page utils.Page) ([]models.LoanDetail, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}
	s.LastFilter = filter
	docs := s.loans.find(filter)
	out, err := s.details(pageOf(docs, page))
	return out, int64(len(docs)), err
}

// FindOverdueLoans applies store.OverdueFilter and orders by due date.
func (s *Store) FindOverdueLoans(_ context.Context, now time.Time, page utils.Page) ([]models.LoanDetail, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}
	docs := s.loans.find(store.OverdueFilter(now))
	sort.SliceStable(docs, func(i, j int) bool {
		c, _ := compare(docs[i]["dueDate"], docs[j]["dueDate"])
		return c < 0
	})
	out, err := s.details(pageOf(docs, page))
	return out, int64(len(docs)), err
}

func (s *Store) LoanDetailByID(_ context.Context, id primitive.ObjectID) (*models.LoanDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	doc := s.loans.docs[id]
	if doc == nil {
		return nil, nil
	}
	d, err := s.detail(doc)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) LoanByID(_ context.Context, id primitive.ObjectID) (*models.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	doc := s.loans.docs[id]
	if doc == nil {
		return nil, nil
	}
	var loan models.Loan
	if err := fromDoc(doc, &loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (s *Store) InsertLoan(_ context.Context, loan *models.Loan) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return primitive.NilObjectID, s.Err
	}
	id := loan.ID
	if id.IsZero() {
		id = primitive.NewObjectID()
	}
	doc, err := toDoc(loan)
	if err != nil {
		return primitive.NilObjectID, err
	}
	doc["_id"] = id
	s.loans.insert(id, doc)
	return id, nil
}

func (s *Store) UpdateLoan(_ context.Context, filter, update bson.M) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	doc := s.loans.first(filter)
	if doc == nil {
		return false, nil
	}
	applyUpdate(doc, update)
	return true, nil
}

func (s *Store) DeleteLoan(_ context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	return s.loans.remove(id), nil
}

func (s *Store) CountActiveLoans(_ context.Context, field string, id primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	return int64(len(s.loans.find(bson.M{field: id, "returned": false}))), nil
}

func (s *Store) MarkOverdue(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	docs := s.loans.find(bson.M{
		"returned":  false,
		"isOverdue": bson.M{"$ne": true},
		"dueDate":   bson.M{"$lt": now},
	})
	for _, doc := range docs {
		doc["isOverdue"] = true
	}
	return int64(len(docs)), nil
}

func (s *Store) LoanSummary(_ context.Context, now time.Time) (models.LoanSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return models.LoanSummary{}, s.Err
	}
	var sum models.LoanSummary
	for _, doc := range s.loans.find(nil) {
		sum.Total++
		if returned, _ := doc["returned"].(bool); returned {
			sum.Returned++
			continue
		}
		sum.Active++
	}
	sum.Overdue = int64(len(s.loans.find(store.OverdueFilter(now))))
	return sum, nil
}
