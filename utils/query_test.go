package utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBuildFilter(t *testing.T) {
	allowed := []string{"role", "isActive"}

	tests := []struct {
		name   string
		params url.Values
		want   bson.M
	}{
		{
			name:   "keeps allowed string values",
			params: url.Values{"role": {"student"}},
			want:   bson.M{"role": "student"},
		},
		{
			name:   "coerces booleans",
			params: url.Values{"isActive": {"false"}, "role": {"true"}},
			want:   bson.M{"isActive": false, "role": true},
		},
		{
			name:   "drops unknown fields",
			params: url.Values{"password": {"x"}, "$where": {"1"}, "role": {"admin"}},
			want:   bson.M{"role": "admin"},
		},
		{
			name:   "treats empty values as absent",
			params: url.Values{"role": {""}},
			want:   bson.M{},
		},
		{
			name:   "nil params",
			params: nil,
			want:   bson.M{},
		},
		{
			name:   "booleans are case sensitive",
			params: url.Values{"isActive": {"TRUE"}},
			want:   bson.M{"isActive": "TRUE"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildFilter(tt.params, allowed))
		})
	}
}

func TestBuildSearch(t *testing.T) {
	t.Run("empty term", func(t *testing.T) {
		assert.Empty(t, BuildSearch("", []string{"title"}))
	})

	t.Run("no fields", func(t *testing.T) {
		assert.Empty(t, BuildSearch("go", nil))
	})

	t.Run("one case-insensitive clause per field", func(t *testing.T) {
		got := BuildSearch("go", []string{"title", "author"})
		assert.Equal(t, bson.M{"$or": bson.A{
			bson.M{"title": primitive.Regex{Pattern: "go", Options: "i"}},
			bson.M{"author": primitive.Regex{Pattern: "go", Options: "i"}},
		}}, got)
	})

	t.Run("metacharacters are literal", func(t *testing.T) {
		got := BuildSearch("c++ (2nd)", []string{"title"})
		or := got["$or"].(bson.A)
		re := or[0].(bson.M)["title"].(primitive.Regex)
		assert.Equal(t, `c\+\+ \(2nd\)`, re.Pattern)
	})
}

func TestAnd(t *testing.T) {
	t.Run("skips empty predicates", func(t *testing.T) {
		assert.Equal(t, bson.M{"role": "admin"}, And(bson.M{}, bson.M{"role": "admin"}, nil))
	})

	t.Run("no predicates", func(t *testing.T) {
		assert.Equal(t, bson.M{}, And())
	})

	t.Run("merges disjoint predicates", func(t *testing.T) {
		got := And(bson.M{"role": "admin"}, bson.M{"$or": bson.A{}})
		assert.Equal(t, bson.M{"role": "admin", "$or": bson.A{}}, got)
	})

	t.Run("repeated key becomes $and", func(t *testing.T) {
		a := bson.M{"$or": bson.A{bson.M{"a": 1}}}
		b := bson.M{"$or": bson.A{bson.M{"b": 1}}}
		assert.Equal(t, bson.M{"$and": bson.A{a, b}}, And(a, b))
	})
}

func TestQueryConfigQuery(t *testing.T) {
	cfg := QueryConfig{Filterable: []string{"category"}, Searchable: []string{"title"}}

	got := cfg.Query(url.Values{"category": {"Fiction"}, "search": {"dune"}, "page": {"2"}})

	assert.Equal(t, bson.M{
		"category": "Fiction",
		"$or":      bson.A{bson.M{"title": primitive.Regex{Pattern: "dune", Options: "i"}}},
	}, got)
}
