package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginate(t *testing.T) {
	t.Run("pages rounds up", func(t *testing.T) {
		got := Paginate([]int{1, 2, 3}, 23, Page{Page: 3, Limit: 10, Offset: 20})
		assert.Equal(t, Pagination{Total: 23, Page: 3, Limit: 10, Pages: 3}, got.Pagination)
		assert.Equal(t, []int{1, 2, 3}, got.Data)
	})

	t.Run("exact multiple", func(t *testing.T) {
		got := Paginate([]int{}, 20, Page{Page: 1, Limit: 10})
		assert.Equal(t, int64(2), got.Pagination.Pages)
	})

	t.Run("no results", func(t *testing.T) {
		got := Paginate[int](nil, 0, ResolvePage("", ""))
		assert.Equal(t, int64(0), got.Pagination.Pages)
		assert.NotNil(t, got.Data)
	})

	t.Run("truncates to limit", func(t *testing.T) {
		got := Paginate([]int{1, 2, 3, 4}, 4, Page{Page: 1, Limit: 2})
		assert.Len(t, got.Data, 2)
	})

	t.Run("page past the end keeps total", func(t *testing.T) {
		got := Paginate[int](nil, 5, Page{Page: 9, Limit: 10, Offset: 80})
		assert.Empty(t, got.Data)
		assert.Equal(t, int64(5), got.Pagination.Total)
		assert.Equal(t, int64(1), got.Pagination.Pages)
	})
}

func TestPaginateJSON(t *testing.T) {
	body, err := json.Marshal(Paginate[string](nil, 0, ResolvePage("", "")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[],"pagination":{"total":0,"page":1,"limit":10,"pages":0}}`, string(body))
}
