package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		query   string
		page    int
		perPage int
		offset  int
	}{
		{"", 1, DefaultPerPage, 0},
		{"?page=3&per_page=50", 3, 50, 100},
		{"?page=-1", 1, DefaultPerPage, 0},
		{"?page=abc&per_page=xyz", 1, DefaultPerPage, 0},
		{"?per_page=0", 1, DefaultPerPage, 0},
		{"?page=2&per_page=500", 2, MaxPerPage, MaxPerPage},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := FromRequest(httptest.NewRequest(http.MethodGet, "/selections"+tt.query, nil))
			assert.Equal(t, tt.page, p.Page)
			assert.Equal(t, tt.perPage, p.PerPage)
			assert.Equal(t, tt.offset, p.Offset)
		})
	}
}

func TestSlice_MiddlePage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	r := Slice(items, Params{Page: 2, PerPage: 3, Offset: 3})

	assert.Equal(t, []int{4, 5, 6}, r.Items)
	assert.Equal(t, 7, r.TotalCount)
	assert.Equal(t, 3, r.TotalPages)
	assert.True(t, r.HasNext)
	assert.True(t, r.HasPrev)
}

func TestSlice_LastPartialPage(t *testing.T) {
	r := Slice([]int{1, 2, 3, 4, 5, 6, 7}, Params{Page: 3, PerPage: 3, Offset: 6})

	assert.Equal(t, []int{7}, r.Items)
	assert.False(t, r.HasNext)
}

func TestSlice_PastTheEnd(t *testing.T) {
	r := Slice([]string{"a"}, Params{Page: 5, PerPage: 10, Offset: 40})

	assert.NotNil(t, r.Items)
	assert.Empty(t, r.Items)
	assert.Equal(t, 1, r.TotalPages)
	assert.False(t, r.HasNext)
}

func TestSlice_Empty(t *testing.T) {
	r := Slice[int](nil, DefaultParams())

	assert.NotNil(t, r.Items)
	assert.Equal(t, 0, r.TotalPages)
	assert.False(t, r.HasNext)
	assert.False(t, r.HasPrev)
}

func TestSlice_DoesNotAliasInput(t *testing.T) {
	items := []int{1, 2, 3}
	r := Slice(items, DefaultParams())
	r.Items[0] = 99

	assert.Equal(t, 1, items[0])
}

func TestReverse(t *testing.T) {
	assert.Equal(t, []int{3, 2, 1}, Reverse([]int{1, 2, 3}))
	assert.Empty(t, Reverse([]int{}))
}
