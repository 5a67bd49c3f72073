package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageQueryNormalize(t *testing.T) {
	q := PageQuery{}.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultPageSize, q.PageSize)

	q = PageQuery{Page: 3, PageSize: 500}.Normalize()
	assert.Equal(t, MaxPageSize, q.PageSize)
	assert.Equal(t, 200, q.Offset())

	q = PageQuery{Page: 1 << 62, PageSize: 100}.Normalize()
	assert.Equal(t, MaxPage, q.Page)
	assert.Positive(t, q.Offset())
	assert.Equal(t, (MaxPage-1)*MaxPageSize, PageQuery{Page: 1 << 62, PageSize: 100}.Offset())
}
