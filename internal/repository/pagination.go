package repository

import "github.com/noah-isme/classroom-api/internal/dto"

func pageBounds(page, size int) (limit, offset int) {
	q := dto.PageQuery{Page: page, PageSize: size}.Normalize()
	return q.PageSize, q.Offset()
}
