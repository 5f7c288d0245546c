package option

import (
	"strconv"
	"strings"

	"github.com/smallbiznis/dealshark/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

// ApplyPagination limits to PageSize+1 rows so callers can detect a next page.
// Ascending mode seeks past the cursor id; descending mode seeks before it.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return ApplyCursor(page, false)
}

func ApplyCursor(page pagination.Pagination, desc bool) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		size := page.PageSize
		if size <= 0 {
			size = pagination.DefaultPageSize
		}
		if size > pagination.MaxPageSize {
			size = pagination.MaxPageSize
		}

		if token := strings.TrimSpace(page.PageToken); token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err == nil && cursor != nil && cursor.ID != "" {
				if id, err := strconv.ParseInt(cursor.ID, 10, 64); err == nil {
					if desc {
						db = db.Where("id < ?", id)
					} else {
						db = db.Where("id > ?", id)
					}
				}
			}
		}

		return db.Limit(size + 1)
	})
}
