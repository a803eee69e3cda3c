package shared

import (
	"net/http"
	"strconv"

	"appraisal/internal/transport/http/api"
)

const TotalCountHeader = "X-Total-Count"

type Pagination struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit and offset, ignoring malformed values and
// clamping limit to maxLimit.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	p := Pagination{Limit: defaultLimit}
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		p.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
		p.Offset = v
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// Page sets the total count header and wraps items for the response body.
func (p Pagination) Page(w http.ResponseWriter, items any, total int) api.Page {
	w.Header().Set(TotalCountHeader, strconv.Itoa(total))
	return api.Page{Items: items, Total: total, Limit: p.Limit, Offset: p.Offset}
}
