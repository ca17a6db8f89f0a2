package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Window returns the [start, end) bounds of the page selected by offset
// and limit over total items.
func Window(total, offset, limit int) (start, end int) {
	if offset >= total {
		return total, total
	}
	end = total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return offset, end
}

// Paginate slices items to the selected page.
func Paginate[T any](items []T, offset, limit int) []T {
	start, end := Window(len(items), offset, limit)
	return items[start:end]
}

// LastOffset is the offset of the final page.
func LastOffset(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return ((total - 1) / limit) * limit
}

// Links renders the RFC 5988 Link header for a paginated collection.
// self is the absolute request URL; its other query parameters are kept.
// It returns "" when the whole collection fits in one page starting at 0.
func Links(self *url.URL, total, offset, limit int) string {
	if limit <= 0 || (offset == 0 && total <= limit) {
		return ""
	}
	var links []string
	add := func(rel string, off int) {
		u := *self
		q := u.Query()
		q.Set("offset", strconv.Itoa(off))
		q.Set("limit", strconv.Itoa(limit))
		u.RawQuery = q.Encode()
		links = append(links, fmt.Sprintf("<%s>; rel=%q; count=%d; per-page=%d", u.String(), rel, total, limit))
	}

	add("first", 0)
	if offset > 0 {
		add("prev", max(0, offset-limit))
	}
	if offset+limit < total {
		add("next", offset+limit)
	}
	add("last", LastOffset(total, limit))
	return strings.Join(links, ", ")
}
