// pagination.go: HATEOAS pagination via RFC 8288 Link headers.
//
// Response bodies implement the Pager interface to emit next/prev/first/last
// Link headers. The Links transformer reads these and sets the headers.
package humastar

import "fmt"

// Pager is implemented by response bodies that carry pagination metadata.
type Pager interface {
	PaginationLinks(basePath string) []string
}

// PageBody is a generic paginated response envelope.
// Any handler returning PageBody[T] gets automatic pagination Link headers.
type PageBody[T any] struct {
	Total  int `json:"total" doc:"Total number of items"`
	Offset int `json:"offset" doc:"Current offset"`
	Limit  int `json:"limit" doc:"Page size"`
	Data   []T `json:"data" doc:"Items"`
}

// NewPage wraps one page of items. A limit <= 0 means the page holds
// everything from offset on.
func NewPage[T any](items []T, total, offset, limit int) PageBody[T] {
	if items == nil {
		items = []T{}
	}
	if limit <= 0 {
		limit = max(total-offset, len(items))
	}
	return PageBody[T]{Total: total, Offset: offset, Limit: limit, Data: items}
}

// PaginationLinks returns RFC 8288 Link header values for pagination rels.
// An empty page with no limit yields no links.
func (p PageBody[T]) PaginationLinks(basePath string) []string {
	if p.Limit <= 0 {
		return nil
	}
	page := func(offset int, rel string) string {
		return fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="%s"`, basePath, offset, p.Limit, rel)
	}

	links := []string{page(0, "first")}

	if p.Offset > 0 {
		links = append(links, page(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, page(p.Offset+p.Limit, "next"))
	}

	lastOffset := max(((p.Total-1)/p.Limit)*p.Limit, 0)
	return append(links, page(lastOffset, "last"))
}
