// Package pagination converts page/limit requests into offsets and builds the
// {data, meta, links} envelope returned by every list operation.
//
// All functions are pure. Out-of-range inputs are clamped, never rejected.
package pagination

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Query parameter names understood by RequestFromQuery.
const (
	ParamPage  = "page"
	ParamLimit = "limit"
	ParamSort  = "sort"
	ParamOrder = "order"
)

// Paging defaults.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MinLimit     = 1
	MaxLimit     = 100
)

// Sort orders.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Request is a caller's paging request. Nil fields take defaults.
type Request struct {
	Page  *int   `json:"page,omitempty"`
	Limit *int   `json:"limit,omitempty"`
	Sort  string `json:"sort,omitempty"`
	Order string `json:"order,omitempty"`
}

// Params is the resolved window for a data query.
type Params struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Page   int `json:"page"`
}

// Meta describes where a page sits in the full collection.
type Meta struct {
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	HasPrevious bool  `json:"has_previous"`
	HasNext     bool  `json:"has_next"`
}

// Links are navigation URLs. Previous and Next are empty when there is no such page.
type Links struct {
	First    string `json:"first"`
	Last     string `json:"last"`
	Previous string `json:"previous,omitempty"`
	Next     string `json:"next,omitempty"`
	Self     string `json:"self"`
}

// Response is the paginated envelope.
type Response[T any] struct {
	Data  []T   `json:"data"`
	Meta  Meta  `json:"meta"`
	Links Links `json:"links"`
}

// Limits holds the default and maximum page size. The zero value is not
// usable; start from DefaultLimits.
type Limits struct {
	Default int
	Max     int
}

// DefaultLimits is a page size of 10 capped at 100.
var DefaultLimits = Limits{Default: DefaultLimit, Max: MaxLimit}

// NewLimits returns limits with non-positive values replaced by the package defaults.
func NewLimits(defaultLimit, maxLimit int) Limits {
	l := Limits{Default: defaultLimit, Max: maxLimit}
	if l.Max < MinLimit {
		l.Max = MaxLimit
	}
	if l.Default < MinLimit || l.Default > l.Max {
		l.Default = min(DefaultLimit, l.Max)
	}
	return l
}

// Calculate resolves req using DefaultLimits.
func Calculate(req Request) Params {
	return DefaultLimits.Calculate(req)
}

// Calculate resolves page, limit and offset:
// page = max(1, page), limit = clamp(limit, 1, l.Max), offset = (page-1)*limit.
// page is capped at math.MaxInt/limit so offset never overflows.
func (l Limits) Calculate(req Request) Params {
	page := DefaultPage
	if req.Page != nil && *req.Page > page {
		page = *req.Page
	}

	limit := l.Default
	if req.Limit != nil {
		limit = *req.Limit
	}
	limit = max(MinLimit, min(limit, l.Max))
	// Keep (page-1)*limit within int.
	page = min(page, math.MaxInt/limit)

	return Params{
		Offset: (page - 1) * limit,
		Limit:  limit,
		Page:   page,
	}
}

// Direction returns the SQL sort direction for req.Order. Anything other than
// "asc" (case-insensitive) sorts descending.
func (r Request) Direction() string {
	if strings.EqualFold(strings.TrimSpace(r.Order), OrderAsc) {
		return "ASC"
	}
	return "DESC"
}

// BuildMeta computes page metadata. TotalPages is 0 for an empty collection;
// HasNext and HasPrevious follow from the arithmetic alone, so a page past
// the end still yields valid metadata.
func BuildMeta(totalItems int64, page, limit int) Meta {
	totalPages := 0
	if totalItems > 0 && limit > 0 {
		totalPages = int((totalItems + int64(limit) - 1) / int64(limit))
	}

	return Meta{
		TotalItems:  totalItems,
		TotalPages:  totalPages,
		CurrentPage: page,
		PerPage:     limit,
		HasPrevious: page > 1,
		HasNext:     page < totalPages,
	}
}

// BuildLinks builds navigation URLs from baseURL. Every key in query except
// "page" is reproduced in every link; "page" is set per link. Last points at
// page 1 when the collection is empty.
func BuildLinks(baseURL string, page, totalPages int, query url.Values) Links {
	links := Links{
		First: pageURL(baseURL, 1, query),
		Last:  pageURL(baseURL, max(totalPages, 1), query),
		Self:  pageURL(baseURL, page, query),
	}
	if page > 1 {
		links.Previous = pageURL(baseURL, page-1, query)
	}
	if page < totalPages {
		links.Next = pageURL(baseURL, page+1, query)
	}
	return links
}

// NewResponse assembles the envelope from BuildMeta and BuildLinks. A nil
// data slice becomes an empty one so it encodes as [].
func NewResponse[T any](data []T, totalItems int64, page, limit int, baseURL string, query url.Values) Response[T] {
	if data == nil {
		data = []T{}
	}
	meta := BuildMeta(totalItems, page, limit)
	return Response[T]{
		Data:  data,
		Meta:  meta,
		Links: BuildLinks(baseURL, page, meta.TotalPages, query),
	}
}

// QueryParams derives link parameters from req and filters using DefaultLimits.
func QueryParams(req Request, filters url.Values) url.Values {
	return DefaultLimits.QueryParams(req, filters)
}

// QueryParams derives the parameters links must carry: every filter key, the
// resolved limit, and sort and order when the request set them. Links built
// from the result never lose a parameter the request was served with.
func (l Limits) QueryParams(req Request, filters url.Values) url.Values {
	out := make(url.Values, len(filters)+3)
	for key, values := range filters {
		if key == ParamPage {
			continue
		}
		out[key] = append([]string(nil), values...)
	}

	out.Set(ParamLimit, strconv.Itoa(l.Calculate(req).Limit))
	if sort := strings.TrimSpace(req.Sort); sort != "" {
		out.Set(ParamSort, sort)
	}
	if order := strings.TrimSpace(req.Order); order != "" {
		out.Set(ParamOrder, strings.ToLower(order))
	}
	return out
}

// RequestFromQuery reads page, limit, sort and order from a query string.
// Values that are not integers are treated as absent.
func RequestFromQuery(q url.Values) Request {
	req := Request{
		Sort:  strings.TrimSpace(q.Get(ParamSort)),
		Order: strings.TrimSpace(q.Get(ParamOrder)),
	}
	if v, err := strconv.Atoi(q.Get(ParamPage)); err == nil {
		req.Page = &v
	}
	if v, err := strconv.Atoi(q.Get(ParamLimit)); err == nil {
		req.Limit = &v
	}
	return req
}

// Filters returns the keys of q that are not paging parameters.
func Filters(q url.Values) url.Values {
	out := make(url.Values)
	for key, values := range q {
		switch key {
		case ParamPage, ParamLimit, ParamSort, ParamOrder:
			continue
		}
		out[key] = append([]string(nil), values...)
	}
	return out
}

func pageURL(baseURL string, page int, query url.Values) string {
	values := make(url.Values, len(query)+1)
	for key, vs := range query {
		if key == ParamPage {
			continue
		}
		values[key] = vs
	}
	values.Set(ParamPage, strconv.Itoa(page))

	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
	}
	return baseURL + sep + values.Encode()
}
