package search

import (
	"net/url"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Pagination and sort defaults applied when the client sends nothing
// usable. Malformed values never fail a search; they fall back here.
const (
	DefaultFrom      = 0
	DefaultSize      = 20
	DefaultSortField = "updated"
	DefaultSortOrder = "desc"
)

// AnyFields is the fixed field set a multi-valued "any" parameter
// searches across. A value matching any one of these fields is a hit.
var AnyFields = []string{"quote", "tags", "text", "uri_parts", "user"}

// FilterPolicy supplies the visibility filter a built query is wrapped
// with. Satisfied by nipsa.Service.
type FilterPolicy interface {
	FilterQuery(viewerID string) query.Query
}

// Query is the built, ready-to-execute form of a search call: pagination,
// sort, and the filtered boolean match tree. Built fresh per call and
// never shared.
type Query struct {
	From      int
	Size      int
	SortField string
	SortOrder string
	Query     query.Query
}

// sortSpec returns the bleve sort-by string ("-field" means descending).
func (q Query) sortSpec() []string {
	if q.SortOrder == "desc" {
		return []string{"-" + q.SortField}
	}
	return []string{q.SortField}
}

// BuildQuery translates the flat search API params into a structured
// query scoped to the viewer's visibility.
//
//   - offset/limit: non-negative integers, defaults on anything else
//   - sort/order: default "updated" descending; unmapped sort fields are
//     tolerated by the index (documents missing the field sort last)
//   - any: cross-field match over AnyFields, OR across values and fields
//   - every remaining key: an exact-field match clause
//   - no clauses at all: match everything, never nothing
//
// Clauses combine with logical AND and the whole tree is wrapped with
// the policy's visibility filter for viewerID. The params collection is
// copied, never mutated.
func BuildQuery(params url.Values, viewerID string, policy FilterPolicy) Query {
	params = cloneParams(params)

	built := Query{
		From:      parseBound(params.Get("offset"), DefaultFrom),
		Size:      parseBound(params.Get("limit"), DefaultSize),
		SortField: DefaultSortField,
		SortOrder: DefaultSortOrder,
	}
	if sort := params.Get("sort"); sort != "" {
		built.SortField = sort
	}
	if order := params.Get("order"); order != "" {
		built.SortOrder = order
	}
	params.Del("offset")
	params.Del("limit")
	params.Del("sort")
	params.Del("order")

	var matches []query.Query

	if values, ok := params["any"]; ok {
		matches = append(matches, anyClause(values))
		params.Del("any")
	}

	for key, values := range params {
		for _, value := range values {
			match := bleve.NewMatchQuery(value)
			match.SetField(key)
			matches = append(matches, match)
		}
	}

	// An empty query means match everything, not match nothing.
	var matchTree query.Query
	switch len(matches) {
	case 0:
		matchTree = bleve.NewMatchAllQuery()
	case 1:
		matchTree = matches[0]
	default:
		matchTree = bleve.NewConjunctionQuery(matches...)
	}

	built.Query = bleve.NewConjunctionQuery(matchTree, policy.FilterQuery(viewerID))
	return built
}

// anyClause builds the cross-field disjunction for the "any" parameter:
// any supplied value hitting any of AnyFields satisfies the clause.
func anyClause(values []string) query.Query {
	clauses := make([]query.Query, 0, len(values)*len(AnyFields))
	for _, value := range values {
		for _, field := range AnyFields {
			match := bleve.NewMatchQuery(value)
			match.SetField(field)
			clauses = append(clauses, match)
		}
	}
	return bleve.NewDisjunctionQuery(clauses...)
}

// parseBound parses a non-negative integer, substituting the fallback on
// any parse failure or negative value.
func parseBound(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// cloneParams deep-copies a url.Values so building never mutates the
// caller's parameter collection.
func cloneParams(params url.Values) url.Values {
	clone := make(url.Values, len(params))
	for key, values := range params {
		clone[key] = append([]string(nil), values...)
	}
	return clone
}
