package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/annotateapp/annotate-server/internal/domain"
)

// buildIndexMapping creates the Bleve index mapping for annotation documents.
//
// The mapping is designed with these priorities:
//  1. Full-text search on annotation body and quoted passage with English stemming
//  2. Exact keyword matching on identities (user, consumer) and tags
//  3. The suppression flag indexed as a boolean for the visibility filter
//  4. Numeric timestamps for recency sorting
//  5. A stored-only source field carrying the full record for result hydration
//
// Annotations are schemaless beyond the reserved fields, so the document
// mapping stays dynamic: unknown client fields are indexed with the
// default analyzer and remain matchable by per-field clauses.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields (full-text searchable) ---

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = en.AnalyzerName
	textFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("text", textFieldMapping)

	quoteFieldMapping := bleve.NewTextFieldMapping()
	quoteFieldMapping.Analyzer = en.AnalyzerName
	quoteFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("quote", quoteFieldMapping)

	// URI parts - pre-split URI tokens, lowercased on the way in
	uriPartsFieldMapping := bleve.NewTextFieldMapping()
	uriPartsFieldMapping.Analyzer = simple.Name
	docMapping.AddFieldMappingsAt("uri_parts", uriPartsFieldMapping)

	// --- Keyword fields (exact match) ---

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	userFieldMapping := bleve.NewTextFieldMapping()
	userFieldMapping.Analyzer = keyword.Name
	userFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("user", userFieldMapping)

	consumerFieldMapping := bleve.NewTextFieldMapping()
	consumerFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("consumer", consumerFieldMapping)

	uriFieldMapping := bleve.NewTextFieldMapping()
	uriFieldMapping.Analyzer = keyword.Name
	uriFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("uri", uriFieldMapping)

	tagsFieldMapping := bleve.NewTextFieldMapping()
	tagsFieldMapping.Analyzer = keyword.Name
	tagsFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("tags", tagsFieldMapping)

	// --- Policy and sort fields ---

	// Suppression flag - boolean so the visibility filter can term-match it
	nipsaFieldMapping := bleve.NewBooleanFieldMapping()
	nipsaFieldMapping.Store = true
	docMapping.AddFieldMappingsAt(domain.FieldNIPSA, nipsaFieldMapping)

	// Timestamps as unix seconds - for sorting by recency
	createdFieldMapping := bleve.NewNumericFieldMapping()
	createdFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("created", createdFieldMapping)

	updatedFieldMapping := bleve.NewNumericFieldMapping()
	updatedFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("updated", updatedFieldMapping)

	// --- Source field (stored only, never indexed) ---

	// The full record rides along with each hit so search results can be
	// returned without a second trip to the record store.
	sourceFieldMapping := bleve.NewTextFieldMapping()
	sourceFieldMapping.Index = false
	sourceFieldMapping.Store = true
	sourceFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("source", sourceFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
