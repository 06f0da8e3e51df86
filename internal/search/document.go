package search

import (
	"encoding/json/v2"
	"strings"
	"unicode"

	"github.com/annotateapp/annotate-server/internal/domain"
)

// AnnotationToDocument flattens an annotation into its indexable shape.
//
// Reserved fields land under their canonical keys, timestamps become unix
// seconds for sorting, the URI is additionally indexed as lowercased
// parts, and the complete record is carried in the stored-only "source"
// field for hit hydration. Remaining client fields pass through untouched
// so per-field match clauses keep working against the dynamic mapping.
func AnnotationToDocument(a *domain.Annotation) (map[string]any, error) {
	source, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}

	doc := make(map[string]any, len(a.Extra)+8)
	for key, value := range a.Extra {
		doc[key] = value
	}

	doc["id"] = a.ID
	doc["user"] = a.User
	doc["consumer"] = a.Consumer
	doc[domain.FieldNIPSA] = a.NIPSA
	if !a.Created.IsZero() {
		doc["created"] = float64(a.Created.Unix())
	}
	if !a.Updated.IsZero() {
		doc["updated"] = float64(a.Updated.Unix())
	}

	if uri, ok := a.Extra["uri"].(string); ok && uri != "" {
		doc["uri_parts"] = SplitURI(uri)
	}

	doc["source"] = string(source)

	return doc, nil
}

// SplitURI breaks a URI into lowercased alphanumeric parts.
// "http://example.com/page?id=1" becomes ["http", "example", "com",
// "page", "id", "1"], which is what the cross-field "any" search and
// per-part URI matching operate on.
func SplitURI(uri string) []string {
	parts := strings.FieldsFunc(uri, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for i, part := range parts {
		parts[i] = strings.ToLower(part)
	}
	return parts
}

// documentToAnnotation rebuilds an annotation from a hit's stored source
// field. Returns nil when the field is missing or unreadable; callers
// skip such hits rather than failing the whole page.
func documentToAnnotation(fields map[string]any) *domain.Annotation {
	source, ok := fields["source"].(string)
	if !ok || source == "" {
		return nil
	}

	var annotation domain.Annotation
	if err := json.Unmarshal([]byte(source), &annotation); err != nil {
		return nil
	}
	return &annotation
}
