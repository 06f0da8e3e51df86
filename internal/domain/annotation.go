// Package domain contains the core annotation model and its invariants.
package domain

import (
	"encoding/json"
	"time"
)

// ProtectedFields are annotation attributes the server always assigns.
// Client-supplied values for these keys are dropped from mutation payloads
// before they reach the record, not validated or merged.
var ProtectedFields = []string{"created", "updated", "user", "consumer", "id"}

// FieldNIPSA is the persisted suppression flag. It is derived from the
// suppression list at creation time and re-derived when a user's flag
// toggles; clients can never set it directly.
const FieldNIPSA = "not_in_public_site_areas"

// WorldGroup grants a permission action to everyone when present in the
// action's identity list.
const WorldGroup = "group:__world__"

// Annotation is a schemaless record with a small set of reserved,
// strongly-typed fields and an open remainder bag (Extra).
//
// The store owns ID and the timestamps; User and Consumer are forced from
// the acting principal at creation time. Everything else belongs to the
// client until server-side policy overrides it.
type Annotation struct {
	ID          string
	User        string
	Consumer    string
	Created     time.Time
	Updated     time.Time
	Deleted     bool
	NIPSA       bool
	Permissions map[string][]string
	Extra       map[string]any
}

// reserved keys handled explicitly by FromMap/ToMap.
var reservedKeys = map[string]bool{
	"id":          true,
	"user":        true,
	"consumer":    true,
	"created":     true,
	"updated":     true,
	"deleted":     true,
	FieldNIPSA:    true,
	"permissions": true,
}

// New creates an empty annotation with initialized permission and
// remainder maps, ready for Apply.
func New() *Annotation {
	return &Annotation{
		Permissions: map[string][]string{},
		Extra:       map[string]any{},
	}
}

// Apply merges an untrusted field map into the annotation.
// The merge is shallow: each payload key fully replaces the prior value,
// unspecified keys retain their prior values. Protected fields and the
// suppression flag are ignored; strip them with StripProtected first to
// make the policy explicit at the call site.
func (a *Annotation) Apply(fields map[string]any) {
	for key, value := range fields {
		switch key {
		case "id", "user", "consumer", "created", "updated", FieldNIPSA:
			// Server-owned; never accepted from a payload.
		case "deleted":
			if b, ok := value.(bool); ok {
				a.Deleted = b
			}
		case "permissions":
			if perms, ok := parsePermissions(value); ok {
				a.Permissions = perms
			}
		default:
			if a.Extra == nil {
				a.Extra = map[string]any{}
			}
			a.Extra[key] = value
		}
	}
}

// StripProtected removes the server-assigned fields and the suppression
// flag from a client payload in place and returns it.
func StripProtected(fields map[string]any) map[string]any {
	for _, key := range ProtectedFields {
		delete(fields, key)
	}
	delete(fields, FieldNIPSA)
	return fields
}

// Anonymize removes authorship linkage from the record: the author
// identity is cleared and removed from every permissions action list,
// leaving other identities and all content fields untouched.
//
// Idempotent: once User is empty the captured identity matches nothing.
func (a *Annotation) Anonymize() {
	author := a.User
	a.User = ""

	for action, identities := range a.Permissions {
		filtered := make([]string, 0, len(identities))
		for _, identity := range identities {
			if identity != author {
				filtered = append(filtered, identity)
			}
		}
		a.Permissions[action] = filtered
	}
}

// AllowsAction reports whether the given identity may perform action on
// this annotation. The author always may; an action list containing the
// identity or the world group grants it to others. An absent or empty
// list stays author-only.
func (a *Annotation) AllowsAction(identity, action string) bool {
	if identity != "" && identity == a.User {
		return true
	}
	for _, entry := range a.Permissions[action] {
		if entry == WorldGroup || (identity != "" && entry == identity) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the annotation.
// Mutators operate on clones so a rejected mutation leaves the caller's
// record byte-for-byte unchanged.
func (a *Annotation) Clone() *Annotation {
	dup := *a
	dup.Permissions = make(map[string][]string, len(a.Permissions))
	for action, identities := range a.Permissions {
		dup.Permissions[action] = append([]string(nil), identities...)
	}
	dup.Extra = make(map[string]any, len(a.Extra))
	for key, value := range a.Extra {
		dup.Extra[key] = value
	}
	return &dup
}

// ToMap flattens the annotation into its wire/storage shape.
// Reserved fields appear under their canonical keys; zero-valued optional
// fields are omitted, matching what clients historically stored.
func (a *Annotation) ToMap() map[string]any {
	m := make(map[string]any, len(a.Extra)+8)
	for key, value := range a.Extra {
		m[key] = value
	}
	if a.ID != "" {
		m["id"] = a.ID
	}
	if a.User != "" {
		m["user"] = a.User
	}
	if a.Consumer != "" {
		m["consumer"] = a.Consumer
	}
	if !a.Created.IsZero() {
		m["created"] = a.Created.UTC().Format(time.RFC3339Nano)
	}
	if !a.Updated.IsZero() {
		m["updated"] = a.Updated.UTC().Format(time.RFC3339Nano)
	}
	if a.Deleted {
		m["deleted"] = true
	}
	if a.NIPSA {
		m[FieldNIPSA] = true
	}
	if a.Permissions != nil {
		m["permissions"] = a.Permissions
	}
	return m
}

// FromMap rebuilds an annotation from its flattened shape.
func FromMap(m map[string]any) *Annotation {
	a := New()
	for key, value := range m {
		if !reservedKeys[key] {
			a.Extra[key] = value
			continue
		}
		switch key {
		case "id":
			a.ID, _ = value.(string)
		case "user":
			a.User, _ = value.(string)
		case "consumer":
			a.Consumer, _ = value.(string)
		case "created":
			a.Created = parseTime(value)
		case "updated":
			a.Updated = parseTime(value)
		case "deleted":
			a.Deleted, _ = value.(bool)
		case FieldNIPSA:
			a.NIPSA, _ = value.(bool)
		case "permissions":
			if perms, ok := parsePermissions(value); ok {
				a.Permissions = perms
			}
		}
	}
	return a
}

// MarshalJSON flattens reserved fields and the remainder bag into a single
// JSON object.
func (a *Annotation) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.ToMap())
}

// UnmarshalJSON rebuilds the annotation from a flat JSON object.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*a = *FromMap(m)
	return nil
}

// PermissionsEqual reports whether two permission mappings are identical,
// including identity order within each action list. The coarse whole-map
// comparison is deliberate: the update path treats any difference as a
// permission change, without distinguishing added from removed roles.
func PermissionsEqual(a, b map[string][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for action, identities := range a {
		other, ok := b[action]
		if !ok || len(other) != len(identities) {
			return false
		}
		for i, identity := range identities {
			if other[i] != identity {
				return false
			}
		}
	}
	return true
}

// parsePermissions coerces a decoded JSON permissions value into the
// canonical map-of-string-lists shape. Non-string entries are dropped.
func parsePermissions(value any) (map[string][]string, bool) {
	switch v := value.(type) {
	case map[string][]string:
		perms := make(map[string][]string, len(v))
		for action, identities := range v {
			perms[action] = append([]string(nil), identities...)
		}
		return perms, true
	case map[string]any:
		perms := make(map[string][]string, len(v))
		for action, raw := range v {
			list, ok := raw.([]any)
			if !ok {
				return nil, false
			}
			identities := make([]string, 0, len(list))
			for _, entry := range list {
				if s, ok := entry.(string); ok {
					identities = append(identities, s)
				}
			}
			perms[action] = identities
		}
		return perms, true
	default:
		return nil, false
	}
}

func parseTime(value any) time.Time {
	s, ok := value.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
