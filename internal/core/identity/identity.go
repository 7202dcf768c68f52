// Package identity contains the pure logic that reconciles client identifiers.
// Backend endpoints return the same lead under different identifier fields;
// this package decides whether a record matches a requested identifier and
// repairs records that arrive without a usable one.
package identity

import (
	"encoding/json"
	"maps"
	"strconv"
	"strings"
)

// Record is a client or lead as returned by one of the backend endpoints.
type Record map[string]any

// IdentifierFields lists the top-level alias fields, in scan order.
var IdentifierFields = []string{
	"id",
	"uuid",
	"clientId",
	"client_id",
	"request_form_id",
	"requestFormId",
	"leadId",
	"lead_id",
	"formId",
	"form_id",
	"userId",
	"user_id",
}

// UserIdentifierFields lists the alias fields read from a nested "user" object.
var UserIdentifierFields = []string{"id", "uuid", "userId"}

// uuidSources is the priority order used to derive a uuid from the raw payload.
var uuidSources = []string{"uuid", "id", "userId"}

// CollectIdentifiers returns the distinct, trimmed, non-empty identifiers
// found under any alias field of r, in scan order. A nil record yields nil.
func CollectIdentifiers(r Record) []string {
	if r == nil {
		return nil
	}

	var ids []string
	seen := make(map[string]struct{})
	add := func(v string) {
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		ids = append(ids, v)
	}

	for _, field := range IdentifierFields {
		add(stringValue(r[field]))
	}
	if user := asMap(r["user"]); user != nil {
		for _, field := range UserIdentifierFields {
			add(stringValue(user[field]))
		}
	}

	return ids
}

// IdentifierSet returns the identifiers of r as a set for membership tests.
func IdentifierSet(r Record) map[string]struct{} {
	ids := CollectIdentifiers(r)
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Matches reports whether target is one of the identifiers of r.
func Matches(r Record, target string) bool {
	target = strings.TrimSpace(target)
	if r == nil || target == "" {
		return false
	}
	for _, id := range CollectIdentifiers(r) {
		if id == target {
			return true
		}
	}
	return false
}

// EnsureIdentifiers guarantees that the returned record matches fallbackID.
// A record that already matches is returned as is. Otherwise a shallow copy
// is returned with id, uuid and user.id backfilled where absent; uuid prefers
// raw.uuid, raw.id and raw.userId over the fallback. It never panics.
func EnsureIdentifiers(r, raw Record, fallbackID string) Record {
	fallback := strings.TrimSpace(fallbackID)
	if fallback == "" || Matches(r, fallback) {
		return r
	}

	out := make(Record, len(r)+2)
	maps.Copy(out, r)

	if !hasIdentifier(out, "id") {
		out["id"] = fallback
	}
	if !hasIdentifier(out, "uuid") {
		out["uuid"] = firstIdentifier(raw, uuidSources, fallback)
	}
	if user := asMap(out["user"]); user != nil && !hasIdentifier(user, "id") {
		repaired := make(map[string]any, len(user)+1)
		maps.Copy(repaired, user)
		repaired["id"] = fallback
		out["user"] = repaired
	}

	// id and uuid were both already taken by other values.
	if !Matches(out, fallback) {
		parkFallback(out, fallback)
	}

	return out
}

// parkFallback stores fallback under the first free alias, top-level fields
// first and then the nested user object. When every alias is taken, user_id
// is overwritten since it is scanned last.
func parkFallback(out Record, fallback string) {
	for _, field := range IdentifierFields {
		if !hasIdentifier(out, field) {
			out[field] = fallback
			return
		}
	}

	current := out["user"]
	user := asMap(current)
	if current == nil || user != nil {
		nested := make(map[string]any, len(user)+1)
		maps.Copy(nested, user)
		for _, field := range UserIdentifierFields {
			if !hasIdentifier(nested, field) {
				nested[field] = fallback
				out["user"] = nested
				return
			}
		}
	}
	out["user_id"] = fallback
}

func hasIdentifier(m map[string]any, field string) bool {
	return stringValue(m[field]) != ""
}

func firstIdentifier(r Record, fields []string, fallback string) string {
	for _, field := range fields {
		if v := stringValue(r[field]); v != "" {
			return v
		}
	}
	return fallback
}

// stringValue renders identifier-like scalars as trimmed strings.
// Booleans, objects and arrays are not identifiers.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return strings.TrimSpace(val.String())
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	default:
		return ""
	}
}

func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case Record:
		return m
	default:
		return nil
	}
}
