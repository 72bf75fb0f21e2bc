// Package mapping implements the field catalog, deterministic header
// matching and the editable header → field mapping the operator works
// against.
package mapping

import (
	"regexp"
	"strings"

	"github.com/assetdock/assetdock/internal/model"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeHeader canonicalizes a column header for matching: lowercased,
// runs of non-alphanumerics collapsed to a single underscore, outer
// underscores trimmed.
func NormalizeHeader(h string) string {
	s := strings.ToLower(strings.TrimSpace(h))
	s = nonAlnum.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// assetFieldKeys is the closed list of built-in asset field keys, in the
// order the UI presents them.
var assetFieldKeys = []string{
	"name",
	"serial_number",
	"status",
	"location",
	"asset_type",
	"purchase_date",
	"purchase_price",
	"vendor",
	"order_number",
	"warranty_end",
	"assigned_user",
	"tags",
}

// userFieldKeys is the closed list of user field keys.
var userFieldKeys = []string{
	"email",
	"full_name",
	"role",
	"is_active",
}

// headerAliases maps normalized headers that do not equal a field key but
// still resolve deterministically.
var headerAliases = map[model.EntityKind]map[string]string{
	model.KindUser: {
		"name": "full_name",
	},
}

// FieldKeys returns the built-in field keys for the entity kind.
func FieldKeys(kind model.EntityKind) []string {
	switch kind {
	case model.KindUser:
		return append([]string(nil), userFieldKeys...)
	default:
		return append([]string(nil), assetFieldKeys...)
	}
}

// assetFieldDescriptions describes the asset field keys for the AI mapping
// prompt.
var assetFieldDescriptions = map[string]string{
	"name":           "The primary name or title of the asset (e.g. 'Dell XPS 15', 'MacBook Pro')",
	"serial_number":  "Unique hardware identifier (e.g. SN-12345, Service Tag)",
	"status":         "Current lifecycle state (e.g. Active, In Stock, Broken, Retired)",
	"location":       "Physical location (e.g. New York Office, Warehouse A)",
	"asset_type":     "Category or type of device (e.g. Laptop, Monitor, Printer)",
	"purchase_date":  "Date the asset was bought",
	"purchase_price": "Cost of the asset",
	"vendor":         "Supplier or vendor name",
	"order_number":   "Purchase order number or invoice ID",
	"warranty_end":   "Date when warranty expires",
	"assigned_user":  "The user the asset is assigned to (name or email)",
	"tags":           "Free-form labels attached to the asset",
}

var userFieldDescriptions = map[string]string{
	"email":     "The user's email address, used as the unique login",
	"full_name": "The user's display name",
	"role":      "Permission role (e.g. admin, manager, user)",
	"is_active": "Whether the account is enabled (true/false, yes/no)",
}

// FieldDescriptions returns a short description per built-in field key for
// the entity kind, used to build the AI mapping prompt.
func FieldDescriptions(kind model.EntityKind) map[string]string {
	if kind == model.KindUser {
		return userFieldDescriptions
	}
	return assetFieldDescriptions
}

// Match resolves headers to field keys by exact normalized equality against
// the kind's built-in keys, its aliases, and any extra (custom field) keys.
// Results preserve header order; unmatched headers are omitted.
func Match(headers []string, kind model.EntityKind, extraKeys []string) []model.HeaderMatch {
	valid := keySet(kind, extraKeys)
	aliases := headerAliases[kind]

	var matches []model.HeaderMatch
	for _, h := range headers {
		key := NormalizeHeader(h)
		if _, ok := valid[key]; ok {
			matches = append(matches, model.HeaderMatch{Header: h, FieldKey: key})
			continue
		}
		if target, ok := aliases[key]; ok {
			matches = append(matches, model.HeaderMatch{Header: h, FieldKey: target})
		}
	}
	return matches
}

func keySet(kind model.EntityKind, extraKeys []string) map[string]struct{} {
	keys := FieldKeys(kind)
	set := make(map[string]struct{}, len(keys)+len(extraKeys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	for _, k := range extraKeys {
		set[k] = struct{}{}
	}
	return set
}
