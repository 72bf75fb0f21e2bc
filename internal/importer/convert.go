package importer

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// knownStatuses are the canonical asset status keys.
var knownStatuses = map[string]struct{}{
	"active":   {},
	"in_stock": {},
	"fix":      {},
	"broken":   {},
	"retired":  {},
	"lost":     {},
	"disposal": {},
	"reserved": {},
	"ordered":  {},
}

// statusSynonyms maps spreadsheet vocabulary onto canonical status keys.
var statusSynonyms = map[string]string{
	"deployed":          "active",
	"in storage":        "in_stock",
	"in-stock":          "in_stock",
	"under repair":      "fix",
	"damaged":           "broken",
	"stolen":            "lost",
	"awaiting disposal": "disposal",
}

// CanonicalStatus maps a raw status cell to a canonical status key,
// defaulting to "active" for values it does not recognize.
func CanonicalStatus(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := knownStatuses[s]; ok {
		return s
	}
	if canonical, ok := statusSynonyms[s]; ok {
		return canonical
	}
	return "active"
}

// SplitTags splits a tag cell on commas, falling back to semicolons, and
// drops empty entries.
func SplitTags(raw string) []string {
	var parts []string
	switch {
	case strings.Contains(raw, ","):
		parts = strings.Split(raw, ",")
	case strings.Contains(raw, ";"):
		parts = strings.Split(raw, ";")
	default:
		parts = []string{raw}
	}
	var tags []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// ParsePrice strips currency noise ($, commas, spaces) and parses a float.
func ParsePrice(raw string) (float64, bool) {
	s := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02-Jan-2006",
}

// ParseDate tries the common spreadsheet date formats.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseActive interprets truthy/falsy spreadsheet cells for the is_active
// field. Unrecognized values report ok=false.
func ParseActive(raw string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "y", "1", "active", "enabled":
		return true, true
	case "false", "no", "n", "0", "inactive", "disabled":
		return false, true
	}
	return false, false
}

// isUUID reports whether the value parses as a UUID, used to distinguish
// user references by id from references by email.
func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// assetHeaderFallbacks resolves common unmapped asset headers.
var assetHeaderFallbacks = map[string]string{
	"serial":         "serial_number",
	"serial_number":  "serial_number",
	"servicetag":     "serial_number",
	"service_tag":    "serial_number",
	"s_n":            "serial_number",
	"sn":             "serial_number",
	"status":         "status",
	"state":          "status",
	"current_state":  "status",
	"current_status": "status",
	"location":       "location",
	"site":           "location",
	"room":           "location",
	"category":       "asset_type",
	"type":           "asset_type",
	"model_type":     "asset_type",
	"asset_type":     "asset_type",
	"cost":           "purchase_price",
	"purchase_price": "purchase_price",
	"price":          "purchase_price",
	"bought_price":   "purchase_price",
	"bought_date":    "purchase_date",
	"purchase_date":  "purchase_date",
	"date_bought":    "purchase_date",
	"supplier":       "vendor",
	"vendor":         "vendor",
	"po_number":      "order_number",
	"order_number":   "order_number",
	"po":             "order_number",
	"warranty_end":   "warranty_end",
	"warranty_date":  "warranty_end",
	"assigned_user":  "assigned_user",
	"assigned_to":    "assigned_user",
	"owner":          "assigned_user",
	"user":           "assigned_user",
	"tags":           "tags",
	"tag":            "tags",
}

// nameHeaderFallbacks resolve the asset name column when nothing maps to it
// explicitly, in priority order.
var nameHeaderFallbacks = []string{"name", "item_name", "asset_name", "model"}

// userHeaderFallbacks resolves common unmapped user headers.
var userHeaderFallbacks = map[string]string{
	"email":         "email",
	"email_address": "email",
	"mail":          "email",
	"name":          "full_name",
	"full_name":     "full_name",
	"fullname":      "full_name",
	"role":          "role",
	"role_name":     "role",
	"active":        "is_active",
	"is_active":     "is_active",
	"enabled":       "is_active",
}
