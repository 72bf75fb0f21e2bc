package model

import "time"

// Asset is a row in the assets table. Columns the import file maps to a
// known field key land in the typed fields; everything else goes to Extra.
type Asset struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	SerialNumber   *string        `json:"serialNumber,omitempty"`
	Status         string         `json:"status,omitempty"`
	Location       string         `json:"location,omitempty"`
	AssetType      string         `json:"assetType,omitempty"`
	Vendor         string         `json:"vendor,omitempty"`
	OrderNumber    string         `json:"orderNumber,omitempty"`
	PurchaseDate   *time.Time     `json:"purchaseDate,omitempty"`
	PurchasePrice  *float64       `json:"purchasePrice,omitempty"`
	WarrantyEnd    *time.Time     `json:"warrantyEnd,omitempty"`
	AssignedUserID *string        `json:"assignedUserId,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	SetID          *string        `json:"setId,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// User is a row in the users table.
type User struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	FullName  string         `json:"fullName,omitempty"`
	Role      string         `json:"role,omitempty"`
	Active    bool           `json:"active"`
	SetID     *string        `json:"setId,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// AssetSet is a named collection imported rows can be scoped to.
type AssetSet struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CustomFieldDefinition declares a custom attribute materialized from an
// import column.
type CustomFieldDefinition struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"` // "asset" or "user"
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	FieldType string    `json:"fieldType"`
	SetID     *string   `json:"setId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
