package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/assetdock/assetdock/internal/model"
)

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Serial Number", "serial_number"},
		{"  Name  ", "name"},
		{"Purchase-Price ($)", "purchase_price"},
		{"S/N", "s_n"},
		{"warranty_end", "warranty_end"},
		{"___", ""},
		{"", ""},
		{"Room #", "room"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeHeader(tt.in), "input %q", tt.in)
	}
}

func TestMatchExactHeaders(t *testing.T) {
	matches := Match([]string{"Name", "Serial Number"}, model.KindAsset, nil)

	assert.Equal(t, []model.HeaderMatch{
		{Header: "Name", FieldKey: "name"},
		{Header: "Serial Number", FieldKey: "serial_number"},
	}, matches)
}

func TestMatchSkipsUnknownHeaders(t *testing.T) {
	matches := Match([]string{"Name", "Favourite Color"}, model.KindAsset, nil)

	assert.Len(t, matches, 1)
	assert.Equal(t, "name", matches[0].FieldKey)
}

func TestMatchCustomFieldKeys(t *testing.T) {
	matches := Match([]string{"Warranty Provider"}, model.KindAsset, []string{"warranty_provider"})

	assert.Equal(t, []model.HeaderMatch{
		{Header: "Warranty Provider", FieldKey: "warranty_provider"},
	}, matches)
}

func TestMatchUserNameAlias(t *testing.T) {
	matches := Match([]string{"Name", "Email"}, model.KindUser, nil)

	assert.Equal(t, []model.HeaderMatch{
		{Header: "Name", FieldKey: "full_name"},
		{Header: "Email", FieldKey: "email"},
	}, matches)
}

func TestMatchUserDoesNotSeeAssetFields(t *testing.T) {
	matches := Match([]string{"Serial Number"}, model.KindUser, nil)
	assert.Empty(t, matches)
}
