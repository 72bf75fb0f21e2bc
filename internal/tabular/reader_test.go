package tabular

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadCSV(t *testing.T) {
	src := "Name,Serial Number,Location\nLaptop A,SN-1,Berlin\nLaptop B,SN-2,\n"

	tbl, err := Read(strings.NewReader(src), ".csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Serial Number", "Location"}, tbl.Headers)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "SN-1", tbl.Rows[0]["Serial Number"])
	assert.Equal(t, "", tbl.Rows[1]["Location"])
}

func TestReadCSVSkipsBlankRows(t *testing.T) {
	src := "Name\nLaptop A\n\nLaptop B\n"

	tbl, err := Read(strings.NewReader(src), ".csv")
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 2)
}

func TestReadCSVDuplicateHeaderKeepsFirst(t *testing.T) {
	src := "Name,Name,Vendor\nfirst,second,Acme\n"

	tbl, err := Read(strings.NewReader(src), ".csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Vendor"}, tbl.Headers)
	assert.Equal(t, "first", tbl.Rows[0]["Name"])
}

func TestReadCSVRaggedRows(t *testing.T) {
	src := "Name,Vendor\nLaptop A\n"

	tbl, err := Read(strings.NewReader(src), ".csv")
	require.NoError(t, err)
	assert.Equal(t, "", tbl.Rows[0]["Vendor"])
}

func TestReadCSVEmptyFile(t *testing.T) {
	_, err := Read(strings.NewReader(""), ".csv")
	assert.Error(t, err)
}

func TestReadJSON(t *testing.T) {
	src := `[
		{"Name": "Laptop A", "Serial": "SN-1", "Price": 1200.5, "Spare": true},
		{"Name": "Laptop B", "Serial": "SN-2", "Price": 900}
	]`

	tbl, err := Read(strings.NewReader(src), ".json")
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Serial", "Price", "Spare"}, tbl.Headers)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "1200.5", tbl.Rows[0]["Price"])
	assert.Equal(t, "900", tbl.Rows[1]["Price"])
	assert.Equal(t, "true", tbl.Rows[0]["Spare"])
	assert.Equal(t, "", tbl.Rows[1]["Spare"])
}

func TestReadJSONRejectsNonArray(t *testing.T) {
	_, err := Read(strings.NewReader(`{"Name":"x"}`), ".json")
	assert.Error(t, err)
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Name", "Serial Number"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Laptop A", "SN-1"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	tbl, err := Read(&buf, ".xlsx")
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Serial Number"}, tbl.Headers)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "SN-1", tbl.Rows[0]["Serial Number"])
}

func TestReadUnsupportedExtension(t *testing.T) {
	_, err := Read(strings.NewReader("x"), ".pdf")
	assert.ErrorIs(t, err, ErrUnsupportedExtension)
}

func TestExtensionAllowed(t *testing.T) {
	assert.True(t, ExtensionAllowed(".csv"))
	assert.True(t, ExtensionAllowed(".XLSX"))
	assert.False(t, ExtensionAllowed(".xls"))
	assert.False(t, ExtensionAllowed(""))
}

func TestPreview(t *testing.T) {
	tbl := &Table{
		Headers: []string{"Name"},
		Rows: []map[string]string{
			{"Name": "a"}, {"Name": "b"}, {"Name": "c"},
		},
	}
	assert.Len(t, tbl.Preview(5), 3)
	assert.Len(t, tbl.Preview(2), 2)
}
