package export

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/scoutline/vendorscout/internal/model"
)

func TestWriteXLSX(t *testing.T) {
	vendors := []model.Vendor{
		{
			"name":        "Acme Wholesale",
			"url":         "https://acme.example",
			"location":    "Portland, OR",
			"description": "Bulk packaging supplier",
			"phone":       "555-0100",
			"rating":      4.5,
		},
		{
			"name": "Beta Foods",
			"url":  "https://beta.example",
		},
	}

	path := filepath.Join(t.TempDir(), "vendors.xlsx")
	require.NoError(t, WriteXLSX(path, vendors))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	sheet, ok := f.Sheet["Vendors"]
	require.True(t, ok, "workbook should have a Vendors sheet")
	require.Len(t, sheet.Rows, 3)

	header := sheet.Rows[0]
	require.Len(t, header.Cells, 5)
	assert.Equal(t, "Name", header.Cells[0].String())
	assert.Equal(t, "Extras", header.Cells[4].String())

	first := sheet.Rows[1]
	assert.Equal(t, "Acme Wholesale", first.Cells[0].String())
	assert.Equal(t, "https://acme.example", first.Cells[1].String())
	assert.Equal(t, "Portland, OR", first.Cells[2].String())
	assert.Equal(t, "Bulk packaging supplier", first.Cells[3].String())

	var extras map[string]any
	require.NoError(t, json.Unmarshal([]byte(first.Cells[4].String()), &extras))
	assert.Equal(t, "555-0100", extras["phone"])
	assert.Equal(t, 4.5, extras["rating"])

	second := sheet.Rows[2]
	assert.Equal(t, "Beta Foods", second.Cells[0].String())
	assert.Equal(t, "", second.Cells[4].String())
}

func TestWriteXLSX_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, WriteXLSX(path, nil))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	sheet := f.Sheet["Vendors"]
	require.NotNil(t, sheet)
	assert.Len(t, sheet.Rows, 1, "header row only")
}

func TestWriteXLSX_BadPath(t *testing.T) {
	err := WriteXLSX(filepath.Join(t.TempDir(), "missing", "vendors.xlsx"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export: save")
}
